package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleNormalUser Role = "NormalUser"
	RoleHospital   Role = "Hospital"
	RoleBloodBank  Role = "BloodBank"
)

func (r Role) Valid() bool {
	switch r {
	case RoleNormalUser, RoleHospital, RoleBloodBank:
		return true
	}
	return false
}

// Account is any principal of the system. Role decides which of the
// optional fields are meaningful.
type Account struct {
	Base
	Role             Role     `json:"role" db:"role"`
	Name             string   `json:"name" db:"name"`
	Email            string   `json:"email" db:"email"`
	PasswordHash     string   `json:"-" db:"password_hash"`
	External         bool     `json:"external" db:"external"`
	Age              *int     `json:"age,omitempty" db:"age"`
	Sex              string   `json:"sex,omitempty" db:"sex"`
	BloodGroup       string   `json:"blood_group,omitempty" db:"blood_group"`
	Phone            string   `json:"phone,omitempty" db:"phone"`
	Location         Location `json:"location" db:"location"`
	CanDonateBlood   bool     `json:"can_donate_blood" db:"can_donate_blood"`
	CanDonateOrgan   bool     `json:"can_donate_organ" db:"can_donate_organ"`
	ProfileCompleted bool     `json:"profile_completed" db:"profile_completed"`
}

func (a *Account) Contact() Contact {
	return Contact{
		ID:         a.ID,
		Name:       a.Name,
		Phone:      a.Phone,
		BloodGroup: a.BloodGroup,
		Location:   a.Location,
	}
}

type SignUpRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required_unless=External true"`
	Role     Role           `json:"role" binding:"required,oneof=NormalUser Hospital BloodBank"`
	External bool           `json:"external"`
	IDToken  string         `json:"id_token" binding:"required_if=External true"`
	Profile  ProfileRequest `json:"profile"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=NormalUser Hospital BloodBank"`
}

// ExternalSignInRequest carries an ID token issued by the external sign-in
// provider.
type ExternalSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// ProfileRequest patches the profile; nil fields are left untouched.
type ProfileRequest struct {
	Name           *string        `json:"name"`
	Age            *int           `json:"age" binding:"omitempty,min=0,max=130"`
	Sex            *string        `json:"sex" binding:"omitempty,oneof=M F O"`
	BloodGroup     *string        `json:"blood_group" binding:"omitempty,bloodgroup"`
	Phone          *string        `json:"phone"`
	Location       *LocationInput `json:"location"`
	CanDonateBlood *bool          `json:"can_donate_blood"`
	CanDonateOrgan *bool          `json:"can_donate_organ"`
}

func (p *ProfileRequest) Apply(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Age != nil {
		a.Age = p.Age
	}
	if p.Sex != nil {
		a.Sex = *p.Sex
	}
	if p.BloodGroup != nil {
		a.BloodGroup = *p.BloodGroup
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Location != nil {
		a.Location = p.Location.ToLocation()
	}
	if p.CanDonateBlood != nil {
		a.CanDonateBlood = *p.CanDonateBlood
	}
	if p.CanDonateOrgan != nil {
		a.CanDonateOrgan = *p.CanDonateOrgan
	}
}

type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	Account     *Account `json:"account"`
}

// Principal is the authenticated caller as established by the auth middleware.
type Principal struct {
	AccountID uuid.UUID
	Email     string
	Role      Role
}

// BloodBankProfile backs the blood bank dashboard.
type BloodBankProfile struct {
	Account    *Account   `json:"account"`
	BloodStock BloodStock `json:"blood_stock"`
}

type HospitalProfile struct {
	Account  *Account         `json:"account"`
	Requests HospitalRequests `json:"requests"`
}
