package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	RequestKindBlood RequestKind = "blood"
	RequestKindOrgan RequestKind = "organ"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusFulfilled RequestStatus = "fulfilled"
	RequestStatusRejected  RequestStatus = "rejected"
)

// Request is a hospital's ask for blood units or an organ.
type Request struct {
	Base
	HospitalID    uuid.UUID     `db:"hospital_id" json:"hospital_id"`
	Kind          RequestKind   `db:"kind" json:"kind"`
	BloodGroup    string        `db:"blood_group" json:"blood_group,omitempty"`
	OrganType     string        `db:"organ_type" json:"organ_type,omitempty"`
	Quantity      int           `db:"quantity" json:"quantity,omitempty"`
	Location      Location      `db:"location" json:"location"`
	Status        RequestStatus `db:"status" json:"status"`
	// ReservedBy is the bank whose stock was debited when the request was made.
	ReservedBy         *uuid.UUID `db:"reserved_by" json:"reserved_by,omitempty"`
	FulfilledBy        *uuid.UUID `db:"fulfilled_by" json:"fulfilled_by,omitempty"`
	FulfilledDate      *time.Time `db:"fulfilled_date" json:"fulfilled_date,omitempty"`
	FulfilledBloodType *string    `db:"fulfilled_blood_type" json:"fulfilled_blood_type,omitempty"`
	FulfilledQuantity  *int       `db:"fulfilled_quantity" json:"fulfilled_quantity,omitempty"`
	RejectedBy         *uuid.UUID `db:"rejected_by" json:"rejected_by,omitempty"`
}

// RequestView attaches the requesting hospital's contact details.
type RequestView struct {
	Request
	Hospital Contact `db:"hospital" json:"hospital"`
}

// Donor is one candidate returned by the matching collaborator.
type Donor struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Location Location `json:"location"`
}

// BloodRequestResult carries either the supplying blood bank or donor candidates.
type BloodRequestResult struct {
	Request   *Request `json:"request"`
	Fulfilled bool     `json:"fulfilled"`
	BloodBank *Contact `json:"blood_bank,omitempty"`
	Donors    []Donor  `json:"donors,omitempty"`
}

type OrganRequestResult struct {
	Request *Request `json:"request"`
	Donors  []Donor  `json:"donors"`
}

type HospitalRequests struct {
	BloodRequests []*Request `json:"blood_requests"`
	OrganRequests []*Request `json:"organ_requests"`
}

type BloodRequestInput struct {
	BloodGroup string         `json:"blood_group" binding:"required,bloodgroup"`
	Quantity   int            `json:"quantity" binding:"required,min=1"`
	Location   *LocationInput `json:"location" binding:"required"`
}

type OrganRequestInput struct {
	OrganType string         `json:"organ_type" binding:"required"`
	Location  *LocationInput `json:"location" binding:"required"`
}

type FulfillRequestInput struct {
	BloodType     string     `json:"blood_type" binding:"required,bloodgroup"`
	Quantity      int        `json:"quantity" binding:"required,min=1"`
	FulfilledDate *time.Time `json:"fulfilled_date"`
}
