package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

type DonationType string

const (
	DonationTypeBlood DonationType = "blood"
	DonationTypeOrgan DonationType = "organ"
)

func (t DonationType) Valid() bool {
	return t == DonationTypeBlood || t == DonationTypeOrgan
}

type Appointment struct {
	Base
	DonorID        uuid.UUID         `db:"donor_id" json:"donor_id"`
	BloodBankID    uuid.UUID         `db:"blood_bank_id" json:"blood_bank_id"`
	Type           DonationType      `db:"type" json:"type"`
	Date           time.Time         `db:"date" json:"date"`
	Status         AppointmentStatus `db:"status" json:"status"`
	BloodType      *string           `db:"blood_type" json:"blood_type,omitempty"`
	UnitsCollected *int              `db:"units_collected" json:"units_collected,omitempty"`
	DonationDate   *time.Time        `db:"donation_date" json:"donation_date,omitempty"`
	ReceiptURL     string            `db:"receipt_url" json:"receipt_url,omitempty"`
}

// AppointmentView is an appointment with the donor's contact details attached.
type AppointmentView struct {
	Appointment
	Donor Contact `db:"donor" json:"donor"`
}

type BookAppointmentRequest struct {
	BloodBankID uuid.UUID    `json:"blood_bank_id" binding:"required"`
	Type        DonationType `json:"type" binding:"required,oneof=blood organ"`
	Date        time.Time    `json:"date" binding:"required"`
}

type CompleteAppointmentRequest struct {
	BloodType      string     `json:"blood_type" binding:"required,bloodgroup"`
	UnitsCollected *int       `json:"units_collected" binding:"omitempty,min=0"`
	DonationDate   *time.Time `json:"donation_date"`
}

// Completion is what the blood bank records when closing an appointment.
type Completion struct {
	BloodType      string
	UnitsCollected int
	DonationDate   time.Time
}

type BookingResult struct {
	Appointment *Appointment `json:"appointment"`
	ReceiptURL  string       `json:"receipt_url"`
}
