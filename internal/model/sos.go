package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusDispatched   AlertStatus = "dispatched"
	AlertStatusResolved     AlertStatus = "resolved"
)

// SOSAlert is one hospital's own copy of a broadcast. Copies of the same
// broadcast share CorrelationID and nothing else.
type SOSAlert struct {
	Base
	CorrelationID       uuid.UUID   `db:"correlation_id" json:"correlation_id"`
	HospitalID          uuid.UUID   `db:"hospital_id" json:"hospital_id"`
	UserID              uuid.UUID   `db:"user_id" json:"user_id"`
	EmergencyType       string      `db:"emergency_type" json:"emergency_type"`
	Urgency             string      `db:"urgency" json:"urgency"`
	Description         string      `db:"description" json:"description"`
	Location            Location    `db:"location" json:"location"`
	Timestamp           time.Time   `db:"timestamp" json:"timestamp"`
	Status              AlertStatus `db:"status" json:"status"`
	AmbulanceDispatched bool        `db:"ambulance_dispatched" json:"ambulance_dispatched"`
}

type CreateAlertRequest struct {
	EmergencyType string         `json:"emergency_type" binding:"required"`
	Urgency       string         `json:"urgency" binding:"required,oneof=low medium high critical"`
	Description   string         `json:"description" binding:"max=2000"`
	Location      *LocationInput `json:"location" binding:"required"`
	Timestamp     *time.Time     `json:"timestamp"`
}

type UpdateAlertRequest struct {
	Status              *AlertStatus `json:"status" binding:"omitempty,oneof=active acknowledged dispatched resolved"`
	AmbulanceDispatched *bool        `json:"ambulance_dispatched"`
}

// Broadcast is the outcome of one fan-out.
type Broadcast struct {
	CorrelationID uuid.UUID   `json:"correlation_id"`
	Delivered     []*SOSAlert `json:"delivered"`
	Failed        int         `json:"failed"`
}
