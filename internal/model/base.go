package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location is a point plus an optional city name.
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	City      string  `json:"city,omitempty" db:"city"`
}

// Contact is the public subset of an account handed to other principals.
type Contact struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	BloodGroup string    `json:"blood_group,omitempty" db:"blood_group"`
	Location   Location  `json:"location" db:"location"`
}

// LocationInput is the request-body form of Location; both coordinates are mandatory.
type LocationInput struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	City      string   `json:"city"`
}

func (l *LocationInput) ToLocation() Location {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return Location{}
	}
	return Location{Latitude: *l.Latitude, Longitude: *l.Longitude, City: l.City}
}

// Response is the envelope every handler writes.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
