package entities

import (
	"time"
)

// StaffMember represents a bookable staff member within a business
type StaffMember struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Service represents a bookable service and its video meeting settings
type Service struct {
	ID            string    `json:"id" db:"id"`
	BusinessID    string    `json:"business_id" db:"business_id"`
	Name          string    `json:"name" db:"name"`
	VideoEnabled  bool      `json:"video_enabled" db:"video_enabled"`
	VideoProvider string    `json:"video_provider" db:"video_provider"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
