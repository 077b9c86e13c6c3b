package entities

import (
	"time"
)

// MeetingStatus represents the provisioning state of an appointment's meeting
type MeetingStatus string

const (
	MeetingStatusNotCreated MeetingStatus = "not_created"
	MeetingStatusCreated    MeetingStatus = "created"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// MeetingProviderKind identifies a video meeting provider
type MeetingProviderKind string

const (
	MeetingProviderNone MeetingProviderKind = "none"
	MeetingProviderZoom MeetingProviderKind = "zoom"
	MeetingProviderMeet MeetingProviderKind = "meet"
)

// ParseMeetingProvider resolves a service's video provider selector to a
// known provider. The ok result is false for "none", empty, or unknown values.
func ParseMeetingProvider(s string) (MeetingProviderKind, bool) {
	switch MeetingProviderKind(s) {
	case MeetingProviderZoom:
		return MeetingProviderZoom, true
	case MeetingProviderMeet:
		return MeetingProviderMeet, true
	default:
		return MeetingProviderNone, false
	}
}

// Appointment represents a scheduled appointment and its meeting state
type Appointment struct {
	ID            string    `json:"id" db:"id"`
	BusinessID    string    `json:"business_id" db:"business_id"`
	StaffMemberID *string   `json:"staff_member_id" db:"staff_member_id"`
	ServiceID     string    `json:"service_id" db:"service_id"`
	StartTime     time.Time `json:"start_time" db:"start_time"`
	EndTime       time.Time `json:"end_time" db:"end_time"`
	Timezone      string    `json:"timezone" db:"timezone"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`

	MeetingID       *string             `json:"meeting_id" db:"meeting_id"`
	JoinURL         *string             `json:"join_url" db:"join_url"`
	HostURL         *string             `json:"host_url" db:"host_url"`
	MeetingPassword *string             `json:"meeting_password" db:"meeting_password"`
	MeetingProvider MeetingProviderKind `json:"meeting_provider" db:"meeting_provider"`
	MeetingStatus   MeetingStatus       `json:"meeting_status" db:"meeting_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasMeeting reports whether a meeting is currently provisioned.
func (a *Appointment) HasMeeting() bool {
	return a.MeetingID != nil && *a.MeetingID != ""
}

// DurationMinutes returns the appointment length in whole minutes, with a
// floor of 1 so providers never receive a zero-length meeting.
func (a *Appointment) DurationMinutes() int {
	minutes := int(a.EndTime.Sub(a.StartTime) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// MeetingDetails is the result of provisioning a meeting with a provider
type MeetingDetails struct {
	MeetingID string              `json:"meeting_id"`
	JoinURL   string              `json:"join_url"`
	HostURL   string              `json:"host_url"`
	Password  string              `json:"password"`
	Provider  MeetingProviderKind `json:"provider"`
}

// Complete reports whether the provider returned the fields an appointment
// cannot function without.
func (d *MeetingDetails) Complete() bool {
	return d != nil && d.MeetingID != "" && d.JoinURL != ""
}
