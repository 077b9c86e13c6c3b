package entities

import (
	"time"
)

// MeetingEventType identifies a meeting lifecycle event on the bus
type MeetingEventType string

const (
	// MeetingEventProvision asks the worker to provision a meeting
	MeetingEventProvision MeetingEventType = "meeting.provision"

	// MeetingEventCancel asks the worker to tear a meeting down
	MeetingEventCancel MeetingEventType = "meeting.cancel"

	// MeetingEventCreated announces a successfully provisioned meeting
	MeetingEventCreated MeetingEventType = "meeting.created"

	// MeetingEventCreateFailed announces a terminally failed provisioning attempt
	MeetingEventCreateFailed MeetingEventType = "meeting.create_failed"

	// MeetingEventDeleted announces cleared meeting state
	MeetingEventDeleted MeetingEventType = "meeting.deleted"
)

// MeetingEvent is the payload published on the event bus for provisioning
// jobs and lifecycle announcements.
type MeetingEvent struct {
	ID            string           `json:"id"`
	Type          MeetingEventType `json:"type"`
	AppointmentID string           `json:"appointment_id"`
	BusinessID    string           `json:"business_id,omitempty"`
	Provider      string           `json:"provider,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
