package providers

import (
	"context"

	"github.com/bookline/videomeet/internal/domain/entities"
)

// MeetingProvider defines the contract every video provider adapter
// implements (Zoom, Google Calendar/Meet). Terminal provider failures come
// back as coded AppErrors; transport faults are returned unchanged so the
// job layer can retry them.
type MeetingProvider interface {
	// CreateMeeting provisions a meeting for the appointment and returns
	// its identifiers and URLs.
	CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.MeetingDetails, error)

	// GetMeeting looks up an existing meeting by its provider id.
	GetMeeting(ctx context.Context, meetingID string) (*entities.MeetingDetails, error)

	// DeleteMeeting removes the meeting. A provider-side "not found" is
	// success: the meeting is already gone.
	DeleteMeeting(ctx context.Context, meetingID string) error
}

// TokenRefresher refreshes a connection's access token when it has expired.
// Implemented by the OAuth service; adapters call it before every provider
// request.
type TokenRefresher interface {
	RefreshConnection(ctx context.Context, conn *entities.Connection) error
}
