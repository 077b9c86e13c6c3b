package repositories

import (
	"context"
	"time"

	"github.com/bookline/videomeet/internal/domain/entities"
)

// AppointmentFilter holds filtering options for appointment queries
type AppointmentFilter struct {
	MeetingStatus entities.MeetingStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// AppointmentRepository defines the interface for appointment persistence.
// Meeting state changes go through the three narrow operations below so that
// the coordinator's decision logic stays independent of the persistence
// mechanism, and so that every meeting write is a single terminal step.
type AppointmentRepository interface {
	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// ApplyMeetingResult stores the provisioned meeting's details and moves
	// meeting_status to created.
	ApplyMeetingResult(ctx context.Context, id string, details *entities.MeetingDetails) error

	// MarkMeetingFailed clears any meeting fields and moves meeting_status
	// to failed. The appointment stays re-attemptable.
	MarkMeetingFailed(ctx context.Context, id string) error

	// ClearMeetingFields blanks all meeting fields, sets the provider to
	// none and meeting_status to not_created.
	ClearMeetingFields(ctx context.Context, id string) error

	// ListByStaffMember retrieves appointments assigned to a staff member
	ListByStaffMember(ctx context.Context, staffMemberID string, filter AppointmentFilter) ([]*entities.Appointment, error)
}
