package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
	apperrors "github.com/bookline/videomeet/pkg/errors"
	"github.com/bookline/videomeet/pkg/retryable"
)

// MeetingProviderFactory builds a provider adapter bound to a connection.
type MeetingProviderFactory interface {
	NewProvider(kind entities.MeetingProviderKind, conn *entities.Connection) (providers.MeetingProvider, error)
}

// MeetingService orchestrates meeting provisioning: it validates
// preconditions, selects the provider adapter, invokes it, and reconciles
// the result into the appointment record. Terminal failures are absorbed
// into the appointment's failed status; transport faults are returned
// unchanged so the job layer can retry them with backoff.
type MeetingService struct {
	appointments repositories.AppointmentRepository
	services     repositories.ServiceRepository
	connections  repositories.ConnectionRepository
	factory      MeetingProviderFactory
	events       providers.EventBus
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewMeetingService creates a new meeting service
func NewMeetingService(
	appointments repositories.AppointmentRepository,
	services repositories.ServiceRepository,
	connections repositories.ConnectionRepository,
	factory MeetingProviderFactory,
	events providers.EventBus,
) *MeetingService {
	return &MeetingService{
		appointments: appointments,
		services:     services,
		connections:  connections,
		factory:      factory,
		events:       events,
		now:          time.Now,
	}
}

// SetMetrics attaches application metrics. Left nil, outcome recording is a
// no-op.
func (s *MeetingService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// CreateMeeting provisions a video meeting for the appointment. The bool
// result reports success; a non-nil error is always a retryable transport
// fault and means the appointment's meeting state was left untouched.
func (s *MeetingService) CreateMeeting(ctx context.Context, appointmentID string) (bool, error) {
	logger := observability.LoggerFromContext(ctx)

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("appointment lookup failed")
		return false, nil
	}

	service, err := s.services.GetByID(ctx, appointment.ServiceID)
	if err != nil {
		logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("service lookup failed")
		return false, nil
	}

	// Precondition chain, short-circuiting on the first failure.
	if !service.VideoEnabled {
		s.logPreconditionFailure(ctx, appointment, apperrors.CodeServiceNotEnabled, "service does not have video meetings enabled")
		return false, nil
	}
	if appointment.StaffMemberID == nil || *appointment.StaffMemberID == "" {
		s.logPreconditionFailure(ctx, appointment, apperrors.CodeNoStaffMember, "appointment has no staff member assigned")
		return false, nil
	}
	provider, ok := entities.ParseMeetingProvider(service.VideoProvider)
	if !ok {
		s.logPreconditionFailure(ctx, appointment, apperrors.CodeNoProvider, fmt.Sprintf("service video provider %q is not a known provider", service.VideoProvider))
		return false, nil
	}

	conn, err := s.connections.GetActiveByStaffAndProvider(ctx, *appointment.StaffMemberID, provider)
	if err != nil {
		// Nothing to retry without human intervention: the staff member has
		// to reconnect the provider. Mark the appointment failed now.
		s.logPreconditionFailure(ctx, appointment, apperrors.CodeNoConnection, "no active connection for staff member and provider")
		return s.finalizeFailure(ctx, appointment, provider, apperrors.CodeNoConnection), nil
	}

	adapter, err := s.factory.NewProvider(provider, conn)
	if err != nil {
		logger.Error().Err(err).Str("appointment_id", appointment.ID).Msg("failed to construct provider adapter")
		return s.finalizeFailure(ctx, appointment, provider, apperrors.CodeOf(err)), nil
	}

	details, err := adapter.CreateMeeting(ctx, appointment)
	if err != nil {
		if retryable.IsRetryable(err) {
			// Transport fault: the operation may still succeed on retry, so
			// the appointment is deliberately not marked failed.
			return false, err
		}
		logger.Warn().Err(err).
			Str("appointment_id", appointment.ID).
			Str("provider", string(provider)).
			Msg("meeting creation failed")
		return s.finalizeFailure(ctx, appointment, provider, apperrors.CodeOf(err)), nil
	}

	if !details.Complete() {
		// Guards against providers returning malformed success payloads.
		logger.Warn().
			Str("appointment_id", appointment.ID).
			Str("provider", string(provider)).
			Msg("provider returned incomplete meeting data")
		return s.finalizeFailure(ctx, appointment, provider, apperrors.CodeInvalidMeetingData), nil
	}

	if err := s.appointments.ApplyMeetingResult(ctx, appointment.ID, details); err != nil {
		logger.Error().Err(err).Str("appointment_id", appointment.ID).Msg("failed to persist meeting result")
		return s.finalizeFailure(ctx, appointment, provider, ""), nil
	}

	observability.RecordMeetingCreate(ctx, s.metrics, string(provider), true)

	s.publish(ctx, &entities.MeetingEvent{
		ID:            uuid.New().String(),
		Type:          entities.MeetingEventCreated,
		AppointmentID: appointment.ID,
		BusinessID:    appointment.BusinessID,
		Provider:      string(provider),
		OccurredAt:    s.now(),
	})

	logger.Info().
		Str("appointment_id", appointment.ID).
		Str("provider", string(provider)).
		Str("meeting_id", details.MeetingID).
		Msg("meeting created")

	return true, nil
}

// DeleteMeeting tears down the appointment's meeting. The appointment's
// meeting fields are cleared unconditionally, whatever the provider says:
// local state must never keep referencing a meeting we can no longer
// manage. The bool result reflects the remote delete, for logging only.
func (s *MeetingService) DeleteMeeting(ctx context.Context, appointmentID string) (bool, error) {
	logger := observability.LoggerFromContext(ctx)

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("appointment lookup failed")
		return false, nil
	}

	if !appointment.HasMeeting() {
		return true, nil
	}

	adapter := s.adapterForExistingMeeting(ctx, appointment)
	if adapter == nil {
		// The connection is gone or the provider is unknown; all we can do
		// is drop our reference to the meeting.
		observability.RecordMeetingDelete(ctx, s.metrics, string(appointment.MeetingProvider), false)
		return true, s.clearMeeting(ctx, appointment)
	}

	remoteOK := true
	if err := adapter.DeleteMeeting(ctx, *appointment.MeetingID); err != nil {
		remoteOK = false
		logger.Warn().Err(err).
			Str("appointment_id", appointment.ID).
			Str("meeting_id", *appointment.MeetingID).
			Msg("remote meeting delete failed; clearing local state anyway")
	}

	observability.RecordMeetingDelete(ctx, s.metrics, string(appointment.MeetingProvider), remoteOK)

	if err := s.clearMeeting(ctx, appointment); err != nil {
		return remoteOK, err
	}

	return remoteOK, nil
}

// GetMeeting performs a live lookup of the appointment's meeting at the
// provider.
func (s *MeetingService) GetMeeting(ctx context.Context, appointmentID string) (*entities.MeetingDetails, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.HasMeeting() {
		return nil, apperrors.NewNotFoundError("appointment has no meeting")
	}

	adapter := s.adapterForExistingMeeting(ctx, appointment)
	if adapter == nil {
		return nil, apperrors.NewValidationError(apperrors.CodeNoConnection, "no active connection for the meeting's provider")
	}

	return adapter.GetMeeting(ctx, *appointment.MeetingID)
}

func (s *MeetingService) adapterForExistingMeeting(ctx context.Context, appointment *entities.Appointment) providers.MeetingProvider {
	logger := observability.LoggerFromContext(ctx)

	if appointment.StaffMemberID == nil || *appointment.StaffMemberID == "" {
		return nil
	}

	provider, ok := entities.ParseMeetingProvider(string(appointment.MeetingProvider))
	if !ok {
		return nil
	}

	conn, err := s.connections.GetActiveByStaffAndProvider(ctx, *appointment.StaffMemberID, provider)
	if err != nil {
		logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("no connection for existing meeting")
		return nil
	}

	adapter, err := s.factory.NewProvider(provider, conn)
	if err != nil {
		logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("failed to construct adapter for existing meeting")
		return nil
	}

	return adapter
}

func (s *MeetingService) clearMeeting(ctx context.Context, appointment *entities.Appointment) error {
	if err := s.appointments.ClearMeetingFields(ctx, appointment.ID); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to clear meeting fields")
		return err
	}

	s.publish(ctx, &entities.MeetingEvent{
		ID:            uuid.New().String(),
		Type:          entities.MeetingEventDeleted,
		AppointmentID: appointment.ID,
		BusinessID:    appointment.BusinessID,
		Provider:      string(appointment.MeetingProvider),
		OccurredAt:    s.now(),
	})

	return nil
}

// finalizeFailure marks the appointment failed and announces it. Always
// returns false so callers can return its result directly.
func (s *MeetingService) finalizeFailure(ctx context.Context, appointment *entities.Appointment, provider entities.MeetingProviderKind, code apperrors.ErrorCode) bool {
	observability.RecordMeetingCreate(ctx, s.metrics, string(provider), false)

	if err := s.appointments.MarkMeetingFailed(ctx, appointment.ID); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to mark meeting failed")
	}

	s.publish(ctx, &entities.MeetingEvent{
		ID:            uuid.New().String(),
		Type:          entities.MeetingEventCreateFailed,
		AppointmentID: appointment.ID,
		BusinessID:    appointment.BusinessID,
		Provider:      string(provider),
		Reason:        string(code),
		OccurredAt:    s.now(),
	})

	return false
}

func (s *MeetingService) logPreconditionFailure(ctx context.Context, appointment *entities.Appointment, code apperrors.ErrorCode, msg string) {
	observability.LoggerFromContext(ctx).Warn().
		Str("appointment_id", appointment.ID).
		Str("code", string(code)).
		Msg(msg)
}

func (s *MeetingService) publish(ctx context.Context, event *entities.MeetingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.ChannelMeetingLifecycle, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event_type", string(event.Type)).
			Msg("failed to publish meeting event")
	}
}
