package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/videomeet/internal/application/services"
	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
)

// MeetingHandler handles appointment meeting HTTP requests. Provisioning and
// teardown are asynchronous: the handler validates the appointment, enqueues
// a job on the event bus and returns 202; the worker does the provider work.
type MeetingHandler struct {
	appointments repositories.AppointmentRepository
	meetings     *services.MeetingService
	bus          providers.EventBus
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(appointments repositories.AppointmentRepository, meetings *services.MeetingService, bus providers.EventBus) *MeetingHandler {
	return &MeetingHandler{
		appointments: appointments,
		meetings:     meetings,
		bus:          bus,
	}
}

// RequestMeeting handles POST /api/appointments/{id}/meeting
func (h *MeetingHandler) RequestMeeting(w http.ResponseWriter, r *http.Request) {
	appointmentID := r.PathValue("id")
	if appointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if appointment.HasMeeting() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":   string(appointment.MeetingStatus),
			"meeting":  meetingPayload(appointment),
			"enqueued": false,
		})
		return
	}

	event := &entities.MeetingEvent{
		ID:            uuid.New().String(),
		Type:          entities.MeetingEventProvision,
		AppointmentID: appointment.ID,
		BusinessID:    appointment.BusinessID,
		OccurredAt:    time.Now(),
	}
	if err := h.bus.Publish(r.Context(), providers.ChannelMeetingJobs, event); err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to enqueue provisioning job")
		respondWithError(w, http.StatusInternalServerError, "failed to enqueue meeting provisioning")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   string(appointment.MeetingStatus),
		"job_id":   event.ID,
		"enqueued": true,
	})
}

// CancelMeeting handles DELETE /api/appointments/{id}/meeting
func (h *MeetingHandler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	appointmentID := r.PathValue("id")
	if appointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if !appointment.HasMeeting() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"enqueued": false,
		})
		return
	}

	event := &entities.MeetingEvent{
		ID:            uuid.New().String(),
		Type:          entities.MeetingEventCancel,
		AppointmentID: appointment.ID,
		BusinessID:    appointment.BusinessID,
		Provider:      string(appointment.MeetingProvider),
		OccurredAt:    time.Now(),
	}
	if err := h.bus.Publish(r.Context(), providers.ChannelMeetingJobs, event); err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("failed to enqueue cancellation job")
		respondWithError(w, http.StatusInternalServerError, "failed to enqueue meeting cancellation")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   event.ID,
		"enqueued": true,
	})
}

// GetMeeting handles GET /api/appointments/{id}/meeting. With ?live=true the
// meeting is looked up at the provider instead of from stored state.
func (h *MeetingHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	appointmentID := r.PathValue("id")
	if appointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	if r.URL.Query().Get("live") == "true" {
		details, err := h.meetings.GetMeeting(r.Context(), appointmentID)
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, details)
		return
	}

	appointment, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if !appointment.HasMeeting() {
		respondWithJSON(w, http.StatusNotFound, map[string]string{
			"error":  "appointment has no meeting",
			"status": string(appointment.MeetingStatus),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  string(appointment.MeetingStatus),
		"meeting": meetingPayload(appointment),
	})
}

// ListStaffAppointments handles GET /api/staff/{id}/appointments
func (h *MeetingHandler) ListStaffAppointments(w http.ResponseWriter, r *http.Request) {
	staffMemberID := r.PathValue("id")
	if staffMemberID == "" {
		respondWithError(w, http.StatusBadRequest, "staff member ID is required")
		return
	}

	filter := repositories.AppointmentFilter{
		MeetingStatus: entities.MeetingStatus(r.URL.Query().Get("meeting_status")),
		Limit:         30,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		filter.To = &to
	}

	appointments, err := h.appointments.ListByStaffMember(r.Context(), staffMemberID, filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

func meetingPayload(appointment *entities.Appointment) map[string]interface{} {
	payload := map[string]interface{}{
		"provider": string(appointment.MeetingProvider),
	}
	if appointment.MeetingID != nil {
		payload["meeting_id"] = *appointment.MeetingID
	}
	if appointment.JoinURL != nil {
		payload["join_url"] = *appointment.JoinURL
	}
	if appointment.HostURL != nil {
		payload["host_url"] = *appointment.HostURL
	}
	if appointment.MeetingPassword != nil {
		payload["password"] = *appointment.MeetingPassword
	}
	return payload
}
