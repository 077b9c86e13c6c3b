package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bookline/videomeet/internal/api/handlers"
	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// MockAppointmentRepository mocks the appointment repository
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ApplyMeetingResult(ctx context.Context, id string, details *entities.MeetingDetails) error {
	return nil
}

func (m *MockAppointmentRepository) MarkMeetingFailed(ctx context.Context, id string) error {
	return nil
}

func (m *MockAppointmentRepository) ClearMeetingFields(ctx context.Context, id string) error {
	return nil
}

func (m *MockAppointmentRepository) ListByStaffMember(ctx context.Context, staffMemberID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, staffMemberID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

// capturingBus records published events
type capturingBus struct {
	mu     sync.Mutex
	events []*entities.MeetingEvent
}

func (b *capturingBus) Publish(ctx context.Context, channel string, event *entities.MeetingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MeetingEvent, error) {
	return nil, nil
}

func (b *capturingBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *capturingBus) Close() error { return nil }

func (b *capturingBus) published() []*entities.MeetingEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*entities.MeetingEvent(nil), b.events...)
}

func bareAppointment() *entities.Appointment {
	staffID := "staff-1"
	return &entities.Appointment{
		ID:              "appt-1",
		BusinessID:      "biz-1",
		StaffMemberID:   &staffID,
		ServiceID:       "svc-1",
		StartTime:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		MeetingProvider: entities.MeetingProviderNone,
		MeetingStatus:   entities.MeetingStatusNotCreated,
	}
}

func meetingAppointment() *entities.Appointment {
	appointment := bareAppointment()
	meetingID := "987654321"
	joinURL := "https://zoom.us/j/987654321"
	appointment.MeetingID = &meetingID
	appointment.JoinURL = &joinURL
	appointment.MeetingProvider = entities.MeetingProviderZoom
	appointment.MeetingStatus = entities.MeetingStatusCreated
	return appointment
}

func meetingRequest(method, id string) *http.Request {
	req := httptest.NewRequest(method, "/api/appointments/"+id+"/meeting", nil)
	req.SetPathValue("id", id)
	return req
}

func TestMeetingHandler_RequestMeeting(t *testing.T) {
	t.Run("enqueues a provisioning job", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		bus := &capturingBus{}
		handler := handlers.NewMeetingHandler(repo, nil, bus)

		repo.On("GetByID", mock.Anything, "appt-1").Return(bareAppointment(), nil)

		w := httptest.NewRecorder()
		handler.RequestMeeting(w, meetingRequest("POST", "appt-1"))

		assert.Equal(t, http.StatusAccepted, w.Code)

		events := bus.published()
		require.Len(t, events, 1)
		assert.Equal(t, entities.MeetingEventProvision, events[0].Type)
		assert.Equal(t, "appt-1", events[0].AppointmentID)
	})

	t.Run("does not enqueue when a meeting already exists", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		bus := &capturingBus{}
		handler := handlers.NewMeetingHandler(repo, nil, bus)

		repo.On("GetByID", mock.Anything, "appt-1").Return(meetingAppointment(), nil)

		w := httptest.NewRecorder()
		handler.RequestMeeting(w, meetingRequest("POST", "appt-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, bus.published())
	})

	t.Run("returns 404 for an unknown appointment", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		bus := &capturingBus{}
		handler := handlers.NewMeetingHandler(repo, nil, bus)

		repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("appointment not found"))

		w := httptest.NewRecorder()
		handler.RequestMeeting(w, meetingRequest("POST", "missing"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, bus.published())
	})
}

func TestMeetingHandler_CancelMeeting(t *testing.T) {
	t.Run("enqueues a cancellation job", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		bus := &capturingBus{}
		handler := handlers.NewMeetingHandler(repo, nil, bus)

		repo.On("GetByID", mock.Anything, "appt-1").Return(meetingAppointment(), nil)

		w := httptest.NewRecorder()
		handler.CancelMeeting(w, meetingRequest("DELETE", "appt-1"))

		assert.Equal(t, http.StatusAccepted, w.Code)

		events := bus.published()
		require.Len(t, events, 1)
		assert.Equal(t, entities.MeetingEventCancel, events[0].Type)
		assert.Equal(t, "zoom", events[0].Provider)
	})

	t.Run("is a no-op without a meeting", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		bus := &capturingBus{}
		handler := handlers.NewMeetingHandler(repo, nil, bus)

		repo.On("GetByID", mock.Anything, "appt-1").Return(bareAppointment(), nil)

		w := httptest.NewRecorder()
		handler.CancelMeeting(w, meetingRequest("DELETE", "appt-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, bus.published())
	})
}

func TestMeetingHandler_GetMeeting(t *testing.T) {
	t.Run("returns stored meeting state", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		handler := handlers.NewMeetingHandler(repo, nil, &capturingBus{})

		repo.On("GetByID", mock.Anything, "appt-1").Return(meetingAppointment(), nil)

		w := httptest.NewRecorder()
		handler.GetMeeting(w, meetingRequest("GET", "appt-1"))

		assert.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status  string `json:"status"`
			Meeting struct {
				MeetingID string `json:"meeting_id"`
				JoinURL   string `json:"join_url"`
				Provider  string `json:"provider"`
			} `json:"meeting"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "created", body.Status)
		assert.Equal(t, "987654321", body.Meeting.MeetingID)
		assert.Equal(t, "https://zoom.us/j/987654321", body.Meeting.JoinURL)
		assert.Equal(t, "zoom", body.Meeting.Provider)
	})

	t.Run("returns 404 when no meeting exists", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		handler := handlers.NewMeetingHandler(repo, nil, &capturingBus{})

		repo.On("GetByID", mock.Anything, "appt-1").Return(bareAppointment(), nil)

		w := httptest.NewRecorder()
		handler.GetMeeting(w, meetingRequest("GET", "appt-1"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMeetingHandler_ListStaffAppointments(t *testing.T) {
	t.Run("passes the filter through", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		handler := handlers.NewMeetingHandler(repo, nil, &capturingBus{})

		repo.On("ListByStaffMember", mock.Anything, "staff-1", mock.MatchedBy(func(f repositories.AppointmentFilter) bool {
			return f.MeetingStatus == entities.MeetingStatusFailed && f.Limit == 10
		})).Return([]*entities.Appointment{bareAppointment()}, nil)

		req := httptest.NewRequest("GET", "/api/staff/staff-1/appointments?meeting_status=failed&limit=10", nil)
		req.SetPathValue("id", "staff-1")
		w := httptest.NewRecorder()
		handler.ListStaffAppointments(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
		repo.AssertExpectations(t)
	})
}
