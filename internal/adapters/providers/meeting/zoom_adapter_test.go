package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/videomeet/internal/domain/entities"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

func zoomTestConnection() *entities.Connection {
	return &entities.Connection{
		ID:            "conn-1",
		StaffMemberID: "staff-1",
		BusinessID:    "biz-1",
		Provider:      entities.MeetingProviderZoom,
		AccessToken:   "zoom-token",
		Active:        true,
	}
}

func zoomTestAppointment() *entities.Appointment {
	return &entities.Appointment{
		ID:        "appt-1",
		ServiceID: "svc-1",
		StartTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 9, 45, 0, 0, time.UTC),
		Timezone:  "Europe/Madrid",
		Title:     "Consultation",
	}
}

func newZoomAdapter(t *testing.T, handler http.Handler) *ZoomAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewZoomAdapter(zoomTestConnection(), Deps{HTTPClient: server.Client()}).(*ZoomAdapter)
	adapter.baseURL = server.URL
	return adapter
}

func TestZoomAdapter_CreateMeeting(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the appointment onto the zoom payload", func(t *testing.T) {
		var got zoomCreateMeetingRequest
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/users/me/meetings", r.URL.Path)
			require.Equal(t, "Bearer zoom-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":987654321,"topic":"Consultation","join_url":"https://zoom.us/j/987654321","start_url":"https://zoom.us/s/987654321","password":"pw"}`)
		}))

		details, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		require.NoError(t, err)

		assert.Equal(t, "Consultation", got.Topic)
		assert.Equal(t, zoomMeetingTypeScheduled, got.Type)
		assert.Equal(t, "2026-03-10T09:00:00Z", got.StartTime)
		assert.Equal(t, 45, got.Duration)
		assert.Equal(t, "Europe/Madrid", got.Timezone)

		assert.Equal(t, "987654321", details.MeetingID)
		assert.Equal(t, "https://zoom.us/j/987654321", details.JoinURL)
		assert.Equal(t, "https://zoom.us/s/987654321", details.HostURL)
		assert.Equal(t, "pw", details.Password)
		assert.Equal(t, entities.MeetingProviderZoom, details.Provider)
		assert.True(t, details.Complete())
	})

	t.Run("returns a terminal error on api rejection", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":300,"message":"Invalid meeting topic"}`)
		}))

		_, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		assert.True(t, apperrors.IsCode(err, apperrors.CodeCreateFailed))
		assert.Contains(t, err.Error(), "Invalid meeting topic")
	})

	t.Run("returns the raw transport error on connection failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close() // connections now fail

		adapter := NewZoomAdapter(zoomTestConnection(), Deps{}).(*ZoomAdapter)
		adapter.baseURL = server.URL

		_, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrorCode(""), apperrors.CodeOf(err))
	})
}

func TestZoomAdapter_DeleteMeeting(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the meeting", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/meetings/987654321", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, adapter.DeleteMeeting(ctx, "987654321"))
	})

	t.Run("treats 404 as success", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		assert.NoError(t, adapter.DeleteMeeting(ctx, "987654321"))
	})

	t.Run("surfaces other failures", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		err := adapter.DeleteMeeting(ctx, "987654321")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDeleteFailed))
	})
}

func TestZoomAdapter_GetMeeting(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches meeting details", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/meetings/987654321", r.URL.Path)
			fmt.Fprint(w, `{"id":987654321,"join_url":"https://zoom.us/j/987654321"}`)
		}))

		details, err := adapter.GetMeeting(ctx, "987654321")
		require.NoError(t, err)
		assert.Equal(t, "987654321", details.MeetingID)
	})

	t.Run("reports missing meetings", func(t *testing.T) {
		adapter := newZoomAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code":3001,"message":"Meeting does not exist"}`)
		}))

		_, err := adapter.GetMeeting(ctx, "987654321")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeGetFailed))
	})
}
