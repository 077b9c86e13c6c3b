package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/videomeet/internal/domain/entities"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

func meetTestConnection() *entities.Connection {
	return &entities.Connection{
		ID:            "conn-2",
		StaffMemberID: "staff-1",
		BusinessID:    "biz-1",
		Provider:      entities.MeetingProviderMeet,
		AccessToken:   "google-token",
		Active:        true,
	}
}

func newMeetAdapter(t *testing.T, handler http.Handler) *MeetAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewMeetAdapter(meetTestConnection(), Deps{HTTPClient: server.Client()}).(*MeetAdapter)
	adapter.baseURL = server.URL
	return adapter
}

func TestMeetAdapter_CreateMeeting(t *testing.T) {
	ctx := context.Background()

	t.Run("requests a meet conference and extracts the entry point", func(t *testing.T) {
		var got meetEvent
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/calendars/primary/events", r.URL.Path)
			require.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
			require.Equal(t, "Bearer google-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			fmt.Fprint(w, `{
				"id": "evt-abc123",
				"htmlLink": "https://calendar.google.com/event?eid=abc",
				"conferenceData": {
					"conferenceId": "abc-defg-hij",
					"entryPoints": [
						{"entryPointType": "phone", "uri": "tel:+34-900-000-000"},
						{"entryPointType": "video", "uri": "https://meet.google.com/abc-defg-hij", "passcode": "1234"}
					]
				}
			}`)
		}))

		details, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		require.NoError(t, err)

		require.NotNil(t, got.ConferenceData)
		require.NotNil(t, got.ConferenceData.CreateRequest)
		assert.NotEmpty(t, got.ConferenceData.CreateRequest.RequestID)
		assert.Equal(t, "hangoutsMeet", got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
		assert.Equal(t, "Consultation", got.Summary)
		require.NotNil(t, got.Start)
		assert.Equal(t, "Europe/Madrid", got.Start.TimeZone)

		assert.Equal(t, "evt-abc123", details.MeetingID)
		assert.Equal(t, "https://meet.google.com/abc-defg-hij", details.JoinURL)
		assert.Equal(t, "https://calendar.google.com/event?eid=abc", details.HostURL)
		assert.Equal(t, "1234", details.Password)
		assert.Equal(t, entities.MeetingProviderMeet, details.Provider)
	})

	t.Run("falls back to the legacy hangout link", func(t *testing.T) {
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"evt-abc123","hangoutLink":"https://meet.google.com/abc-defg-hij"}`)
		}))

		details, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		require.NoError(t, err)
		assert.Equal(t, "https://meet.google.com/abc-defg-hij", details.JoinURL)
	})

	t.Run("rejects an event without a video entry point", func(t *testing.T) {
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"evt-abc123"}`)
		}))

		_, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		assert.True(t, apperrors.IsCode(err, apperrors.CodeParseError))
	})

	t.Run("returns a terminal error on api rejection", func(t *testing.T) {
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"Calendar API has not been used"}}`)
		}))

		_, err := adapter.CreateMeeting(ctx, zoomTestAppointment())
		assert.True(t, apperrors.IsCode(err, apperrors.CodeCreateFailed))
		assert.Contains(t, err.Error(), "Calendar API has not been used")
	})
}

func TestMeetAdapter_DeleteMeeting(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the backing event", func(t *testing.T) {
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/calendars/primary/events/evt-abc123", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, adapter.DeleteMeeting(ctx, "evt-abc123"))
	})

	t.Run("treats 404 and 410 as success", func(t *testing.T) {
		for _, status := range []int{http.StatusNotFound, http.StatusGone} {
			adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			assert.NoError(t, adapter.DeleteMeeting(ctx, "evt-abc123"))
		}
	})

	t.Run("surfaces other failures", func(t *testing.T) {
		adapter := newMeetAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		err := adapter.DeleteMeeting(ctx, "evt-abc123")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDeleteFailed))
	})
}

func TestNewMeetingProvider(t *testing.T) {
	conn := meetTestConnection()

	t.Run("builds the adapter for each known provider", func(t *testing.T) {
		zoom, err := NewMeetingProvider(entities.MeetingProviderZoom, conn, Deps{})
		require.NoError(t, err)
		assert.IsType(t, &ZoomAdapter{}, zoom)

		meet, err := NewMeetingProvider(entities.MeetingProviderMeet, conn, Deps{})
		require.NoError(t, err)
		assert.IsType(t, &MeetAdapter{}, meet)
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		_, err := NewMeetingProvider(entities.MeetingProviderNone, conn, Deps{})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNoProvider))
	})
}
