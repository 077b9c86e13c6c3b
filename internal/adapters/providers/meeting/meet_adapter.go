package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// MeetAdapter implements MeetingProvider against the Google Calendar API.
// A meeting is a calendar event carrying a Meet conference; the join URL
// lives in the event's conference data.
type MeetAdapter struct {
	conn    *entities.Connection
	deps    Deps
	baseURL string
}

// NewMeetAdapter creates a Google Meet adapter bound to one connection
func NewMeetAdapter(conn *entities.Connection, deps Deps) providers.MeetingProvider {
	return &MeetAdapter{
		conn:    conn,
		deps:    deps.withDefaults(),
		baseURL: "https://www.googleapis.com/calendar/v3",
	}
}

type meetEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type meetEntryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri"`
	Passcode       string `json:"passcode,omitempty"`
}

type meetConferenceData struct {
	CreateRequest *meetCreateRequest `json:"createRequest,omitempty"`
	ConferenceID  string             `json:"conferenceId,omitempty"`
	EntryPoints   []meetEntryPoint   `json:"entryPoints,omitempty"`
}

type meetCreateRequest struct {
	RequestID             string          `json:"requestId"`
	ConferenceSolutionKey meetSolutionKey `json:"conferenceSolutionKey"`
}

type meetSolutionKey struct {
	Type string `json:"type"`
}

type meetEvent struct {
	ID             string              `json:"id,omitempty"`
	Summary        string              `json:"summary,omitempty"`
	Description    string              `json:"description,omitempty"`
	Start          *meetEventTime      `json:"start,omitempty"`
	End            *meetEventTime      `json:"end,omitempty"`
	HTMLLink       string              `json:"htmlLink,omitempty"`
	HangoutLink    string              `json:"hangoutLink,omitempty"`
	ConferenceData *meetConferenceData `json:"conferenceData,omitempty"`
}

// CreateMeeting inserts a calendar event with a Meet conference request and
// extracts the video entry point from the response
func (a *MeetAdapter) CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.MeetingDetails, error) {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return nil, err
	}

	event := meetEvent{
		Summary:     appointment.Title,
		Description: appointment.Description,
		Start: &meetEventTime{
			DateTime: appointment.StartTime.Format(time.RFC3339),
			TimeZone: appointment.Timezone,
		},
		End: &meetEventTime{
			DateTime: appointment.EndTime.Format(time.RFC3339),
			TimeZone: appointment.Timezone,
		},
		ConferenceData: &meetConferenceData{
			CreateRequest: &meetCreateRequest{
				RequestID:             uuid.New().String(),
				ConferenceSolutionKey: meetSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal calendar event", err)
	}

	url := a.baseURL + "/calendars/primary/events?conferenceDataVersion=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build calendar request", err)
	}
	a.addHeaders(req)

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExternalError(apperrors.CodeCreateFailed, calendarErrorMessage(resp), nil)
	}

	var created meetEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, apperrors.NewExternalError(apperrors.CodeParseError, "failed to decode calendar event response", err)
	}

	details, err := a.eventToDetails(&created)
	if err != nil {
		return nil, err
	}

	a.touchLastUsed(ctx)
	return details, nil
}

// GetMeeting looks up the calendar event backing a meeting
func (a *MeetAdapter) GetMeeting(ctx context.Context, meetingID string) (*entities.MeetingDetails, error) {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/calendars/primary/events/"+meetingID, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build calendar request", err)
	}
	a.addHeaders(req)

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExternalError(apperrors.CodeGetFailed, calendarErrorMessage(resp), nil)
	}

	var event meetEvent
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, apperrors.NewExternalError(apperrors.CodeParseError, "failed to decode calendar event response", err)
	}

	details, err := a.eventToDetails(&event)
	if err != nil {
		return nil, err
	}

	a.touchLastUsed(ctx)
	return details, nil
}

// DeleteMeeting deletes the backing calendar event. 404 and 410 both mean
// the event is already gone and count as success.
func (a *MeetAdapter) DeleteMeeting(ctx context.Context, meetingID string) error {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/calendars/primary/events/"+meetingID, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build calendar request", err)
	}
	a.addHeaders(req)

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound, http.StatusGone:
		a.touchLastUsed(ctx)
		return nil
	default:
		return apperrors.NewExternalError(apperrors.CodeDeleteFailed, calendarErrorMessage(resp), nil)
	}
}

// eventToDetails extracts the video entry point from the event's conference
// data, falling back to the legacy hangoutLink field.
func (a *MeetAdapter) eventToDetails(event *meetEvent) (*entities.MeetingDetails, error) {
	joinURL := ""
	password := ""
	if event.ConferenceData != nil {
		for _, entry := range event.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" {
				joinURL = entry.URI
				password = entry.Passcode
				break
			}
		}
	}
	if joinURL == "" {
		joinURL = event.HangoutLink
	}
	if joinURL == "" {
		return nil, apperrors.NewExternalError(apperrors.CodeParseError, "calendar event has no video entry point", nil)
	}

	return &entities.MeetingDetails{
		MeetingID: event.ID,
		JoinURL:   joinURL,
		HostURL:   event.HTMLLink,
		Password:  password,
		Provider:  entities.MeetingProviderMeet,
	}, nil
}

func (a *MeetAdapter) addHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

func (a *MeetAdapter) touchLastUsed(ctx context.Context) {
	touchLastUsed(ctx, a.deps, a.conn)
}

func calendarErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("calendar api error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Sprintf("calendar api error: status %d", resp.StatusCode)
}
