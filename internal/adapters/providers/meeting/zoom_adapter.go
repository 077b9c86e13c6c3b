package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// zoomMeetingTypeScheduled is Zoom's meeting type for a one-off scheduled
// meeting (as opposed to instant or recurring).
const zoomMeetingTypeScheduled = 2

// ZoomAdapter implements MeetingProvider against the Zoom REST API
type ZoomAdapter struct {
	conn    *entities.Connection
	deps    Deps
	baseURL string
}

// NewZoomAdapter creates a Zoom adapter bound to one connection
func NewZoomAdapter(conn *entities.Connection, deps Deps) providers.MeetingProvider {
	return &ZoomAdapter{
		conn:    conn,
		deps:    deps.withDefaults(),
		baseURL: "https://api.zoom.us/v2",
	}
}

type zoomCreateMeetingRequest struct {
	Topic     string `json:"topic"`
	Type      int    `json:"type"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone,omitempty"`
	Agenda    string `json:"agenda,omitempty"`
}

type zoomMeetingResponse struct {
	ID       int64  `json:"id"`
	Topic    string `json:"topic"`
	JoinURL  string `json:"join_url"`
	StartURL string `json:"start_url"`
	Password string `json:"password"`
}

// CreateMeeting provisions a Zoom meeting for the appointment
func (a *ZoomAdapter) CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.MeetingDetails, error) {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return nil, err
	}

	payload := zoomCreateMeetingRequest{
		Topic:     appointment.Title,
		Type:      zoomMeetingTypeScheduled,
		StartTime: appointment.StartTime.UTC().Format(time.RFC3339),
		Duration:  appointment.DurationMinutes(),
		Timezone:  appointment.Timezone,
		Agenda:    appointment.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal zoom meeting request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/users/me/meetings", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build zoom request", err)
	}
	a.addHeaders(req)

	// Transport faults are returned unchanged: the job layer retries them.
	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apperrors.NewExternalError(apperrors.CodeCreateFailed, zoomErrorMessage(resp), nil)
	}

	var meeting zoomMeetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&meeting); err != nil {
		return nil, apperrors.NewExternalError(apperrors.CodeParseError, "failed to decode zoom meeting response", err)
	}

	a.touchLastUsed(ctx)

	return &entities.MeetingDetails{
		MeetingID: strconv.FormatInt(meeting.ID, 10),
		JoinURL:   meeting.JoinURL,
		HostURL:   meeting.StartURL,
		Password:  meeting.Password,
		Provider:  entities.MeetingProviderZoom,
	}, nil
}

// GetMeeting looks up a Zoom meeting by id
func (a *ZoomAdapter) GetMeeting(ctx context.Context, meetingID string) (*entities.MeetingDetails, error) {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/meetings/"+meetingID, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build zoom request", err)
	}
	a.addHeaders(req)

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExternalError(apperrors.CodeGetFailed, zoomErrorMessage(resp), nil)
	}

	var meeting zoomMeetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&meeting); err != nil {
		return nil, apperrors.NewExternalError(apperrors.CodeParseError, "failed to decode zoom meeting response", err)
	}

	a.touchLastUsed(ctx)

	return &entities.MeetingDetails{
		MeetingID: strconv.FormatInt(meeting.ID, 10),
		JoinURL:   meeting.JoinURL,
		HostURL:   meeting.StartURL,
		Password:  meeting.Password,
		Provider:  entities.MeetingProviderZoom,
	}, nil
}

// DeleteMeeting removes a Zoom meeting. A 404 means the meeting is already
// gone from Zoom's perspective and counts as success.
func (a *ZoomAdapter) DeleteMeeting(ctx context.Context, meetingID string) error {
	if err := ensureToken(ctx, a.deps, a.conn); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/meetings/"+meetingID, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build zoom request", err)
	}
	a.addHeaders(req)

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		a.touchLastUsed(ctx)
		return nil
	default:
		return apperrors.NewExternalError(apperrors.CodeDeleteFailed, zoomErrorMessage(resp), nil)
	}
}

func (a *ZoomAdapter) addHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

func (a *ZoomAdapter) touchLastUsed(ctx context.Context) {
	touchLastUsed(ctx, a.deps, a.conn)
}

func zoomErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("zoom api error (status %d): %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Sprintf("zoom api error: status %d", resp.StatusCode)
}
