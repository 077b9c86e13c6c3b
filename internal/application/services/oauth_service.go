package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
	"github.com/bookline/videomeet/pkg/config"
	apperrors "github.com/bookline/videomeet/pkg/errors"
	"github.com/bookline/videomeet/pkg/statetoken"
)

// ProviderEndpoints holds one provider's OAuth and identity endpoints.
// Overridable so tests can point at a local server.
type ProviderEndpoints struct {
	OAuth       oauth2.Endpoint
	IdentityURL string
	Scopes      []string
}

// DefaultZoomEndpoints returns Zoom's production endpoints
func DefaultZoomEndpoints() ProviderEndpoints {
	return ProviderEndpoints{
		OAuth: oauth2.Endpoint{
			AuthURL:  "https://zoom.us/oauth/authorize",
			TokenURL: "https://zoom.us/oauth/token",
		},
		IdentityURL: "https://api.zoom.us/v2/users/me",
		Scopes:      []string{"meeting:write", "user:read"},
	}
}

// DefaultGoogleEndpoints returns Google's production endpoints
func DefaultGoogleEndpoints() ProviderEndpoints {
	return ProviderEndpoints{
		OAuth: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		IdentityURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar.events",
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}
}

// OAuthService manages the OAuth credential lifecycle for staff members:
// building authorization URLs, completing callbacks into stored connections,
// and refreshing expired access tokens under a row lock.
type OAuthService struct {
	connections repositories.ConnectionRepository
	staff       repositories.StaffRepository
	zoomCreds   config.OAuthClientConfig
	googleCreds config.OAuthClientConfig
	signer      *statetoken.Signer
	httpClient  *http.Client
	metrics     *observability.Metrics
	now         func() time.Time

	zoomEndpoints   ProviderEndpoints
	googleEndpoints ProviderEndpoints
}

// NewOAuthService creates a new OAuth service
func NewOAuthService(
	connections repositories.ConnectionRepository,
	staff repositories.StaffRepository,
	zoomCreds config.OAuthClientConfig,
	googleCreds config.OAuthClientConfig,
	signer *statetoken.Signer,
) *OAuthService {
	return &OAuthService{
		connections:     connections,
		staff:           staff,
		zoomCreds:       zoomCreds,
		googleCreds:     googleCreds,
		signer:          signer,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		now:             time.Now,
		zoomEndpoints:   DefaultZoomEndpoints(),
		googleEndpoints: DefaultGoogleEndpoints(),
	}
}

// SetEndpoints overrides a provider's endpoints. Intended for tests.
func (s *OAuthService) SetEndpoints(provider entities.MeetingProviderKind, endpoints ProviderEndpoints) {
	switch provider {
	case entities.MeetingProviderZoom:
		s.zoomEndpoints = endpoints
	case entities.MeetingProviderMeet:
		s.googleEndpoints = endpoints
	}
}

// SetHTTPClient overrides the HTTP client used for token and identity
// requests. Intended for tests.
func (s *OAuthService) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// SetMetrics attaches application metrics. Left nil, outcome recording is a
// no-op.
func (s *OAuthService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// AuthorizationURL builds the provider's authorization URL with a freshly
// signed state token embedded in the query string.
func (s *OAuthService) AuthorizationURL(ctx context.Context, provider entities.MeetingProviderKind, businessID, staffMemberID, redirectURI string) (string, error) {
	cfg, _, err := s.oauthConfig(provider, redirectURI)
	if err != nil {
		return "", err
	}

	state, err := s.signer.Sign(statetoken.State{
		BusinessID:    businessID,
		StaffMemberID: staffMemberID,
		Provider:      string(provider),
	})
	if err != nil {
		return "", apperrors.NewInternalError("failed to sign state token", err)
	}

	opts := []oauth2.AuthCodeOption{}
	if provider == entities.MeetingProviderMeet {
		// Google only issues a refresh token for offline access with an
		// explicit consent prompt.
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	}

	return cfg.AuthCodeURL(state, opts...), nil
}

// HandleCallback completes the OAuth handshake: verifies the state token,
// exchanges the code for tokens, resolves the external account id, and
// persists the connection, superseding any previous active one for the same
// (staff member, provider) pair.
func (s *OAuthService) HandleCallback(ctx context.Context, provider entities.MeetingProviderKind, code, state, redirectURI string) (*entities.Connection, error) {
	payload, err := s.signer.Verify(state)
	if err != nil {
		if err == statetoken.ErrExpiredState {
			return nil, apperrors.NewUnauthorizedError(apperrors.CodeExpiredState, "state token has expired", err)
		}
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeInvalidState, "state token is invalid", err)
	}
	if payload.Provider != string(provider) {
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeInvalidState, "state token issued for a different provider", nil)
	}

	cfg, endpoints, err := s.oauthConfig(provider, redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError(apperrors.CodeAuthorizationFailed, "failed to exchange authorization code", err)
	}

	uid, err := s.fetchIdentity(ctx, endpoints.IdentityURL, token.AccessToken)
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.CodeAPIError, "failed to fetch external account id", err)
	}

	staff, err := s.staff.GetByID(ctx, payload.StaffMemberID)
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidIDs, "staff member lookup failed during callback")
	}
	if staff.BusinessID != payload.BusinessID {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidIDs, "staff member does not belong to the business in the state token")
	}

	// A new connection supersedes any previous active one for the pair.
	if err := s.connections.DeactivateByStaffAndProvider(ctx, staff.ID, provider); err != nil {
		return nil, apperrors.NewInternalError("failed to supersede previous connection", err)
	}

	now := s.now()
	conn := &entities.Connection{
		ID:             uuid.New().String(),
		StaffMemberID:  staff.ID,
		BusinessID:     staff.BusinessID,
		Provider:       provider,
		UID:            uid,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.Expiry,
		Scopes:         tokenScopes(token),
		Active:         true,
		ConnectedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, apperrors.NewInternalError("failed to persist connection", err)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("staff_member_id", staff.ID).
		Str("provider", string(provider)).
		Str("connection_id", conn.ID).
		Msg("oauth connection established")

	return conn, nil
}

// RefreshConnection refreshes the connection's access token if it has
// expired. The check-then-refresh sequence runs under an exclusive row lock
// so that concurrent callers trigger exactly one token exchange: late
// arrivals observe the already-refreshed row and return immediately. Any
// refresh failure deactivates the connection; an unrefreshable connection
// must not keep being retried forever.
func (s *OAuthService) RefreshConnection(ctx context.Context, conn *entities.Connection) error {
	if !conn.TokenExpired(s.now()) {
		return nil
	}

	var exchanged bool
	err := s.connections.WithLock(ctx, conn.ID, func(locked *entities.Connection) (*repositories.TokenUpdate, error) {
		if !locked.TokenExpired(s.now()) {
			// Another caller refreshed while we waited for the lock.
			*conn = *locked
			return nil, nil
		}

		cfg, _, err := s.oauthConfig(locked.Provider, "")
		if err != nil {
			return nil, err
		}

		stale := &oauth2.Token{
			AccessToken:  locked.AccessToken,
			RefreshToken: locked.RefreshToken,
			Expiry:       locked.TokenExpiresAt,
		}
		exchanged = true
		fresh, err := cfg.TokenSource(s.oauthContext(ctx), stale).Token()
		if err != nil {
			return nil, err
		}

		refreshToken := fresh.RefreshToken
		if refreshToken == "" {
			// Providers may omit the refresh token on rotation-free grants.
			refreshToken = locked.RefreshToken
		}

		conn.AccessToken = fresh.AccessToken
		conn.RefreshToken = refreshToken
		conn.TokenExpiresAt = fresh.Expiry

		return &repositories.TokenUpdate{
			AccessToken:    fresh.AccessToken,
			RefreshToken:   refreshToken,
			TokenExpiresAt: fresh.Expiry,
		}, nil
	})
	if err != nil {
		observability.RecordTokenRefresh(ctx, s.metrics, string(conn.Provider), false)

		if deactivateErr := s.connections.Deactivate(ctx, conn.ID); deactivateErr != nil {
			observability.LoggerFromContext(ctx).Error().
				Err(deactivateErr).
				Str("connection_id", conn.ID).
				Msg("failed to deactivate connection after refresh failure")
		}
		conn.Active = false

		return apperrors.NewUnauthorizedError(apperrors.CodeRefreshFailed, "failed to refresh connection token", err)
	}

	// Only actual exchanges count; lock waiters that found a fresh token do
	// not inflate the counter.
	if exchanged {
		observability.RecordTokenRefresh(ctx, s.metrics, string(conn.Provider), true)
	}

	return nil
}

func (s *OAuthService) oauthConfig(provider entities.MeetingProviderKind, redirectURI string) (*oauth2.Config, ProviderEndpoints, error) {
	var creds config.OAuthClientConfig
	var endpoints ProviderEndpoints

	switch provider {
	case entities.MeetingProviderZoom:
		creds, endpoints = s.zoomCreds, s.zoomEndpoints
	case entities.MeetingProviderMeet:
		creds, endpoints = s.googleCreds, s.googleEndpoints
	default:
		return nil, ProviderEndpoints{}, apperrors.NewValidationError(apperrors.CodeNoProvider, fmt.Sprintf("unknown provider %q", provider))
	}

	if !creds.Configured() {
		return nil, ProviderEndpoints{}, apperrors.NewConfigurationError(apperrors.CodeMissingCredentials, fmt.Sprintf("%s oauth client credentials are not configured", provider))
	}

	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoints.OAuth,
		RedirectURL:  redirectURI,
		Scopes:       endpoints.Scopes,
	}, endpoints, nil
}

// oauthContext makes the oauth2 package use our HTTP client.
func (s *OAuthService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *OAuthService) fetchIdentity(ctx context.Context, identityURL, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identityURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	var identity struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return "", err
	}
	if identity.ID == "" {
		return "", fmt.Errorf("identity endpoint returned no account id")
	}

	return identity.ID, nil
}

func tokenScopes(token *oauth2.Token) string {
	if scope, ok := token.Extra("scope").(string); ok {
		return scope
	}
	return ""
}
