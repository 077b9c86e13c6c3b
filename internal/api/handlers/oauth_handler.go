package handlers

import (
	"fmt"
	"net/http"

	"github.com/bookline/videomeet/internal/application/services"
	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
)

// OAuthHandler handles the OAuth connect flow for video providers
type OAuthHandler struct {
	oauth       *services.OAuthService
	connections repositories.ConnectionRepository

	// publicBaseURL is the externally reachable base of this API, used to
	// build the redirect URI the provider sends the browser back to.
	publicBaseURL string
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauth *services.OAuthService, connections repositories.ConnectionRepository, publicBaseURL string) *OAuthHandler {
	return &OAuthHandler{
		oauth:         oauth,
		connections:   connections,
		publicBaseURL: publicBaseURL,
	}
}

// Authorize handles GET /api/oauth/{provider}/authorize
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	businessID := r.URL.Query().Get("business_id")
	staffMemberID := r.URL.Query().Get("staff_member_id")
	if businessID == "" || staffMemberID == "" {
		respondWithError(w, http.StatusBadRequest, "business_id and staff_member_id are required")
		return
	}

	authURL, err := h.oauth.AuthorizationURL(r.Context(), provider, businessID, staffMemberID, h.redirectURI(provider))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"authorization_url": authURL,
	})
}

// Connect handles GET /api/oauth/{provider}/connect. Browser entry point:
// sends the staff member straight to the provider's consent screen.
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	businessID := r.URL.Query().Get("business_id")
	staffMemberID := r.URL.Query().Get("staff_member_id")
	if businessID == "" || staffMemberID == "" {
		respondWithError(w, http.StatusBadRequest, "business_id and staff_member_id are required")
		return
	}

	authURL, err := h.oauth.AuthorizationURL(r.Context(), provider, businessID, staffMemberID, h.redirectURI(provider))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /api/oauth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		// The user denied the consent screen or the provider aborted.
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("authorization was not granted: %s", errCode))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		respondWithError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	conn, err := h.oauth.HandleCallback(r.Context(), provider, code, state, h.redirectURI(provider))
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).
			Str("provider", string(provider)).
			Msg("oauth callback failed")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"connection": connectionPayload(conn),
	})
}

// GetConnection handles GET /api/staff/{id}/connections/{provider}
func (h *OAuthHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	staffMemberID := r.PathValue("id")
	if staffMemberID == "" {
		respondWithError(w, http.StatusBadRequest, "staff member ID is required")
		return
	}

	conn, err := h.connections.GetActiveByStaffAndProvider(r.Context(), staffMemberID, provider)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"connection": connectionPayload(conn),
	})
}

// Disconnect handles DELETE /api/staff/{id}/connections/{provider}
func (h *OAuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	staffMemberID := r.PathValue("id")
	if staffMemberID == "" {
		respondWithError(w, http.StatusBadRequest, "staff member ID is required")
		return
	}

	if err := h.connections.DeactivateByStaffAndProvider(r.Context(), staffMemberID, provider); err != nil {
		respondWithAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OAuthHandler) redirectURI(provider entities.MeetingProviderKind) string {
	return fmt.Sprintf("%s/api/oauth/%s/callback", h.publicBaseURL, provider)
}

func parseProvider(r *http.Request) (entities.MeetingProviderKind, bool) {
	return entities.ParseMeetingProvider(r.PathValue("provider"))
}

// connectionPayload is the public view of a connection. Tokens never leave
// the service.
func connectionPayload(conn *entities.Connection) map[string]interface{} {
	payload := map[string]interface{}{
		"id":              conn.ID,
		"staff_member_id": conn.StaffMemberID,
		"business_id":     conn.BusinessID,
		"provider":        string(conn.Provider),
		"uid":             conn.UID,
		"active":          conn.Active,
		"connected_at":    conn.ConnectedAt,
	}
	if conn.LastUsedAt != nil {
		payload["last_used_at"] = *conn.LastUsedAt
	}
	return payload
}
