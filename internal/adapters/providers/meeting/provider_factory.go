package meeting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/providers"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// Deps carries the collaborators every meeting adapter needs.
type Deps struct {
	Tokens      providers.TokenRefresher
	Connections repositories.ConnectionRepository
	HTTPClient  *http.Client
	Now         func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewMeetingProvider returns the adapter for the given provider kind, bound
// to one connection. Adding a provider means adding a case here and an
// adapter implementing MeetingProvider; call sites never branch on the kind
// themselves.
func NewMeetingProvider(kind entities.MeetingProviderKind, conn *entities.Connection, deps Deps) (providers.MeetingProvider, error) {
	switch kind {
	case entities.MeetingProviderZoom:
		return NewZoomAdapter(conn, deps), nil
	case entities.MeetingProviderMeet:
		return NewMeetAdapter(conn, deps), nil
	default:
		return nil, apperrors.NewValidationError(apperrors.CodeNoProvider, fmt.Sprintf("unknown meeting provider %q", kind))
	}
}

// Factory builds provider adapters from a fixed dependency set. It is the
// production implementation handed to the meeting service.
type Factory struct {
	deps Deps
}

// NewFactory creates a provider factory
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps.withDefaults()}
}

// NewProvider returns the adapter for kind bound to conn.
func (f *Factory) NewProvider(kind entities.MeetingProviderKind, conn *entities.Connection) (providers.MeetingProvider, error) {
	return NewMeetingProvider(kind, conn, f.deps)
}

// ensureToken refreshes the connection's access token if it has expired.
// A failed refresh already deactivated the connection; it surfaces here as
// an auth error so the caller records it terminally instead of retrying.
func ensureToken(ctx context.Context, deps Deps, conn *entities.Connection) error {
	if deps.Tokens == nil {
		return nil
	}
	if err := deps.Tokens.RefreshConnection(ctx, conn); err != nil {
		return apperrors.NewUnauthorizedError(apperrors.CodeAuthError, "connection token could not be refreshed", err)
	}
	return nil
}

// touchLastUsed stamps the connection after a successful provider call.
// Best effort: a failed stamp never fails the meeting operation.
func touchLastUsed(ctx context.Context, deps Deps, conn *entities.Connection) {
	if deps.Connections == nil {
		return
	}
	usedAt := deps.Now()
	if err := deps.Connections.TouchLastUsed(ctx, conn.ID, usedAt); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("failed to stamp connection last_used_at")
		return
	}
	conn.LastUsedAt = &usedAt
}
