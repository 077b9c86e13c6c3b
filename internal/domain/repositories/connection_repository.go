package repositories

import (
	"context"
	"time"

	"github.com/bookline/videomeet/internal/domain/entities"
)

// TokenUpdate carries refreshed token fields to be persisted while the
// connection row is still locked.
type TokenUpdate struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// ConnectionRepository defines the interface for OAuth connection persistence
type ConnectionRepository interface {
	// Create persists a new connection
	Create(ctx context.Context, conn *entities.Connection) error

	// GetByID retrieves a connection by ID
	GetByID(ctx context.Context, id string) (*entities.Connection, error)

	// GetActiveByStaffAndProvider returns the single active connection for
	// a (staff member, provider) pair, or a not-found error.
	GetActiveByStaffAndProvider(ctx context.Context, staffMemberID string, provider entities.MeetingProviderKind) (*entities.Connection, error)

	// DeactivateByStaffAndProvider deactivates any active connection for
	// the pair; used when a new callback-created connection supersedes it.
	DeactivateByStaffAndProvider(ctx context.Context, staffMemberID string, provider entities.MeetingProviderKind) error

	// Deactivate marks one connection inactive.
	Deactivate(ctx context.Context, id string) error

	// TouchLastUsed stamps last_used_at.
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error

	// WithLock runs fn while holding an exclusive row lock on the
	// connection, passing the row's current state as read under the lock.
	// A non-nil TokenUpdate returned by fn is applied inside the same
	// transaction before the lock is released; an error from fn rolls the
	// transaction back and is returned unchanged.
	WithLock(ctx context.Context, id string, fn func(locked *entities.Connection) (*TokenUpdate, error)) error
}
