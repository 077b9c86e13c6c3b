package entities

import (
	"time"
)

// Connection stores a staff member's OAuth credentials for one video provider.
// At most one active connection exists per (staff member, provider) pair; a
// new callback-created connection supersedes the previous one.
type Connection struct {
	ID             string              `json:"id" db:"id"`
	StaffMemberID  string              `json:"staff_member_id" db:"staff_member_id"`
	BusinessID     string              `json:"business_id" db:"business_id"`
	Provider       MeetingProviderKind `json:"provider" db:"provider"`
	UID            string              `json:"uid" db:"uid"`
	AccessToken    string              `json:"-" db:"access_token"`
	RefreshToken   string              `json:"-" db:"refresh_token"`
	TokenExpiresAt time.Time           `json:"token_expires_at" db:"token_expires_at"`
	Scopes         string              `json:"scopes" db:"scopes"`
	Active         bool                `json:"active" db:"active"`
	ConnectedAt    time.Time           `json:"connected_at" db:"connected_at"`
	LastUsedAt     *time.Time          `json:"last_used_at" db:"last_used_at"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// TokenExpired reports whether the access token needs a refresh.
func (c *Connection) TokenExpired(now time.Time) bool {
	return !c.TokenExpiresAt.After(now)
}
