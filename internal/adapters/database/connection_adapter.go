package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/clients/postgres"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

var connectionColumns = []interface{}{
	"id", "staff_member_id", "business_id", "provider", "uid",
	"access_token", "refresh_token", "token_expires_at", "scopes",
	"active", "connected_at", "last_used_at",
	"created_at", "updated_at",
}

// ConnectionAdapter implements the ConnectionRepository interface
type ConnectionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConnectionAdapter creates a new connection adapter
func NewConnectionAdapter(client *postgres.Client) repositories.ConnectionRepository {
	return &ConnectionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new connection
func (a *ConnectionAdapter) Create(ctx context.Context, conn *entities.Connection) error {
	record := goqu.Record{
		"id":               conn.ID,
		"staff_member_id":  conn.StaffMemberID,
		"business_id":      conn.BusinessID,
		"provider":         conn.Provider,
		"uid":              conn.UID,
		"access_token":     conn.AccessToken,
		"refresh_token":    conn.RefreshToken,
		"token_expires_at": conn.TokenExpiresAt,
		"scopes":           conn.Scopes,
		"active":           conn.Active,
		"connected_at":     conn.ConnectedAt,
		"created_at":       conn.CreatedAt,
		"updated_at":       conn.UpdatedAt,
	}

	query, args, err := a.db.Insert("connections").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create connection", err)
	}

	return nil
}

// GetByID retrieves a connection by ID
func (a *ConnectionAdapter) GetByID(ctx context.Context, id string) (*entities.Connection, error) {
	query, args, err := a.db.Select(connectionColumns...).
		From("connections").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	conn, err := scanConnection(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("connection with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get connection", err)
	}

	return conn, nil
}

// GetActiveByStaffAndProvider returns the single active connection for a
// (staff member, provider) pair
func (a *ConnectionAdapter) GetActiveByStaffAndProvider(ctx context.Context, staffMemberID string, provider entities.MeetingProviderKind) (*entities.Connection, error) {
	query, args, err := a.db.Select(connectionColumns...).
		From("connections").
		Where(goqu.Ex{
			"staff_member_id": staffMemberID,
			"provider":        provider,
			"active":          true,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	conn, err := scanConnection(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no active %s connection for staff member %s", provider, staffMemberID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get connection", err)
	}

	return conn, nil
}

// DeactivateByStaffAndProvider deactivates any active connection for the pair
func (a *ConnectionAdapter) DeactivateByStaffAndProvider(ctx context.Context, staffMemberID string, provider entities.MeetingProviderKind) error {
	query, args, err := a.db.Update("connections").
		Set(goqu.Record{"active": false, "updated_at": time.Now()}).
		Where(goqu.Ex{
			"staff_member_id": staffMemberID,
			"provider":        provider,
			"active":          true,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to deactivate connections", err)
	}

	return nil
}

// Deactivate marks one connection inactive
func (a *ConnectionAdapter) Deactivate(ctx context.Context, id string) error {
	query, args, err := a.db.Update("connections").
		Set(goqu.Record{"active": false, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to deactivate connection", err)
	}

	return nil
}

// TouchLastUsed stamps last_used_at
func (a *ConnectionAdapter) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	query, args, err := a.db.Update("connections").
		Set(goqu.Record{"last_used_at": usedAt, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to stamp last_used_at", err)
	}

	return nil
}

// WithLock runs fn while holding SELECT ... FOR UPDATE on the connection
// row. Postgres serializes concurrent acquisitions of the row lock, so only
// one caller at a time observes the row and applies a token update; the rest
// block until commit and then see the refreshed state.
func (a *ConnectionAdapter) WithLock(ctx context.Context, id string, fn func(locked *entities.Connection) (*repositories.TokenUpdate, error)) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := a.db.Select(connectionColumns...).
		From("connections").
		Where(goqu.Ex{"id": id}).
		ForUpdate(goqu.Wait).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build lock query", err)
	}

	conn, err := scanConnection(tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError(fmt.Sprintf("connection with id %s not found", id))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to lock connection", err)
	}

	update, err := fn(conn)
	if err != nil {
		return err
	}

	if update != nil {
		updateSQL, updateArgs, err := a.db.Update("connections").
			Set(goqu.Record{
				"access_token":     update.AccessToken,
				"refresh_token":    update.RefreshToken,
				"token_expires_at": update.TokenExpiresAt,
				"updated_at":       time.Now(),
			}).
			Where(goqu.Ex{"id": id}).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build token update query", err)
		}

		if _, err := tx.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
			return apperrors.NewInternalError("failed to persist refreshed tokens", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit connection update", err)
	}

	return nil
}

func scanConnection(row rowScanner) (*entities.Connection, error) {
	conn := &entities.Connection{}
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&conn.ID,
		&conn.StaffMemberID,
		&conn.BusinessID,
		&conn.Provider,
		&conn.UID,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.TokenExpiresAt,
		&conn.Scopes,
		&conn.Active,
		&conn.ConnectedAt,
		&lastUsedAt,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		conn.LastUsedAt = &lastUsedAt.Time
	}

	return conn, nil
}
