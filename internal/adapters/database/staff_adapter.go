package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/clients/postgres"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

// StaffAdapter implements the StaffRepository interface
type StaffAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStaffAdapter creates a new staff adapter
func NewStaffAdapter(client *postgres.Client) repositories.StaffRepository {
	return &StaffAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a staff member by ID
func (a *StaffAdapter) GetByID(ctx context.Context, id string) (*entities.StaffMember, error) {
	query, args, err := a.db.Select(
		"id", "business_id", "name", "email", "active",
		"created_at", "updated_at",
	).From("staff_members").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	staff := &entities.StaffMember{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&staff.ID,
		&staff.BusinessID,
		&staff.Name,
		&staff.Email,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("staff member with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get staff member", err)
	}

	return staff, nil
}
