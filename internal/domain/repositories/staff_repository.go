package repositories

import (
	"context"

	"github.com/bookline/videomeet/internal/domain/entities"
)

// StaffRepository defines the interface for staff member lookups
type StaffRepository interface {
	// GetByID retrieves a staff member by ID
	GetByID(ctx context.Context, id string) (*entities.StaffMember, error)
}

// ServiceRepository defines the interface for service lookups
type ServiceRepository interface {
	// GetByID retrieves a service by ID
	GetByID(ctx context.Context, id string) (*entities.Service, error)
}
