package repositories

import (
	"context"

	"github.com/nexus-academy/catalog-service/internal/models"
)

// UserFilters defines filters for user queries
type UserFilters struct {
	Query  string // Search query for email
	Limit  int    // Page size
	Offset int    // Offset for pagination
}

// MembershipUpdate carries the admin editable fields of a user. Nil fields
// are left untouched; ClearCohort removes the assigned master cohort.
type MembershipUpdate struct {
	Role         *models.MembershipRole
	MasterCohort *string
	ClearCohort  bool
	IsAdmin      *bool
}

// UserRepository reads and updates users owned by the identity provider.
// Signup and credentials stay with the provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	UpdateMembership(ctx context.Context, id string, update MembershipUpdate) (*models.User, error)
	Delete(ctx context.Context, id string) error
}
