package casdoor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/nexus-academy/catalog-service/internal/cache"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

// Casdoor user properties holding the membership fields
const (
	PropertyMembershipRole = "membership_role"
	PropertyMasterCohort   = "master_cohort"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// UserClient is the part of the Casdoor SDK client the repository calls.
type UserClient interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
	GetUserByEmail(email string) (*casdoorsdk.User, error)
	GetPaginationUsers(p int, pageSize int, queryMap map[string]string) ([]*casdoorsdk.User, int, error)
	UpdateUser(user *casdoorsdk.User) (bool, error)
	DeleteUser(user *casdoorsdk.User) (bool, error)
}

type UserCasdoor struct {
	client UserClient
	cache  *cache.CacheHelper
}

// NewClient builds the SDK client shared by the repository and the auth middleware.
func NewClient(config CasdoorConfig) *casdoorsdk.Client {
	return casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
}

func NewUserCasdoor(config CasdoorConfig, userCache *cache.CacheHelper) repositories.UserRepository {
	return NewUserCasdoorWithClient(NewClient(config), userCache)
}

func NewUserCasdoorWithClient(client UserClient, userCache *cache.CacheHelper) repositories.UserRepository {
	return &UserCasdoor{
		client: client,
		cache:  userCache,
	}
}

// ===== CONVERSION =====

// ToModel converts a Casdoor user to the internal model. A user without a
// membership_role property has signed up but bought nothing, so it is free.
func ToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	role := models.RoleFree
	if raw := casdoorUser.Properties[PropertyMembershipRole]; strings.TrimSpace(raw) != "" {
		role = models.ParseMembershipRole(raw)
	}

	var cohort *string
	if c := strings.TrimSpace(casdoorUser.Properties[PropertyMasterCohort]); c != "" {
		cohort = &c
	}

	var avatar *string
	if casdoorUser.Avatar != "" {
		a := casdoorUser.Avatar
		avatar = &a
	}

	name := casdoorUser.DisplayName
	if name == "" {
		name = casdoorUser.Name
	}

	return &models.User{
		ID:            casdoorUser.Id,
		Name:          name,
		Email:         casdoorUser.Email,
		Role:          role,
		MasterCohort:  cohort,
		IsAdmin:       casdoorUser.IsAdmin,
		AvatarURL:     avatar,
		EmailVerified: casdoorUser.EmailVerified,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// ===== READ OPERATIONS =====

func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.cache.CacheOrExecute(ctx, "id:"+id, &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		casdoorUser, err := u.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, fmt.Errorf("user %s: %w", id, repositories.ErrUserNotFound)
		}
		return ToModel(casdoorUser), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserCasdoor) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := u.cache.CacheOrExecute(ctx, "email:"+email, &user, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		casdoorUser, err := u.client.GetUserByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("failed to get user by email from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, fmt.Errorf("user with email %s: %w", email, repositories.ErrUserNotFound)
		}
		return ToModel(casdoorUser), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List retrieves a paginated list of users
func (u *UserCasdoor) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	if filters.Limit <= 0 {
		filters.Limit = 10
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}

	// Casdoor uses 1-indexed pages
	page := (filters.Offset / filters.Limit) + 1

	queryMap := make(map[string]string)
	if filters.Query != "" {
		queryMap["field"] = "email"
		queryMap["value"] = filters.Query
	}

	casdoorUsers, count, err := u.client.GetPaginationUsers(page, filters.Limit, queryMap)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get users from Casdoor: %w", err)
	}

	users := make([]*models.User, 0, len(casdoorUsers))
	for _, casdoorUser := range casdoorUsers {
		if user := ToModel(casdoorUser); user != nil {
			users = append(users, user)
		}
	}

	return users, int64(count), nil
}

// ===== WRITE OPERATIONS =====

// UpdateMembership writes role, cohort and admin flag back to Casdoor.
func (u *UserCasdoor) UpdateMembership(ctx context.Context, id string, update repositories.MembershipUpdate) (*models.User, error) {
	casdoorUser, err := u.load(id)
	if err != nil {
		return nil, err
	}

	if casdoorUser.Properties == nil {
		casdoorUser.Properties = map[string]string{}
	}
	if update.Role != nil {
		casdoorUser.Properties[PropertyMembershipRole] = string(*update.Role)
	}
	if update.ClearCohort {
		delete(casdoorUser.Properties, PropertyMasterCohort)
	} else if update.MasterCohort != nil {
		casdoorUser.Properties[PropertyMasterCohort] = strings.TrimSpace(*update.MasterCohort)
	}
	if update.IsAdmin != nil {
		casdoorUser.IsAdmin = *update.IsAdmin
	}

	ok, err := u.client.UpdateUser(casdoorUser)
	if err != nil {
		return nil, fmt.Errorf("failed to update user in Casdoor: %w", err)
	}
	if !ok {
		return nil, errors.New("casdoor rejected user update")
	}

	user := ToModel(casdoorUser)
	u.invalidate(ctx, user)
	return user, nil
}

func (u *UserCasdoor) Delete(ctx context.Context, id string) error {
	casdoorUser, err := u.load(id)
	if err != nil {
		return err
	}

	ok, err := u.client.DeleteUser(casdoorUser)
	if err != nil {
		return fmt.Errorf("failed to delete user in Casdoor: %w", err)
	}
	if !ok {
		return errors.New("casdoor rejected user delete")
	}

	u.invalidate(ctx, ToModel(casdoorUser))
	return nil
}

// load always goes to Casdoor; writes must not start from a cached copy.
func (u *UserCasdoor) load(id string) (*casdoorsdk.User, error) {
	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrUserNotFound)
	}
	return casdoorUser, nil
}

func (u *UserCasdoor) invalidate(ctx context.Context, user *models.User) {
	if user == nil {
		return
	}
	cache.SafeDelete(ctx, u.cache, "id:"+user.ID, "email:"+strings.ToLower(user.Email))
}
