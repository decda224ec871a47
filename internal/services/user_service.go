package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

type userService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewUserService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) UserService {
	return &userService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *userService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, classify(err, ErrUserNotFound, "get user")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, filters repositories.UserFilters, actor *models.User) (*UserListResponse, error) {
	if err := requireAdmin(actor, "user", "list"); err != nil {
		return nil, err
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, upstream("list users", err)
	}

	return &UserListResponse{Users: users, Total: total, Page: page, Size: filters.Limit}, nil
}

// UpdateMembership changes role, cohort or admin flag. Admins may not revoke
// their own admin flag so the console can't lock itself out.
func (s *userService) UpdateMembership(ctx context.Context, id string, req *UpdateMembershipRequest, actor *models.User) (*models.User, error) {
	if err := requireAdmin(actor, "user", "update"); err != nil {
		return nil, err
	}
	s.logger.Info("Updating user membership", "user_id", id, "actor_id", actor.ID)

	if errs := s.validator.GetBusinessValidator().ValidateMembershipUpdate(req); len(errs) > 0 {
		return nil, errs
	}

	if req.IsAdmin != nil && !*req.IsAdmin && id == actor.ID {
		return nil, NewBusinessRuleError("self_demotion", "admins cannot remove their own admin flag", map[string]interface{}{
			"user_id": id,
		})
	}

	update := repositories.MembershipUpdate{
		Role:    req.Role,
		IsAdmin: req.IsAdmin,
	}
	if req.MasterCohort != nil {
		cohort := strings.TrimSpace(*req.MasterCohort)
		if cohort == "" {
			update.ClearCohort = true
		} else {
			update.MasterCohort = &cohort
		}
	}

	user, err := s.repo.User().UpdateMembership(ctx, id, update)
	if err != nil {
		return nil, classify(err, ErrUserNotFound, "update user")
	}

	s.logger.Info("User membership updated", "user_id", id, "role", user.Role)
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string, actor *models.User) error {
	if err := requireAdmin(actor, "user", "delete"); err != nil {
		return err
	}
	if id == actor.ID {
		return NewBusinessRuleError("self_delete", "admins cannot delete their own account", map[string]interface{}{
			"user_id": id,
		})
	}

	if err := s.repo.User().Delete(ctx, id); err != nil {
		return classify(err, ErrUserNotFound, "delete user")
	}

	s.logger.Info("User deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}
