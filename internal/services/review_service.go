package services

import (
	"context"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

const defaultFeaturedLimit = 6

type reviewService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewReviewService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ReviewService {
	return &reviewService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *reviewService) List(ctx context.Context, filters repositories.ReviewFilters, viewerID string) (*ReviewListResponse, error) {
	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	reviews, total, err := s.repo.Review().List(ctx, nil, filters)
	if err != nil {
		return nil, upstream("list reviews", err)
	}
	decorateReviews(reviews, viewerID)

	return &ReviewListResponse{Reviews: reviews, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *reviewService) Featured(ctx context.Context, limit int, viewerID string) ([]*models.Review, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	featured := true

	reviews, _, err := s.repo.Review().List(ctx, nil, repositories.ReviewFilters{
		Featured: &featured,
		Limit:    limit,
	})
	if err != nil {
		return nil, upstream("list featured reviews", err)
	}
	decorateReviews(reviews, viewerID)

	return reviews, nil
}

func (s *reviewService) Create(ctx context.Context, req *CreateReviewRequest, author *models.User) (*models.Review, error) {
	if author == nil {
		return nil, ErrUnauthorized
	}

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	var programSlug *string
	if req.ProgramSlug != nil && strings.TrimSpace(*req.ProgramSlug) != "" {
		program, err := s.repo.Program().GetBySlug(ctx, nil, strings.TrimSpace(*req.ProgramSlug))
		if err != nil {
			return nil, classify(err, ErrProgramNotFound, "get program")
		}
		programSlug = &program.Slug
	}

	userID := author.ID
	review := &models.Review{
		UserID:      &userID,
		AuthorName:  displayName(author),
		ProgramSlug: programSlug,
		Content:     strings.TrimSpace(req.Content),
		Rating:      req.Rating,
		Likes:       models.LikeSet{},
	}

	if err := s.repo.Review().Create(ctx, nil, review); err != nil {
		return nil, upstream("create review", err)
	}

	s.logger.Info("Review created", "review_id", review.ID, "user_id", author.ID)
	decorateReviews([]*models.Review{review}, author.ID)
	return review, nil
}

// ToggleLike flips the viewer's like. The review row stays locked between
// the read and the write so concurrent toggles do not drop each other.
func (s *reviewService) ToggleLike(ctx context.Context, id uint, viewer *models.User) (*LikeResponse, error) {
	if viewer == nil {
		return nil, ErrUnauthorized
	}

	var resp *LikeResponse
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		review, err := tx.Review().GetByIDForUpdate(ctx, nil, id)
		if err != nil {
			return classify(err, ErrReviewNotFound, "get review")
		}

		likes, liked := review.Likes.Toggle(viewer.ID)
		if err := tx.Review().UpdateLikes(ctx, nil, id, likes); err != nil {
			return classify(err, ErrReviewNotFound, "update likes")
		}

		resp = &LikeResponse{ReviewID: id, Liked: liked, LikeCount: len(likes)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *reviewService) SetFeatured(ctx context.Context, id uint, featured bool, actor *models.User) error {
	if err := requireAdmin(actor, "review", "feature"); err != nil {
		return err
	}

	if err := s.repo.Review().SetFeatured(ctx, nil, id, featured); err != nil {
		return classify(err, ErrReviewNotFound, "feature review")
	}

	s.logger.Info("Review featured flag changed", "review_id", id, "featured", featured)
	return nil
}

func (s *reviewService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := requireAdmin(actor, "review", "delete"); err != nil {
		return err
	}

	if err := s.repo.Review().Delete(ctx, nil, id); err != nil {
		return classify(err, ErrReviewNotFound, "delete review")
	}

	s.logger.Info("Review deleted", "review_id", id, "actor_id", actor.ID)
	return nil
}

func decorateReviews(reviews []*models.Review, viewerID string) {
	for _, r := range reviews {
		r.LikeCount = len(r.Likes)
		r.LikedByMe = viewerID != "" && r.Likes.Contains(viewerID)
	}
}

func displayName(u *models.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return "Anonymous"
}
