package services

import (
	"context"
	"log/slog"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

const (
	homeProgramLimit = 20
	homeInsightLimit = 3
)

type homeService struct {
	repo    repositories.Repository
	reviews ReviewService
	logger  *slog.Logger
}

func NewHomeService(repo repositories.Repository, reviews ReviewService, logger *slog.Logger) HomeService {
	return &homeService{repo: repo, reviews: reviews, logger: logger}
}

// Get assembles the landing page. The membership program has its own section
// on the page and is left out of the program grid.
func (s *homeService) Get(ctx context.Context, viewerID string) (*HomeResponse, error) {
	programs, _, err := s.repo.Program().List(ctx, nil, repositories.ProgramFilters{
		ExcludeSlugs: []string{models.MembershipProgramSlug},
		Limit:        homeProgramLimit,
		SortBy:       "created_at",
		SortOrder:    "asc",
	})
	if err != nil {
		return nil, upstream("list programs", err)
	}

	insights, _, err := s.repo.Post().List(ctx, nil, repositories.PostFilters{
		Limit:     homeInsightLimit,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, upstream("list posts", err)
	}

	reviews, err := s.reviews.Featured(ctx, 0, viewerID)
	if err != nil {
		return nil, err
	}

	return &HomeResponse{Programs: programs, Insights: insights, Reviews: reviews}, nil
}
