package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexus-academy/catalog-service/internal/cache"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

type ReviewPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewReviewPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ReviewRepository {
	return &ReviewPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

func (r *ReviewPostgreSQL) Create(ctx context.Context, tx *gorm.DB, review *models.Review) error {
	db := r.helpers.GetDB(tx)
	if review.Likes == nil {
		review.Likes = models.LikeSet{}
	}
	if err := db.WithContext(ctx).Create(review).Error; err != nil {
		return handleDBError(err, "create review")
	}

	cache.InvalidateReviewCache(ctx, r.cacheManager)
	return nil
}

// GetByID reads through to the database; like toggles need the current set.
func (r *ReviewPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error) {
	db := r.helpers.GetDB(tx)
	var review models.Review
	if err := db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, handleDBError(err, "get review by id")
	}
	return &review, nil
}

func (r *ReviewPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error) {
	db := r.helpers.GetDB(tx)
	var review models.Review
	if err := db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&review, id).Error; err != nil {
		return nil, handleDBError(err, "lock review")
	}
	return &review, nil
}

func (r *ReviewPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.helpers.GetDB(tx)
	result := db.WithContext(ctx).Delete(&models.Review{}, id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete review")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete review")
	}

	cache.InvalidateReviewCache(ctx, r.cacheManager)
	return nil
}

type reviewPage struct {
	Items []*models.Review `json:"items"`
	Total int64            `json:"total"`
}

func (r *ReviewPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ReviewFilters) ([]*models.Review, int64, error) {
	featuredKey := "any"
	if filters.Featured != nil {
		featuredKey = fmt.Sprintf("%t", *filters.Featured)
	}
	slugKey := "any"
	if filters.ProgramSlug != nil {
		slugKey = *filters.ProgramSlug
	}
	cacheKey := fmt.Sprintf("list:%s:%s:%d:%d:%s:%s", featuredKey, slugKey, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	var page reviewPage
	err := r.cacheManager.Review.CacheOrExecute(ctx, cacheKey, &page, cache.ReviewCacheConfig.TTL, func() (interface{}, error) {
		db := r.helpers.GetDB(tx)
		result := &reviewPage{Items: []*models.Review{}}

		query := db.WithContext(ctx).Model(&models.Review{})
		if filters.Featured != nil {
			query = query.Where("featured = ?", *filters.Featured)
		}
		if filters.ProgramSlug != nil {
			query = query.Where("program_slug = ?", *filters.ProgramSlug)
		}

		if err := query.Count(&result.Total).Error; err != nil {
			return nil, handleDBError(err, "count reviews")
		}

		query = r.helpers.ApplyPaginationAndSort(query, reviewSortColumns, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
		if err := query.Find(&result.Items).Error; err != nil {
			return nil, handleDBError(err, "list reviews")
		}
		return result, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return page.Items, page.Total, nil
}

func (r *ReviewPostgreSQL) SetFeatured(ctx context.Context, tx *gorm.DB, id uint, featured bool) error {
	return r.updateColumn(ctx, tx, id, "featured", featured, "set review featured")
}

func (r *ReviewPostgreSQL) UpdateLikes(ctx context.Context, tx *gorm.DB, id uint, likes models.LikeSet) error {
	if likes == nil {
		likes = models.LikeSet{}
	}
	return r.updateColumn(ctx, tx, id, "likes", likes, "update review likes")
}

func (r *ReviewPostgreSQL) updateColumn(ctx context.Context, tx *gorm.DB, id uint, column string, value interface{}, operation string) error {
	db := r.helpers.GetDB(tx)
	result := db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return handleDBError(result.Error, operation)
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, operation)
	}

	cache.InvalidateReviewCache(ctx, r.cacheManager)
	return nil
}
