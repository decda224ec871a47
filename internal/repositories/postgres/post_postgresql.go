package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/cache"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

type PostPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewPostPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.PostRepository {
	return &PostPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

func (p *PostPostgreSQL) Create(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	db := p.helpers.GetDB(tx)
	if err := db.WithContext(ctx).Create(post).Error; err != nil {
		return handleDBError(err, "create post")
	}

	cache.InvalidatePostCache(ctx, p.cacheManager, post.ID, post.Slug)
	return nil
}

func (p *PostPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post

	err := p.cacheManager.Post.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &post, cache.PostCacheConfig.TTL, func() (interface{}, error) {
		var result models.Post
		if err := p.helpers.GetDB(tx).WithContext(ctx).First(&result, id).Error; err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get post by id")
	}

	return &post, nil
}

func (p *PostPostgreSQL) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Post, error) {
	var post models.Post

	err := p.cacheManager.Post.CacheOrExecute(ctx, "slug:"+slug, &post, cache.PostCacheConfig.TTL, func() (interface{}, error) {
		var result models.Post
		if err := p.helpers.GetDB(tx).WithContext(ctx).Where("slug = ?", slug).First(&result).Error; err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get post by slug")
	}

	return &post, nil
}

func (p *PostPostgreSQL) Update(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	db := p.helpers.GetDB(tx)

	var previous models.Post
	if err := db.WithContext(ctx).Select("id", "slug").First(&previous, post.ID).Error; err != nil {
		return handleDBError(err, "load post before update")
	}

	if err := db.WithContext(ctx).Save(post).Error; err != nil {
		return handleDBError(err, "update post")
	}

	cache.InvalidatePostCache(ctx, p.cacheManager, post.ID, previous.Slug)
	if previous.Slug != post.Slug {
		cache.SafeDelete(ctx, p.cacheManager.Post, "slug:"+post.Slug)
	}
	return nil
}

func (p *PostPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := p.helpers.GetDB(tx)

	var post models.Post
	if err := db.WithContext(ctx).Select("id", "slug").First(&post, id).Error; err != nil {
		return handleDBError(err, "load post before delete")
	}
	if err := db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return handleDBError(err, "delete post")
	}

	cache.InvalidatePostCache(ctx, p.cacheManager, id, post.Slug)
	return nil
}

type postPage struct {
	Items []*models.Post `json:"items"`
	Total int64          `json:"total"`
}

func (p *PostPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.PostFilters) ([]*models.Post, int64, error) {
	cacheKey := fmt.Sprintf("list:%s:%s:%d:%d:%s:%s", strings.ToLower(filters.Category), strings.ToLower(filters.Query),
		filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	var page postPage
	err := p.cacheManager.Post.CacheOrExecute(ctx, cacheKey, &page, cache.PostCacheConfig.TTL, func() (interface{}, error) {
		db := p.helpers.GetDB(tx)
		result := &postPage{Items: []*models.Post{}}

		query := db.WithContext(ctx).Model(&models.Post{})
		if c := strings.TrimSpace(filters.Category); c != "" && !strings.EqualFold(c, "all") {
			query = query.Where("LOWER(category) = LOWER(?)", c)
		}
		if q := strings.TrimSpace(filters.Query); q != "" {
			pattern := likePattern(q)
			query = query.Where("title ILIKE ? OR excerpt ILIKE ?", pattern, pattern)
		}

		if err := query.Count(&result.Total).Error; err != nil {
			return nil, handleDBError(err, "count posts")
		}

		query = p.helpers.ApplyPaginationAndSort(query, postSortColumns, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
		if err := query.Find(&result.Items).Error; err != nil {
			return nil, handleDBError(err, "list posts")
		}
		return result, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return page.Items, page.Total, nil
}

func (p *PostPostgreSQL) ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error) {
	db := p.helpers.GetDB(tx)
	var count int64

	// soft-deleted rows still hold the unique index
	query := db.WithContext(ctx).Unscoped().Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, handleDBError(err, "check post slug")
	}
	return count > 0, nil
}
