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

type ProgramPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewProgramPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ProgramRepository {
	return &ProgramPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (p *ProgramPostgreSQL) Create(ctx context.Context, tx *gorm.DB, program *models.Program) error {
	db := p.helpers.GetDB(tx)
	if err := db.WithContext(ctx).Create(program).Error; err != nil {
		return handleDBError(err, "create program")
	}

	cache.InvalidateProgramCache(ctx, p.cacheManager, program.ID, program.Slug)
	return nil
}

func (p *ProgramPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Program, error) {
	var program models.Program
	cacheKey := fmt.Sprintf("id:%d", id)

	err := p.cacheManager.Program.CacheOrExecute(ctx, cacheKey, &program, cache.ProgramCacheConfig.TTL, func() (interface{}, error) {
		var result models.Program
		if err := p.helpers.GetDB(tx).WithContext(ctx).First(&result, id).Error; err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get program by id")
	}

	return &program, nil
}

func (p *ProgramPostgreSQL) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Program, error) {
	var program models.Program
	slug = strings.TrimSpace(slug)

	err := p.cacheManager.Program.CacheOrExecute(ctx, "slug:"+slug, &program, cache.ProgramCacheConfig.TTL, func() (interface{}, error) {
		var result models.Program
		if err := p.helpers.GetDB(tx).WithContext(ctx).Where("slug = ?", slug).First(&result).Error; err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get program by slug")
	}

	return &program, nil
}

func (p *ProgramPostgreSQL) Update(ctx context.Context, tx *gorm.DB, program *models.Program) error {
	db := p.helpers.GetDB(tx)

	// the old slug must be dropped from cache too
	var previous models.Program
	if err := db.WithContext(ctx).Select("id", "slug").First(&previous, program.ID).Error; err != nil {
		return handleDBError(err, "load program before update")
	}

	if err := db.WithContext(ctx).Omit("Lectures").Save(program).Error; err != nil {
		return handleDBError(err, "update program")
	}

	cache.InvalidateProgramCache(ctx, p.cacheManager, program.ID, previous.Slug)
	if previous.Slug != program.Slug {
		cache.SafeDelete(ctx, p.cacheManager.Program, "slug:"+program.Slug)
	}
	return nil
}

func (p *ProgramPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := p.helpers.GetDB(tx)

	var program models.Program
	if err := db.WithContext(ctx).Select("id", "slug").First(&program, id).Error; err != nil {
		return handleDBError(err, "load program before delete")
	}

	if err := db.WithContext(ctx).Where("program_id = ?", id).Delete(&models.Lecture{}).Error; err != nil {
		return handleDBError(err, "delete program lectures")
	}
	if err := db.WithContext(ctx).Delete(&models.Program{}, id).Error; err != nil {
		return handleDBError(err, "delete program")
	}

	// lectures went with the program
	cache.InvalidateCatalog(ctx, p.cacheManager)
	return nil
}

// ===== QUERY OPERATIONS =====

type programPage struct {
	Items []*models.Program `json:"items"`
	Total int64             `json:"total"`
}

func (p *ProgramPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ProgramFilters) ([]*models.Program, int64, error) {
	typeKey := "all"
	if filters.Type != nil {
		typeKey = string(*filters.Type)
	}
	cacheKey := fmt.Sprintf("list:%s:%s:%d:%d:%s:%s", typeKey, strings.Join(filters.ExcludeSlugs, ","),
		filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder)

	var page programPage
	err := p.cacheManager.Program.CacheOrExecute(ctx, cacheKey, &page, cache.ProgramCacheConfig.TTL, func() (interface{}, error) {
		return p.list(ctx, tx, filters)
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (p *ProgramPostgreSQL) list(ctx context.Context, tx *gorm.DB, filters repositories.ProgramFilters) (*programPage, error) {
	db := p.helpers.GetDB(tx)
	page := &programPage{Items: []*models.Program{}}

	query := db.WithContext(ctx).Model(&models.Program{})
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if len(filters.ExcludeSlugs) > 0 {
		query = query.Where("slug NOT IN ?", filters.ExcludeSlugs)
	}

	if err := query.Count(&page.Total).Error; err != nil {
		return nil, handleDBError(err, "count programs")
	}

	query = p.helpers.ApplyPaginationAndSort(query, programSortColumns, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&page.Items).Error; err != nil {
		return nil, handleDBError(err, "list programs")
	}

	return page, nil
}

func (p *ProgramPostgreSQL) ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error) {
	db := p.helpers.GetDB(tx)
	var count int64

	query := db.WithContext(ctx).Unscoped().Model(&models.Program{}).Where("slug = ?", slug)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, handleDBError(err, "check program slug")
	}
	return count > 0, nil
}
