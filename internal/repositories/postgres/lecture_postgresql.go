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

type LecturePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewLecturePostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.LectureRepository {
	return &LecturePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

// displayOrder is the canonical order of a program's lecture list. Free
// preview indexes are computed against it.
const displayOrder = "sort_order ASC, id ASC"

func (l *LecturePostgreSQL) Create(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error {
	db := l.helpers.GetDB(tx)
	if err := db.WithContext(ctx).Omit("Program").Create(lecture).Error; err != nil {
		return handleDBError(err, "create lecture")
	}

	cache.InvalidateLectureCache(ctx, l.cacheManager, lecture.ID, lecture.ProgramID)
	return nil
}

func (l *LecturePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lecture, error) {
	var lecture models.Lecture
	cacheKey := fmt.Sprintf("id:%d", id)

	err := l.cacheManager.Lecture.CacheOrExecute(ctx, cacheKey, &lecture, cache.LectureCacheConfig.TTL, func() (interface{}, error) {
		var result models.Lecture
		if err := l.helpers.GetDB(tx).WithContext(ctx).First(&result, id).Error; err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get lecture by id")
	}

	return &lecture, nil
}

func (l *LecturePostgreSQL) Update(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error {
	db := l.helpers.GetDB(tx)

	var previous models.Lecture
	if err := db.WithContext(ctx).Select("id", "program_id").First(&previous, lecture.ID).Error; err != nil {
		return handleDBError(err, "load lecture before update")
	}

	if err := db.WithContext(ctx).Omit("Program").Save(lecture).Error; err != nil {
		return handleDBError(err, "update lecture")
	}

	cache.InvalidateLectureCache(ctx, l.cacheManager, lecture.ID, lecture.ProgramID)
	if previous.ProgramID != lecture.ProgramID {
		cache.InvalidateLectureCache(ctx, l.cacheManager, lecture.ID, previous.ProgramID)
	}
	return nil
}

func (l *LecturePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := l.helpers.GetDB(tx)

	var lecture models.Lecture
	if err := db.WithContext(ctx).Select("id", "program_id").First(&lecture, id).Error; err != nil {
		return handleDBError(err, "load lecture before delete")
	}

	// unlink neighbours pointing at the deleted lecture
	if err := db.WithContext(ctx).Model(&models.Lecture{}).
		Where("previous_lecture_id = ?", id).
		Update("previous_lecture_id", nil).Error; err != nil {
		return handleDBError(err, "unlink previous lecture")
	}
	if err := db.WithContext(ctx).Model(&models.Lecture{}).
		Where("next_lecture_id = ?", id).
		Update("next_lecture_id", nil).Error; err != nil {
		return handleDBError(err, "unlink next lecture")
	}

	if err := db.WithContext(ctx).Delete(&models.Lecture{}, id).Error; err != nil {
		return handleDBError(err, "delete lecture")
	}

	// neighbours cached by id still carry the old links
	cache.SafeInvalidatePattern(ctx, l.cacheManager.Lecture, "id:*")
	cache.InvalidateLectureCache(ctx, l.cacheManager, id, lecture.ProgramID)
	return nil
}

// ===== QUERY OPERATIONS =====

func (l *LecturePostgreSQL) ListByProgram(ctx context.Context, tx *gorm.DB, programID uint) ([]models.Lecture, error) {
	var lectures []models.Lecture
	cacheKey := fmt.Sprintf("program:%d", programID)

	err := l.cacheManager.Lecture.CacheOrExecute(ctx, cacheKey, &lectures, cache.LectureCacheConfig.TTL, func() (interface{}, error) {
		result := []models.Lecture{}
		if err := l.helpers.GetDB(tx).WithContext(ctx).
			Where("program_id = ?", programID).
			Order(displayOrder).
			Find(&result).Error; err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "list lectures by program")
	}

	return lectures, nil
}

func (l *LecturePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.LectureFilters) ([]*models.Lecture, int64, error) {
	db := l.helpers.GetDB(tx)
	lectures := []*models.Lecture{}
	var total int64

	query := db.WithContext(ctx).Model(&models.Lecture{})
	if filters.ProgramID != nil {
		query = query.Where("program_id = ?", *filters.ProgramID)
	}
	if filters.Level != nil {
		query = query.Where("level = ?", *filters.Level)
	}
	if c := strings.TrimSpace(filters.Category); c != "" {
		query = query.Where("LOWER(category) = LOWER(?)", c)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count lectures")
	}

	sortOrder := filters.SortOrder
	if filters.SortBy == "" && sortOrder == "" {
		sortOrder = "asc"
	}
	query = l.helpers.ApplyPaginationAndSort(query, lectureSortColumns, "sort_order", filters.SortBy, sortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&lectures).Error; err != nil {
		return nil, 0, handleDBError(err, "list lectures")
	}

	return lectures, total, nil
}

func (l *LecturePostgreSQL) GetRelated(ctx context.Context, tx *gorm.DB, category string, excludeID uint, limit int) ([]*models.Lecture, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return []*models.Lecture{}, nil
	}
	if limit <= 0 {
		limit = 4
	}

	var lectures []*models.Lecture
	cacheKey := fmt.Sprintf("related:%s:%d:%d", strings.ToLower(category), excludeID, limit)

	err := l.cacheManager.Lecture.CacheOrExecute(ctx, cacheKey, &lectures, cache.LectureCacheConfig.TTL, func() (interface{}, error) {
		result := []*models.Lecture{}
		if err := l.helpers.GetDB(tx).WithContext(ctx).
			Model(&models.Lecture{}).
			Joins("JOIN programs ON programs.id = lectures.program_id AND programs.deleted_at IS NULL").
			Where("programs.type = ?", models.ProgramMember).
			Where("LOWER(lectures.category) = LOWER(?)", category).
			Where("lectures.id <> ?", excludeID).
			Order("lectures.sort_order ASC, lectures.id ASC").
			Limit(limit).
			Find(&result).Error; err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, handleDBError(err, "get related lectures")
	}

	return lectures, nil
}
