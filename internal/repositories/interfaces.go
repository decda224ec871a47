package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ProgramFilters struct {
	Type         *models.ProgramType `json:"type"`
	ExcludeSlugs []string            `json:"exclude_slugs"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
	SortBy       string              `json:"sort_by"`    // "created_at", "title", "price"
	SortOrder    string              `json:"sort_order"` // "asc", "desc"
}

type LectureFilters struct {
	ProgramID *uint                `json:"program_id"`
	Level     *models.LectureLevel `json:"level"`
	Category  string               `json:"category"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`
	SortOrder string               `json:"sort_order"`
}

type WaitlistFilters struct {
	ProgramSlug *string `json:"program_slug"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
}

type PostFilters struct {
	Category  string `json:"category"`
	Query     string `json:"q"` // matched against title and excerpt
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

type ReviewFilters struct {
	Featured    *bool   `json:"featured"`
	ProgramSlug *string `json:"program_slug"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
	SortBy      string  `json:"sort_by"`
	SortOrder   string  `json:"sort_order"`
}

// ===== REPOSITORY INTERFACES =====

// ProgramRepository stores programs. Reads are cached by id and slug.
type ProgramRepository interface {
	Create(ctx context.Context, tx *gorm.DB, program *models.Program) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Program, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Program, error)
	Update(ctx context.Context, tx *gorm.DB, program *models.Program) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters ProgramFilters) ([]*models.Program, int64, error)
	ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error)
}

// LectureRepository stores lectures. ListByProgram always returns the
// program's complete list ordered by sort_order then id.
type LectureRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lecture, error)
	Update(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	ListByProgram(ctx context.Context, tx *gorm.DB, programID uint) ([]models.Lecture, error)
	List(ctx context.Context, tx *gorm.DB, filters LectureFilters) ([]*models.Lecture, int64, error)

	// GetRelated returns lectures of member programs sharing the category, case-insensitively.
	GetRelated(ctx context.Context, tx *gorm.DB, category string, excludeID uint, limit int) ([]*models.Lecture, error)
}

type WaitlistRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.WaitlistEntry) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters WaitlistFilters) ([]*models.WaitlistEntry, int64, error)
	ExistsByEmailAndProgram(ctx context.Context, tx *gorm.DB, email, programSlug string) (bool, error)
}

type PostRepository interface {
	Create(ctx context.Context, tx *gorm.DB, post *models.Post) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Post, error)
	Update(ctx context.Context, tx *gorm.DB, post *models.Post) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters PostFilters) ([]*models.Post, int64, error)
	ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, tx *gorm.DB, review *models.Review) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error)
	// GetByIDForUpdate row-locks the review until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters ReviewFilters) ([]*models.Review, int64, error)
	SetFeatured(ctx context.Context, tx *gorm.DB, id uint, featured bool) error
	UpdateLikes(ctx context.Context, tx *gorm.DB, id uint, likes models.LikeSet) error
}

// ===== ERRORS =====

var ErrUserNotFound = errors.New("user not found")

// IsNotFoundError reports whether err means the record does not exist,
// whether it came from gorm or from the identity provider.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		strings.Contains(strings.ToLower(err.Error()), "record not found")
}

// IsDuplicateError reports a unique constraint violation. gorm translates it
// when TranslateError is enabled; the message check covers raw pgx errors.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
