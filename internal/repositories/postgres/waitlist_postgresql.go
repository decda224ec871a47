package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

// Waitlist entries are never cached; admins read them rarely and the
// duplicate check must see committed rows.
type WaitlistPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewWaitlistPostgreSQL(db *gorm.DB) repositories.WaitlistRepository {
	return &WaitlistPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (w *WaitlistPostgreSQL) Create(ctx context.Context, tx *gorm.DB, entry *models.WaitlistEntry) error {
	db := w.helpers.GetDB(tx)
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return handleDBError(err, "create waitlist entry")
	}
	return nil
}

func (w *WaitlistPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.WaitlistEntry, error) {
	db := w.helpers.GetDB(tx)
	var entry models.WaitlistEntry
	if err := db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, handleDBError(err, "get waitlist entry")
	}
	return &entry, nil
}

func (w *WaitlistPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := w.helpers.GetDB(tx)
	result := db.WithContext(ctx).Delete(&models.WaitlistEntry{}, id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete waitlist entry")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete waitlist entry")
	}
	return nil
}

func (w *WaitlistPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.WaitlistFilters) ([]*models.WaitlistEntry, int64, error) {
	db := w.helpers.GetDB(tx)
	entries := []*models.WaitlistEntry{}
	var total int64

	query := db.WithContext(ctx).Model(&models.WaitlistEntry{})
	if filters.ProgramSlug != nil {
		query = query.Where("program_slug = ?", *filters.ProgramSlug)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count waitlist entries")
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, handleDBError(err, "list waitlist entries")
	}

	return entries, total, nil
}

func (w *WaitlistPostgreSQL) ExistsByEmailAndProgram(ctx context.Context, tx *gorm.DB, email, programSlug string) (bool, error) {
	db := w.helpers.GetDB(tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("email = ? AND program_slug = ?", email, programSlug).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check waitlist entry")
	}
	return count > 0, nil
}
