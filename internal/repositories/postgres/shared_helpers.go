package postgres

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// GetDB returns tx when the caller runs inside a transaction
func (h *SharedHelpers) GetDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// Whitelisted sort columns per table
var (
	programSortColumns = map[string]bool{"created_at": true, "updated_at": true, "id": true, "title": true, "price": true, "slug": true}
	lectureSortColumns = map[string]bool{"sort_order": true, "created_at": true, "id": true, "title": true, "level": true, "category": true}
	postSortColumns    = map[string]bool{"created_at": true, "updated_at": true, "id": true, "title": true}
	reviewSortColumns  = map[string]bool{"created_at": true, "id": true, "rating": true}
)

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection.
// An unknown column falls back to defaultSort, and id breaks ties so pages are stable.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, allowed map[string]bool, defaultSort, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if sortBy == "" || !allowed[sortBy] {
		sortBy = defaultSort
	}

	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(sortBy + " " + sortOrder)
	if sortBy != "id" {
		query = query.Order("id " + sortOrder)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// handleDBError wraps a driver error with the operation name
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}

// likePattern escapes user input for an ILIKE substring match
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}
