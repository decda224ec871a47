package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/cache"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/pkg"
)

// recordingPool is a gorm.ConnPool that records every statement and fails it
// with err, so the generated SQL and the error translation can be checked
// without a server.
type recordingPool struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (p *recordingPool) record(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
}

func (p *recordingPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	p.record(query)
	return nil, p.err
}

func (p *recordingPool) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	p.record(query)
	return nil, p.err
}

func (p *recordingPool) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	p.record(query)
	return nil, p.err
}

func (p *recordingPool) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	p.record(query)
	return nil
}

func (p *recordingPool) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) == 0 {
		return ""
	}
	return p.queries[len(p.queries)-1]
}

func newTestDB(t *testing.T, err error) (*gorm.DB, *recordingPool) {
	t.Helper()
	pool := &recordingPool{err: err}

	cfg := pkg.GormConfig(true)
	cfg.SkipDefaultTransaction = true
	cfg.DisableAutomaticPing = true

	db, openErr := gorm.Open(postgres.New(postgres.Config{Conn: pool}), cfg)
	require.NoError(t, openErr)
	return db, pool
}

func TestLectureListByProgram_DisplayOrder(t *testing.T) {
	db, pool := newTestDB(t, errors.New("connection reset by peer"))
	repo := NewLecturePostgreSQL(db, cache.NewCacheManager(nil))

	_, err := repo.ListByProgram(context.Background(), nil, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list lectures by program")

	query := pool.last()
	assert.Contains(t, query, `"lectures"`)
	assert.Contains(t, query, "program_id = $1")
	assert.Contains(t, query, "ORDER BY sort_order ASC, id ASC")
}

func TestWaitlistCreate_UniqueViolation(t *testing.T) {
	db, pool := newTestDB(t, &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_waitlist_email_program",
		Message:        "duplicate key value violates unique constraint",
	})
	repo := NewWaitlistPostgreSQL(db)

	err := repo.Create(context.Background(), nil, &models.WaitlistEntry{Email: "kim@example.com", ProgramSlug: "ai-master"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.True(t, repositories.IsDuplicateError(err))
	assert.Contains(t, err.Error(), "create waitlist entry")
	assert.Contains(t, pool.last(), `INSERT INTO "waitlist`)
}

func TestWaitlistCreate_OtherDriverErrorsAreNotDuplicates(t *testing.T) {
	db, _ := newTestDB(t, &pgconn.PgError{Code: "08006", Message: "connection failure"})
	repo := NewWaitlistPostgreSQL(db)

	err := repo.Create(context.Background(), nil, &models.WaitlistEntry{Email: "kim@example.com", ProgramSlug: "ai-master"})
	require.Error(t, err)
	assert.False(t, repositories.IsDuplicateError(err))
	assert.False(t, repositories.IsNotFoundError(err))
}

func TestHandleDBError(t *testing.T) {
	assert.NoError(t, handleDBError(nil, "noop"))

	err := handleDBError(gorm.ErrRecordNotFound, "get program by slug")
	assert.EqualError(t, err, "get program by slug failed: record not found")
	assert.True(t, repositories.IsNotFoundError(err))
}
