package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notFound(op string) error {
	return fmt.Errorf("%s failed: %w", op, gorm.ErrRecordNotFound)
}

// ===== FAKE REPOSITORY =====

type fakeRepository struct {
	programs *fakePrograms
	lectures *fakeLectures
	waitlist *fakeWaitlist
	posts    *fakePosts
	reviews  *fakeReviews
	users    *fakeUsers
	pingErr  error

	// set on the copy handed to a WithTransaction callback
	txReviews repositories.ReviewRepository
}

func newFakeRepository() *fakeRepository {
	programs := &fakePrograms{items: map[uint]*models.Program{}}
	return &fakeRepository{
		programs: programs,
		lectures: &fakeLectures{items: map[uint]*models.Lecture{}, programs: programs},
		waitlist: &fakeWaitlist{},
		posts:    &fakePosts{items: map[uint]*models.Post{}},
		reviews:  &fakeReviews{items: map[uint]*models.Review{}},
		users:    &fakeUsers{items: map[string]*models.User{}},
	}
}

func (r *fakeRepository) Program() repositories.ProgramRepository   { return r.programs }
func (r *fakeRepository) Lecture() repositories.LectureRepository   { return r.lectures }
func (r *fakeRepository) Waitlist() repositories.WaitlistRepository { return r.waitlist }
func (r *fakeRepository) Post() repositories.PostRepository         { return r.posts }
func (r *fakeRepository) Review() repositories.ReviewRepository {
	if r.txReviews != nil {
		return r.txReviews
	}
	return r.reviews
}
func (r *fakeRepository) User() repositories.UserRepository         { return r.users }
func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	tx := *r
	locked := &lockingReviews{fakeReviews: r.reviews}
	tx.txReviews = locked
	defer locked.release()
	return fn(&tx)
}
func (r *fakeRepository) Ping(ctx context.Context) error { return r.pingErr }
func (r *fakeRepository) Close() error                   { return nil }

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ===== PROGRAMS =====

type fakePrograms struct {
	mu     sync.Mutex
	items  map[uint]*models.Program
	nextID uint
	err    error
}

func (f *fakePrograms) add(p models.Program) *models.Program {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if p.ID == 0 {
		p.ID = f.nextID
	}
	f.items[p.ID] = &p
	cp := p
	return &cp
}

func (f *fakePrograms) Create(ctx context.Context, tx *gorm.DB, program *models.Program) error {
	if f.err != nil {
		return f.err
	}
	created := f.add(*program)
	program.ID = created.ID
	return nil
}

func (f *fakePrograms) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.items[id]
	if !ok {
		return nil, notFound("get program")
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrograms) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.items {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, notFound("get program by slug")
}

func (f *fakePrograms) Update(ctx context.Context, tx *gorm.DB, program *models.Program) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[program.ID]; !ok {
		return notFound("update program")
	}
	cp := *program
	f.items[program.ID] = &cp
	return nil
}

func (f *fakePrograms) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return notFound("delete program")
	}
	delete(f.items, id)
	return nil
}

func (f *fakePrograms) List(ctx context.Context, tx *gorm.DB, filters repositories.ProgramFilters) ([]*models.Program, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	excluded := map[string]bool{}
	for _, s := range filters.ExcludeSlugs {
		excluded[s] = true
	}
	out := []*models.Program{}
	for _, p := range f.items {
		if filters.Type != nil && p.Type != *filters.Type {
			continue
		}
		if excluded[p.Slug] {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakePrograms) ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.Slug == slug && (excludeID == nil || p.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

// ===== LECTURES =====

type fakeLectures struct {
	mu       sync.Mutex
	items    map[uint]*models.Lecture
	nextID   uint
	programs *fakePrograms
	err      error
}

func (f *fakeLectures) add(l models.Lecture) *models.Lecture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if l.ID == 0 {
		l.ID = f.nextID
	}
	f.items[l.ID] = &l
	cp := l
	return &cp
}

func (f *fakeLectures) Create(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error {
	created := f.add(*lecture)
	lecture.ID = created.ID
	return nil
}

func (f *fakeLectures) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lecture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.items[id]
	if !ok {
		return nil, notFound("get lecture")
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLectures) Update(ctx context.Context, tx *gorm.DB, lecture *models.Lecture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[lecture.ID]; !ok {
		return notFound("update lecture")
	}
	cp := *lecture
	f.items[lecture.ID] = &cp
	return nil
}

func (f *fakeLectures) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return notFound("delete lecture")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeLectures) ListByProgram(ctx context.Context, tx *gorm.DB, programID uint) ([]models.Lecture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Lecture{}
	for _, l := range f.items {
		if l.ProgramID == programID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeLectures) List(ctx context.Context, tx *gorm.DB, filters repositories.LectureFilters) ([]*models.Lecture, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Lecture{}
	for _, l := range f.items {
		if filters.ProgramID != nil && l.ProgramID != *filters.ProgramID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakeLectures) GetRelated(ctx context.Context, tx *gorm.DB, category string, excludeID uint, limit int) ([]*models.Lecture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Lecture{}
	for _, l := range f.items {
		if l.ID == excludeID || category == "" || !strings.EqualFold(l.Category, category) {
			continue
		}
		if p, ok := f.programs.items[l.ProgramID]; !ok || p.Type != models.ProgramMember {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, 0), nil
}

// ===== WAITLIST =====

type fakeWaitlist struct {
	mu      sync.Mutex
	entries []*models.WaitlistEntry
	nextID  uint

	// blindExists makes the up-front check miss, as a concurrent insert would
	blindExists bool
	createErr   error
}

func (f *fakeWaitlist) Create(ctx context.Context, tx *gorm.DB, entry *models.WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, e := range f.entries {
		if e.Email == entry.Email && e.ProgramSlug == entry.ProgramSlug {
			return fmt.Errorf("create waitlist entry failed: %w", gorm.ErrDuplicatedKey)
		}
	}
	f.nextID++
	entry.ID = f.nextID
	cp := *entry
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeWaitlist) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, notFound("get waitlist entry")
}

func (f *fakeWaitlist) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return notFound("delete waitlist entry")
}

func (f *fakeWaitlist) List(ctx context.Context, tx *gorm.DB, filters repositories.WaitlistFilters) ([]*models.WaitlistEntry, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.WaitlistEntry{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if filters.ProgramSlug != nil && e.ProgramSlug != *filters.ProgramSlug {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakeWaitlist) ExistsByEmailAndProgram(ctx context.Context, tx *gorm.DB, email, programSlug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blindExists {
		return false, nil
	}
	for _, e := range f.entries {
		if e.Email == email && e.ProgramSlug == programSlug {
			return true, nil
		}
	}
	return false, nil
}

// ===== POSTS =====

type fakePosts struct {
	mu     sync.Mutex
	items  map[uint]*models.Post
	nextID uint
}

func (f *fakePosts) Create(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	post.ID = f.nextID
	cp := *post
	f.items[post.ID] = &cp
	return nil
}

func (f *fakePosts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, notFound("get post")
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, notFound("get post by slug")
}

func (f *fakePosts) Update(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[post.ID]; !ok {
		return notFound("update post")
	}
	cp := *post
	f.items[post.ID] = &cp
	return nil
}

func (f *fakePosts) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return notFound("delete post")
	}
	delete(f.items, id)
	return nil
}

func (f *fakePosts) List(ctx context.Context, tx *gorm.DB, filters repositories.PostFilters) ([]*models.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Post{}
	for _, p := range f.items {
		if filters.Category != "" && !strings.EqualFold(p.Category, filters.Category) {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Excerpt), strings.ToLower(filters.Query)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakePosts) ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.Slug == slug && (excludeID == nil || p.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

// ===== REVIEWS =====

type fakeReviews struct {
	mu     sync.Mutex
	items  map[uint]*models.Review
	nextID uint
	rows   map[uint]*sync.Mutex
}

func (f *fakeReviews) rowLock(id uint) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[uint]*sync.Mutex{}
	}
	if f.rows[id] == nil {
		f.rows[id] = &sync.Mutex{}
	}
	return f.rows[id]
}

// GetByIDForUpdate outside a transaction locks nothing, as in Postgres.
func (f *fakeReviews) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error) {
	return f.GetByID(ctx, tx, id)
}

// lockingReviews holds row locks until its transaction ends
type lockingReviews struct {
	*fakeReviews
	held []*sync.Mutex
}

func (l *lockingReviews) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error) {
	row := l.rowLock(id)
	row.Lock()
	l.held = append(l.held, row)
	return l.fakeReviews.GetByID(ctx, tx, id)
}

func (l *lockingReviews) release() {
	for _, row := range l.held {
		row.Unlock()
	}
	l.held = nil
}

func (f *fakeReviews) Create(ctx context.Context, tx *gorm.DB, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	review.ID = f.nextID
	cp := *review
	f.items[review.ID] = &cp
	return nil
}

func (f *fakeReviews) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, notFound("get review")
	}
	cp := *r
	cp.Likes = append(models.LikeSet{}, r.Likes...)
	return &cp, nil
}

func (f *fakeReviews) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return notFound("delete review")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeReviews) List(ctx context.Context, tx *gorm.DB, filters repositories.ReviewFilters) ([]*models.Review, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Review{}
	for _, r := range f.items {
		if filters.Featured != nil && r.Featured != *filters.Featured {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakeReviews) SetFeatured(ctx context.Context, tx *gorm.DB, id uint, featured bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return notFound("set featured")
	}
	r.Featured = featured
	return nil
}

func (f *fakeReviews) UpdateLikes(ctx context.Context, tx *gorm.DB, id uint, likes models.LikeSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return notFound("update likes")
	}
	r.Likes = likes
	return nil
}

// ===== USERS =====

type fakeUsers struct {
	mu    sync.Mutex
	items map[string]*models.User
	err   error
}

func (f *fakeUsers) add(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[u.ID] = &u
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.items[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	out := []*models.User{}
	for _, u := range f.items {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), int64(len(out)), nil
}

func (f *fakeUsers) UpdateMembership(ctx context.Context, id string, update repositories.MembershipUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	if update.ClearCohort {
		u.MasterCohort = nil
	} else if update.MasterCohort != nil {
		c := *update.MasterCohort
		u.MasterCohort = &c
	}
	if update.IsAdmin != nil {
		u.IsAdmin = *update.IsAdmin
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(f.items, id)
	return nil
}

// ===== OTHER COLLABORATORS =====

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) SendWaitlistConfirmation(ctx context.Context, email, programTitle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email+"|"+programTitle)
	return n.err
}

func (n *fakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type fakeRecorder struct {
	mu        sync.Mutex
	decisions map[string]int
	signups   map[string]int
	failures  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{decisions: map[string]int{}, signups: map[string]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) ObserveAccessDecision(programType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[programType+"/"+outcome]++
}

func (r *fakeRecorder) IncWaitlistSignup(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signups[slug]++
}

func (r *fakeRecorder) IncNotificationFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

func (r *fakeRecorder) failureCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[kind]
}

type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	uploadID int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Upload(ctx context.Context, prefix, filename string, body io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	s.uploadID++
	key := fmt.Sprintf("%s/%d-%s", prefix, s.uploadID, filename)
	s.objects[key] = buf.Bytes()
	return key, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) URL(key string) string {
	return "https://cdn.example.com/" + key
}

// ===== FIXTURES =====

func strPtr(s string) *string { return &s }

func admin() *models.User {
	return &models.User{ID: "admin-1", Name: "Admin", Email: "admin@nexus.academy", Role: models.RoleFree, IsAdmin: true}
}

func userWithRole(id string, role models.MembershipRole, cohort string) *models.User {
	u := &models.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: role}
	if cohort != "" {
		u.MasterCohort = strPtr(cohort)
	}
	return u
}
