package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ===== AUTH =====

// fakeTokenParser accepts "<user id>" tokens listed in users
type fakeTokenParser struct {
	users map[string]casdoorsdk.User
}

func (p *fakeTokenParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	user, ok := p.users[token]
	if !ok {
		return nil, errors.New("token is malformed")
	}
	return &casdoorsdk.Claims{User: user}, nil
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) UpdateMembership(ctx context.Context, id string, update repositories.MembershipUpdate) (*models.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// ===== SERVICES =====

type MockProgramService struct {
	mock.Mock
}

func (m *MockProgramService) GetBySlug(ctx context.Context, slug string) (*models.Program, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockProgramService) GetByID(ctx context.Context, id uint) (*models.Program, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockProgramService) List(ctx context.Context, filters repositories.ProgramFilters) (*services.ProgramListResponse, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProgramListResponse), args.Error(1)
}

func (m *MockProgramService) Create(ctx context.Context, req *services.CreateProgramRequest, actor *models.User) (*models.Program, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockProgramService) Update(ctx context.Context, id uint, req *services.UpdateProgramRequest, actor *models.User) (*models.Program, error) {
	args := m.Called(ctx, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockProgramService) Delete(ctx context.Context, id uint, actor *models.User) error {
	return m.Called(ctx, id, actor).Error(0)
}

type MockLectureService struct {
	mock.Mock
}

func (m *MockLectureService) ListByProgram(ctx context.Context, programID uint) ([]models.Lecture, error) {
	args := m.Called(ctx, programID)
	return args.Get(0).([]models.Lecture), args.Error(1)
}

func (m *MockLectureService) GetProgramView(ctx context.Context, slug string, viewer *models.User, req access.ViewRequest) (*services.ProgramViewResponse, error) {
	args := m.Called(ctx, slug, viewer, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProgramViewResponse), args.Error(1)
}

func (m *MockLectureService) GetLecture(ctx context.Context, id uint, viewer *models.User, cohort string) (*services.LectureDetailResponse, error) {
	args := m.Called(ctx, id, viewer, cohort)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LectureDetailResponse), args.Error(1)
}

func (m *MockLectureService) List(ctx context.Context, filters repositories.LectureFilters, actor *models.User) (*services.LectureListResponse, error) {
	args := m.Called(ctx, filters, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LectureListResponse), args.Error(1)
}

func (m *MockLectureService) Create(ctx context.Context, req *services.CreateLectureRequest, actor *models.User) (*models.Lecture, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lecture), args.Error(1)
}

func (m *MockLectureService) Update(ctx context.Context, id uint, req *services.UpdateLectureRequest, actor *models.User) (*models.Lecture, error) {
	args := m.Called(ctx, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lecture), args.Error(1)
}

func (m *MockLectureService) Delete(ctx context.Context, id uint, actor *models.User) error {
	return m.Called(ctx, id, actor).Error(0)
}

type MockWaitlistService struct {
	mock.Mock
}

func (m *MockWaitlistService) AddToWaitlist(ctx context.Context, email, programSlug string) (*models.WaitlistEntry, error) {
	args := m.Called(ctx, email, programSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistService) List(ctx context.Context, filters repositories.WaitlistFilters, actor *models.User) (*services.WaitlistListResponse, error) {
	args := m.Called(ctx, filters, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WaitlistListResponse), args.Error(1)
}

func (m *MockWaitlistService) Delete(ctx context.Context, id uint, actor *models.User) error {
	return m.Called(ctx, id, actor).Error(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, filters repositories.UserFilters, actor *models.User) (*services.UserListResponse, error) {
	args := m.Called(ctx, filters, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UserListResponse), args.Error(1)
}

func (m *MockUserService) UpdateMembership(ctx context.Context, id string, req *services.UpdateMembershipRequest, actor *models.User) (*models.User, error) {
	args := m.Called(ctx, id, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, id string, actor *models.User) error {
	return m.Called(ctx, id, actor).Error(0)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportWaitlist(ctx context.Context, programSlug *string, actor *models.User) ([]byte, error) {
	args := m.Called(ctx, programSlug, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockExportService) ExportUsers(ctx context.Context, actor *models.User) ([]byte, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// stubServiceManager hands out the mocks; services a test does not set are nil.
type stubServiceManager struct {
	program  *MockProgramService
	lecture  *MockLectureService
	waitlist *MockWaitlistService
	user     *MockUserService
	export   *MockExportService
	health   error
}

func newStubServiceManager() *stubServiceManager {
	return &stubServiceManager{
		program:  &MockProgramService{},
		lecture:  &MockLectureService{},
		waitlist: &MockWaitlistService{},
		user:     &MockUserService{},
		export:   &MockExportService{},
	}
}

func (s *stubServiceManager) Program() services.ProgramService   { return s.program }
func (s *stubServiceManager) Lecture() services.LectureService   { return s.lecture }
func (s *stubServiceManager) Waitlist() services.WaitlistService { return s.waitlist }
func (s *stubServiceManager) User() services.UserService         { return s.user }
func (s *stubServiceManager) Post() services.PostService         { return nil }
func (s *stubServiceManager) Review() services.ReviewService     { return nil }
func (s *stubServiceManager) Home() services.HomeService         { return nil }
func (s *stubServiceManager) Export() services.ExportService     { return s.export }

func (s *stubServiceManager) Initialize(context.Context) error  { return nil }
func (s *stubServiceManager) HealthCheck(context.Context) error { return s.health }
func (s *stubServiceManager) Shutdown(context.Context) error    { return nil }

// ===== ROUTER FIXTURE =====

const (
	memberToken = "member-token"
	adminToken  = "admin-token"
)

type routerFixture struct {
	router   *gin.Engine
	services *stubServiceManager
	users    *MockUserRepository
	member   *models.User
	admin    *models.User
}

func newRouterFixture(cfg RouterConfig) *routerFixture {
	gin.SetMode(gin.TestMode)

	f := &routerFixture{
		services: newStubServiceManager(),
		users:    &MockUserRepository{},
		member:   &models.User{ID: "u-member", Name: "Member", Role: models.RoleMember},
		admin:    &models.User{ID: "u-admin", Name: "Admin", Role: models.RoleFree, IsAdmin: true},
	}
	f.users.On("GetByID", mock.Anything, f.member.ID).Return(f.member, nil)
	f.users.On("GetByID", mock.Anything, f.admin.ID).Return(f.admin, nil)

	parser := &fakeTokenParser{users: map[string]casdoorsdk.User{
		memberToken: {Id: f.member.ID},
		adminToken:  {Id: f.admin.ID},
	}}

	logger := testLogger()
	f.router = gin.New()
	SetupMiddleware(f.router, logger)
	NewHandlerManager(f.services, logger, parser, f.users, cfg).SetupRoutes(f.router)
	return f
}
