package services

import (
	"context"
	"io"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateProgramRequest = validator.ProgramCreateRequest
type UpdateProgramRequest = validator.ProgramUpdateRequest
type CreateLectureRequest = validator.LectureCreateRequest
type UpdateLectureRequest = validator.LectureUpdateRequest
type WaitlistRequest = validator.WaitlistRequest
type CreatePostRequest = validator.PostCreateRequest
type UpdatePostRequest = validator.PostUpdateRequest
type CreateReviewRequest = validator.ReviewCreateRequest
type UpdateMembershipRequest = validator.UserMembershipRequest

type ProgramListResponse struct {
	Programs []*models.Program `json:"programs"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// ===== CATALOG VIEW DTOs =====

type LectureItem struct {
	*models.Lecture
	Index   int            `json:"index"`
	Outcome access.Outcome `json:"outcome"`
}

// ProgramViewResponse is a program detail page with gating applied.
// Outcome is only set when the whole program is gated.
type ProgramViewResponse struct {
	Program           *models.Program   `json:"program"`
	Gated             bool              `json:"gated"`
	Outcome           access.Outcome    `json:"outcome,omitempty"`
	Mode              access.CourseMode `json:"mode,omitempty"`
	Cohort            string            `json:"cohort,omitempty"`
	CohortOptions     []string          `json:"cohort_options,omitempty"`
	Categories        []string          `json:"categories"`
	Category          string            `json:"category,omitempty"`
	Lectures          []LectureItem     `json:"lectures"`
	CanManageLectures bool              `json:"can_manage_lectures"`
}

type LectureDetailResponse struct {
	Lecture           *models.Lecture   `json:"lecture"`
	Program           *models.Program   `json:"program"`
	Outcome           access.Outcome    `json:"outcome"`
	PreviousLectureID *uint             `json:"previous_lecture_id"`
	NextLectureID     *uint             `json:"next_lecture_id"`
	Related           []*models.Lecture `json:"related"`
}

type LectureListResponse struct {
	Lectures []*models.Lecture `json:"lectures"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

type WaitlistListResponse struct {
	Entries []*models.WaitlistEntry `json:"entries"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	Size    int                     `json:"size"`
}

type UserListResponse struct {
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type PostListResponse struct {
	Posts []*models.Post `json:"posts"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type ReviewListResponse struct {
	Reviews []*models.Review `json:"reviews"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

type LikeResponse struct {
	ReviewID  uint `json:"review_id"`
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type HomeResponse struct {
	Programs []*models.Program `json:"programs"`
	Insights []*models.Post    `json:"insights"`
	Reviews  []*models.Review  `json:"reviews"`
}

// ===== SERVICE INTERFACES =====

type ProgramService interface {
	GetBySlug(ctx context.Context, slug string) (*models.Program, error)
	GetByID(ctx context.Context, id uint) (*models.Program, error)
	List(ctx context.Context, filters repositories.ProgramFilters) (*ProgramListResponse, error)

	// Admin operations
	Create(ctx context.Context, req *CreateProgramRequest, actor *models.User) (*models.Program, error)
	Update(ctx context.Context, id uint, req *UpdateProgramRequest, actor *models.User) (*models.Program, error)
	Delete(ctx context.Context, id uint, actor *models.User) error
}

type LectureService interface {
	// ListByProgram returns the program's complete ordered list, unfiltered and ungated.
	ListByProgram(ctx context.Context, programID uint) ([]models.Lecture, error)
	GetProgramView(ctx context.Context, slug string, viewer *models.User, req access.ViewRequest) (*ProgramViewResponse, error)
	GetLecture(ctx context.Context, id uint, viewer *models.User, cohort string) (*LectureDetailResponse, error)

	// Admin operations
	List(ctx context.Context, filters repositories.LectureFilters, actor *models.User) (*LectureListResponse, error)
	Create(ctx context.Context, req *CreateLectureRequest, actor *models.User) (*models.Lecture, error)
	Update(ctx context.Context, id uint, req *UpdateLectureRequest, actor *models.User) (*models.Lecture, error)
	Delete(ctx context.Context, id uint, actor *models.User) error
}

type WaitlistService interface {
	AddToWaitlist(ctx context.Context, email, programSlug string) (*models.WaitlistEntry, error)

	// Admin operations
	List(ctx context.Context, filters repositories.WaitlistFilters, actor *models.User) (*WaitlistListResponse, error)
	Delete(ctx context.Context, id uint, actor *models.User) error
}

type UserService interface {
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Admin operations
	List(ctx context.Context, filters repositories.UserFilters, actor *models.User) (*UserListResponse, error)
	UpdateMembership(ctx context.Context, id string, req *UpdateMembershipRequest, actor *models.User) (*models.User, error)
	Delete(ctx context.Context, id string, actor *models.User) error
}

type PostService interface {
	List(ctx context.Context, filters repositories.PostFilters) (*PostListResponse, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)

	// Admin operations
	Create(ctx context.Context, req *CreatePostRequest, actor *models.User) (*models.Post, error)
	Update(ctx context.Context, id uint, req *UpdatePostRequest, actor *models.User) (*models.Post, error)
	Delete(ctx context.Context, id uint, actor *models.User) error
	UploadCover(ctx context.Context, id uint, filename, contentType string, body io.Reader, actor *models.User) (*models.Post, error)
}

type ReviewService interface {
	List(ctx context.Context, filters repositories.ReviewFilters, viewerID string) (*ReviewListResponse, error)
	Featured(ctx context.Context, limit int, viewerID string) ([]*models.Review, error)
	Create(ctx context.Context, req *CreateReviewRequest, author *models.User) (*models.Review, error)
	ToggleLike(ctx context.Context, id uint, viewer *models.User) (*LikeResponse, error)

	// Admin operations
	SetFeatured(ctx context.Context, id uint, featured bool, actor *models.User) error
	Delete(ctx context.Context, id uint, actor *models.User) error
}

type HomeService interface {
	Get(ctx context.Context, viewerID string) (*HomeResponse, error)
}

type ExportService interface {
	ExportWaitlist(ctx context.Context, programSlug *string, actor *models.User) ([]byte, error)
	ExportUsers(ctx context.Context, actor *models.User) ([]byte, error)
}

type ServiceManager interface {
	// Catalog
	Program() ProgramService
	Lecture() LectureService
	Waitlist() WaitlistService

	// Users and content
	User() UserService
	Post() PostService
	Review() ReviewService
	Home() HomeService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
