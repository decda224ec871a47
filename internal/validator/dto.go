package validator

import (
	"github.com/nexus-academy/catalog-service/internal/models"
)

// ProgramCreateRequest represents the request structure for creating programs
type ProgramCreateRequest struct {
	Slug            string             `json:"slug" validate:"required,program_slug"`
	Title           string             `json:"title" validate:"required,min=1,max=200"`
	Description     string             `json:"description" validate:"max=5000"`
	Type            models.ProgramType `json:"type" validate:"required,program_type"`
	HasCommonCourse bool               `json:"has_common_course"`
	Price           int64              `json:"price" validate:"min=0"`
	ThumbnailURL    *string            `json:"thumbnail_url" validate:"omitempty,url,max=500"`
}

// ProgramUpdateRequest only changes the fields that are present
type ProgramUpdateRequest struct {
	Slug            *string             `json:"slug" validate:"omitempty,program_slug"`
	Title           *string             `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string             `json:"description" validate:"omitempty,max=5000"`
	Type            *models.ProgramType `json:"type" validate:"omitempty,program_type"`
	HasCommonCourse *bool               `json:"has_common_course"`
	Price           *int64              `json:"price" validate:"omitempty,min=0"`
	ThumbnailURL    *string             `json:"thumbnail_url" validate:"omitempty,url,max=500"`
}

type LectureCreateRequest struct {
	ProgramID         uint                `json:"program_id" validate:"required"`
	Title             string              `json:"title" validate:"required,min=1,max=200"`
	Description       string              `json:"description" validate:"max=5000"`
	Category          string              `json:"category" validate:"max=100"`
	Level             models.LectureLevel `json:"level" validate:"required,lecture_level"`
	CohortNumber      *string             `json:"cohort_number" validate:"omitempty,cohort_number"`
	Duration          int                 `json:"duration" validate:"min=0"`
	EmbedURL          string              `json:"embed_url" validate:"omitempty,url,max=500"`
	SortOrder         int                 `json:"sort_order"`
	PreviousLectureID *uint               `json:"previous_lecture_id"`
	NextLectureID     *uint               `json:"next_lecture_id"`
}

type LectureUpdateRequest struct {
	ProgramID         *uint                `json:"program_id"`
	Title             *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description       *string              `json:"description" validate:"omitempty,max=5000"`
	Category          *string              `json:"category" validate:"omitempty,max=100"`
	Level             *models.LectureLevel `json:"level" validate:"omitempty,lecture_level"`
	CohortNumber      *string              `json:"cohort_number" validate:"omitempty,cohort_number"`
	Duration          *int                 `json:"duration" validate:"omitempty,min=0"`
	EmbedURL          *string              `json:"embed_url" validate:"omitempty,url,max=500"`
	SortOrder         *int                 `json:"sort_order"`
	PreviousLectureID *uint                `json:"previous_lecture_id"`
	NextLectureID     *uint                `json:"next_lecture_id"`
}

// WaitlistRequest is validated after the email has been normalized
type WaitlistRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	ProgramSlug string `json:"program_slug" validate:"required,max=120"`
}

type PostCreateRequest struct {
	Title    string   `json:"title" validate:"required,min=1,max=200"`
	Excerpt  string   `json:"excerpt" validate:"max=500"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category" validate:"max=100"`
	Tags     []string `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

type PostUpdateRequest struct {
	Title    *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Excerpt  *string  `json:"excerpt" validate:"omitempty,max=500"`
	Content  *string  `json:"content" validate:"omitempty,min=1"`
	Category *string  `json:"category" validate:"omitempty,max=100"`
	Tags     []string `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

type ReviewCreateRequest struct {
	Content     string  `json:"content" validate:"required,min=1,max=2000"`
	Rating      int     `json:"rating" validate:"required,min=1,max=5"`
	ProgramSlug *string `json:"program_slug" validate:"omitempty,max=120"`
}

// UserMembershipRequest is the admin edit of a user's membership fields.
// An empty master_cohort clears the assignment.
type UserMembershipRequest struct {
	Role         *models.MembershipRole `json:"role" validate:"omitempty,membership_role"`
	MasterCohort *string                `json:"master_cohort" validate:"omitempty,cohort_number"`
	IsAdmin      *bool                  `json:"is_admin"`
}
