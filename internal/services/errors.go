package services

import (
	"errors"
	"fmt"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

// ErrNotFound is the parent of every "does not exist" error below.
var ErrNotFound = errors.New("not found")

var (
	ErrProgramNotFound  = fmt.Errorf("program %w", ErrNotFound)
	ErrLectureNotFound  = fmt.Errorf("lecture %w", ErrNotFound)
	ErrWaitlistNotFound = fmt.Errorf("waitlist entry %w", ErrNotFound)
	ErrPostNotFound     = fmt.Errorf("post %w", ErrNotFound)
	ErrReviewNotFound   = fmt.Errorf("review %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
)

var (
	ErrDuplicateEntry  = errors.New("duplicate entry")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

var (
	ErrWaitlistDuplicate = fmt.Errorf("Email already on waitlist for this program: %w", ErrDuplicateEntry)
	ErrProgramSlugTaken  = fmt.Errorf("program slug already exists: %w", ErrDuplicateEntry)
	ErrPostSlugTaken     = fmt.Errorf("post slug already exists: %w", ErrDuplicateEntry)
)

// UpstreamError is a storage or identity provider failure. The caller may retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamFailure, e.Err}
}

// PermissionError is returned when the caller lacks a role for an action
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{UserID: userID, Resource: resource, Action: action, Reason: reason}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %q cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrForbidden }

// AccessDeniedError means the policy did not allow playback of a lecture.
type AccessDeniedError struct {
	LectureID uint
	Outcome   access.Outcome
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("lecture %d is %s for this viewer", e.LectureID, e.Outcome)
}

func (e *AccessDeniedError) Unwrap() error { return ErrForbidden }

// BusinessRuleError is a request that is well formed but breaks a catalog rule
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// classify maps a repository error onto the service taxonomy. Not found
// becomes notFound, everything else is an upstream failure.
func classify(err error, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if repositories.IsNotFoundError(err) {
		return notFound
	}
	return &UpstreamError{Op: op, Err: err}
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
