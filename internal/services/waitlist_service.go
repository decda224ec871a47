package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/notify"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

const notificationTimeout = 10 * time.Second

type waitlistService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	notifier  notify.Notifier
	recorder  metrics.Recorder
}

func NewWaitlistService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, notifier notify.Notifier, recorder metrics.Recorder) WaitlistService {
	if notifier == nil {
		notifier = notify.NopNotifier{Logger: logger}
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &waitlistService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		notifier:  notifier,
		recorder:  recorder,
	}
}

// AddToWaitlist records interest in a program. The (email, program) pair is
// unique: it is checked first, and the unique index catches the race between
// two concurrent submissions.
func (s *waitlistService) AddToWaitlist(ctx context.Context, email, programSlug string) (*models.WaitlistEntry, error) {
	req := &WaitlistRequest{
		Email:       strings.ToLower(strings.TrimSpace(email)),
		ProgramSlug: strings.TrimSpace(programSlug),
	}
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	program, err := s.repo.Program().GetBySlug(ctx, nil, req.ProgramSlug)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}

	exists, err := s.repo.Waitlist().ExistsByEmailAndProgram(ctx, nil, req.Email, program.Slug)
	if err != nil {
		return nil, upstream("check waitlist entry", err)
	}
	if exists {
		return nil, ErrWaitlistDuplicate
	}

	entry := &models.WaitlistEntry{
		Email:       req.Email,
		ProgramSlug: program.Slug,
	}
	if err := s.repo.Waitlist().Create(ctx, nil, entry); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrWaitlistDuplicate
		}
		return nil, upstream("create waitlist entry", err)
	}

	s.logger.Info("Waitlist entry created", "entry_id", entry.ID, "program_slug", entry.ProgramSlug)
	s.recorder.IncWaitlistSignup(entry.ProgramSlug)

	publishEvent(ctx, s.publisher, s.logger, events.NewWaitlistJoinedEvent(events.WaitlistJoinedData{
		EntryID:     entry.ID,
		Email:       entry.Email,
		ProgramSlug: entry.ProgramSlug,
	}))

	go s.sendConfirmation(context.WithoutCancel(ctx), entry.Email, program.Title)

	return entry, nil
}

func (s *waitlistService) sendConfirmation(ctx context.Context, email, programTitle string) {
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()

	if err := s.notifier.SendWaitlistConfirmation(ctx, email, programTitle); err != nil {
		s.recorder.IncNotificationFailure("waitlist_confirmation")
		s.logger.Warn("Failed to send waitlist confirmation", "program", programTitle, "error", err)
	}
}

// ===== ADMIN OPERATIONS =====

func (s *waitlistService) List(ctx context.Context, filters repositories.WaitlistFilters, actor *models.User) (*WaitlistListResponse, error) {
	if err := requireAdmin(actor, "waitlist", "list"); err != nil {
		return nil, err
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	entries, total, err := s.repo.Waitlist().List(ctx, nil, filters)
	if err != nil {
		return nil, upstream("list waitlist", err)
	}

	return &WaitlistListResponse{Entries: entries, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *waitlistService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := requireAdmin(actor, "waitlist", "delete"); err != nil {
		return err
	}

	if err := s.repo.Waitlist().Delete(ctx, nil, id); err != nil {
		return classify(err, ErrWaitlistNotFound, "delete waitlist entry")
	}

	s.logger.Info("Waitlist entry deleted", "entry_id", id, "actor_id", actor.ID)
	return nil
}
