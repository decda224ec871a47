package services

import (
	"context"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

const relatedLectureLimit = 4

type lectureService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	publisher   events.EventPublisher
	recorder    metrics.Recorder
	cohortCount int
}

func NewLectureService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, recorder metrics.Recorder, cohortCount int) LectureService {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	if cohortCount <= 0 {
		cohortCount = access.DefaultCohortCount
	}
	return &lectureService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		publisher:   publisher,
		recorder:    recorder,
		cohortCount: cohortCount,
	}
}

// ===== CATALOG READS =====

func (s *lectureService) ListByProgram(ctx context.Context, programID uint) ([]models.Lecture, error) {
	lectures, err := s.repo.Lecture().ListByProgram(ctx, nil, programID)
	if err != nil {
		return nil, upstream("list lectures", err)
	}
	return lectures, nil
}

// GetProgramView loads the program and its complete lecture list and applies
// the access policy. Any load failure is returned as is and never gates.
func (s *lectureService) GetProgramView(ctx context.Context, slug string, viewer *models.User, req access.ViewRequest) (*ProgramViewResponse, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrProgramNotFound
	}

	program, err := s.repo.Program().GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}

	lectures, err := s.ListByProgram(ctx, program.ID)
	if err != nil {
		return nil, err
	}

	if req.CohortCount <= 0 {
		req.CohortCount = s.cohortCount
	}
	view := access.BuildProgramView(access.ViewerFromUser(viewer), program, lectures, req)

	resp := &ProgramViewResponse{
		Program:           view.Program,
		Gated:             view.Gated,
		Mode:              view.Mode,
		Cohort:            view.Cohort,
		CohortOptions:     view.CohortOptions,
		Categories:        view.Categories,
		Category:          view.Category,
		Lectures:          make([]LectureItem, 0, len(view.Lectures)),
		CanManageLectures: view.CanManageLectures,
	}

	if view.Gated {
		resp.Outcome = access.GatedWaitlist
		s.recorder.ObserveAccessDecision(string(program.Type), string(access.GatedWaitlist))
		return resp, nil
	}

	for _, lv := range view.Lectures {
		s.recorder.ObserveAccessDecision(string(program.Type), string(lv.Outcome))
		resp.Lectures = append(resp.Lectures, LectureItem{
			Lecture: redactLecture(lv.Lecture, lv.Outcome),
			Index:   lv.Index,
			Outcome: lv.Outcome,
		})
	}

	return resp, nil
}

// GetLecture opens a single lecture. The decision is made against the
// lecture's position in its program's full list, exactly as the listing does.
func (s *lectureService) GetLecture(ctx context.Context, id uint, viewer *models.User, cohort string) (*LectureDetailResponse, error) {
	lecture, err := s.repo.Lecture().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrLectureNotFound, "get lecture")
	}

	program, err := s.repo.Program().GetByID(ctx, nil, lecture.ProgramID)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}

	all, err := s.ListByProgram(ctx, program.ID)
	if err != nil {
		return nil, err
	}

	index := -1
	for i := range all {
		if all[i].ID == lecture.ID {
			index = i
			break
		}
	}

	v := access.ViewerFromUser(viewer)
	sel := access.SelectionForLecture(v, lecture, cohort, s.cohortCount)
	decision := access.Evaluate(v, program, lecture, index, sel)
	s.recorder.ObserveAccessDecision(string(program.Type), string(decision.Outcome))

	if !decision.Visible || decision.Outcome != access.Playable {
		return nil, &AccessDeniedError{LectureID: lecture.ID, Outcome: decision.Outcome}
	}

	related, err := s.repo.Lecture().GetRelated(ctx, nil, lecture.Category, lecture.ID, relatedLectureLimit)
	if err != nil {
		// related lectures are decoration; the lecture itself loaded fine
		s.logger.Warn("Failed to load related lectures", "lecture_id", lecture.ID, "error", err)
		related = []*models.Lecture{}
	}
	for i, r := range related {
		related[i] = redactLecture(r, access.LockedPreview)
	}

	return &LectureDetailResponse{
		Lecture:           lecture,
		Program:           program,
		Outcome:           decision.Outcome,
		PreviousLectureID: lecture.PreviousLectureID,
		NextLectureID:     lecture.NextLectureID,
		Related:           related,
	}, nil
}

// redactLecture returns a copy without the embed url unless it is playable.
// The input may be shared with a cache decode or the caller's slice.
func redactLecture(l *models.Lecture, outcome access.Outcome) *models.Lecture {
	if l == nil || outcome == access.Playable || l.EmbedURL == "" {
		return l
	}
	cp := *l
	cp.EmbedURL = ""
	return &cp
}

// ===== ADMIN OPERATIONS =====

func (s *lectureService) List(ctx context.Context, filters repositories.LectureFilters, actor *models.User) (*LectureListResponse, error) {
	if err := requireAdmin(actor, "lecture", "list"); err != nil {
		return nil, err
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	lectures, total, err := s.repo.Lecture().List(ctx, nil, filters)
	if err != nil {
		return nil, upstream("list lectures", err)
	}

	return &LectureListResponse{Lectures: lectures, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *lectureService) Create(ctx context.Context, req *CreateLectureRequest, actor *models.User) (*models.Lecture, error) {
	if err := requireAdmin(actor, "lecture", "create"); err != nil {
		return nil, err
	}
	s.logger.Info("Creating lecture", "actor_id", actor.ID, "program_id", req.ProgramID, "level", req.Level)

	if errs := s.validator.GetBusinessValidator().ValidateLectureCreate(req); len(errs) > 0 {
		return nil, errs
	}

	if _, err := s.repo.Program().GetByID(ctx, nil, req.ProgramID); err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}

	lecture := &models.Lecture{
		ProgramID:         req.ProgramID,
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		Category:          strings.TrimSpace(req.Category),
		Level:             req.Level,
		CohortNumber:      normalizeCohort(req.Level, req.CohortNumber),
		Duration:          req.Duration,
		EmbedURL:          req.EmbedURL,
		SortOrder:         req.SortOrder,
		PreviousLectureID: req.PreviousLectureID,
		NextLectureID:     req.NextLectureID,
	}

	if err := s.repo.Lecture().Create(ctx, nil, lecture); err != nil {
		return nil, upstream("create lecture", err)
	}

	s.logger.Info("Lecture created successfully", "lecture_id", lecture.ID)
	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityLecture,
		Action:    events.ActionCreated,
		EntityID:  lecture.ID,
		ProgramID: lecture.ProgramID,
	})

	return lecture, nil
}

func (s *lectureService) Update(ctx context.Context, id uint, req *UpdateLectureRequest, actor *models.User) (*models.Lecture, error) {
	if err := requireAdmin(actor, "lecture", "update"); err != nil {
		return nil, err
	}
	s.logger.Info("Updating lecture", "lecture_id", id, "actor_id", actor.ID)

	lecture, err := s.repo.Lecture().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrLectureNotFound, "get lecture")
	}

	if errs := s.validator.GetBusinessValidator().ValidateLectureUpdate(req, lecture); len(errs) > 0 {
		return nil, errs
	}

	if req.ProgramID != nil && *req.ProgramID != lecture.ProgramID {
		if _, err := s.repo.Program().GetByID(ctx, nil, *req.ProgramID); err != nil {
			return nil, classify(err, ErrProgramNotFound, "get program")
		}
		lecture.ProgramID = *req.ProgramID
	}
	if req.Title != nil {
		lecture.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		lecture.Description = *req.Description
	}
	if req.Category != nil {
		lecture.Category = strings.TrimSpace(*req.Category)
	}
	if req.Level != nil {
		lecture.Level = *req.Level
	}
	if req.CohortNumber != nil {
		lecture.CohortNumber = req.CohortNumber
	}
	lecture.CohortNumber = normalizeCohort(lecture.Level, lecture.CohortNumber)
	if req.Duration != nil {
		lecture.Duration = *req.Duration
	}
	if req.EmbedURL != nil {
		lecture.EmbedURL = *req.EmbedURL
	}
	if req.SortOrder != nil {
		lecture.SortOrder = *req.SortOrder
	}
	if req.PreviousLectureID != nil {
		lecture.PreviousLectureID = req.PreviousLectureID
	}
	if req.NextLectureID != nil {
		lecture.NextLectureID = req.NextLectureID
	}

	if err := s.repo.Lecture().Update(ctx, nil, lecture); err != nil {
		return nil, classify(err, ErrLectureNotFound, "update lecture")
	}

	s.logger.Info("Lecture updated successfully", "lecture_id", id)
	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityLecture,
		Action:    events.ActionUpdated,
		EntityID:  lecture.ID,
		ProgramID: lecture.ProgramID,
	})

	return lecture, nil
}

func (s *lectureService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := requireAdmin(actor, "lecture", "delete"); err != nil {
		return err
	}
	s.logger.Info("Deleting lecture", "lecture_id", id, "actor_id", actor.ID)

	lecture, err := s.repo.Lecture().GetByID(ctx, nil, id)
	if err != nil {
		return classify(err, ErrLectureNotFound, "get lecture")
	}

	if err := s.repo.Lecture().Delete(ctx, nil, id); err != nil {
		return classify(err, ErrLectureNotFound, "delete lecture")
	}

	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityLecture,
		Action:    events.ActionDeleted,
		EntityID:  id,
		ProgramID: lecture.ProgramID,
	})

	return nil
}

// normalizeCohort keeps a trimmed cohort only on master lectures.
func normalizeCohort(level models.LectureLevel, cohort *string) *string {
	if level != models.LevelMaster || cohort == nil {
		return nil
	}
	c := strings.TrimSpace(*cohort)
	if c == "" {
		return nil
	}
	return &c
}
