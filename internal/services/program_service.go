package services

import (
	"context"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

type programService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewProgramService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) ProgramService {
	return &programService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== READS =====

func (s *programService) GetBySlug(ctx context.Context, slug string) (*models.Program, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrProgramNotFound
	}

	program, err := s.repo.Program().GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}
	return program, nil
}

func (s *programService) GetByID(ctx context.Context, id uint) (*models.Program, error) {
	program, err := s.repo.Program().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}
	return program, nil
}

func (s *programService) List(ctx context.Context, filters repositories.ProgramFilters) (*ProgramListResponse, error) {
	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	programs, total, err := s.repo.Program().List(ctx, nil, filters)
	if err != nil {
		return nil, upstream("list programs", err)
	}

	return &ProgramListResponse{
		Programs: programs,
		Total:    total,
		Page:     page,
		Size:     filters.Limit,
	}, nil
}

// ===== ADMIN OPERATIONS =====

func (s *programService) Create(ctx context.Context, req *CreateProgramRequest, actor *models.User) (*models.Program, error) {
	if err := requireAdmin(actor, "program", "create"); err != nil {
		return nil, err
	}
	s.logger.Info("Creating program", "actor_id", actor.ID, "slug", req.Slug)

	if errs := s.validator.GetBusinessValidator().ValidateProgramCreate(req); len(errs) > 0 {
		return nil, errs
	}

	exists, err := s.repo.Program().ExistsBySlug(ctx, nil, req.Slug, nil)
	if err != nil {
		return nil, upstream("check program slug", err)
	}
	if exists {
		return nil, ErrProgramSlugTaken
	}

	program := &models.Program{
		Slug:            req.Slug,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Type:            req.Type,
		HasCommonCourse: req.HasCommonCourse,
		Price:           req.Price,
		ThumbnailURL:    req.ThumbnailURL,
	}

	if err := s.repo.Program().Create(ctx, nil, program); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrProgramSlugTaken
		}
		return nil, upstream("create program", err)
	}

	s.logger.Info("Program created successfully", "program_id", program.ID)
	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityProgram,
		Action:    events.ActionCreated,
		EntityID:  program.ID,
		ProgramID: program.ID,
		Slug:      program.Slug,
	})

	return program, nil
}

func (s *programService) Update(ctx context.Context, id uint, req *UpdateProgramRequest, actor *models.User) (*models.Program, error) {
	if err := requireAdmin(actor, "program", "update"); err != nil {
		return nil, err
	}
	s.logger.Info("Updating program", "program_id", id, "actor_id", actor.ID)

	if errs := s.validator.GetBusinessValidator().ValidateProgramUpdate(req); len(errs) > 0 {
		return nil, errs
	}

	program, err := s.repo.Program().GetByID(ctx, nil, id)
	if err != nil {
		return nil, classify(err, ErrProgramNotFound, "get program")
	}
	oldSlug := program.Slug

	if req.Slug != nil && *req.Slug != program.Slug {
		exists, err := s.repo.Program().ExistsBySlug(ctx, nil, *req.Slug, &id)
		if err != nil {
			return nil, upstream("check program slug", err)
		}
		if exists {
			return nil, ErrProgramSlugTaken
		}
		program.Slug = *req.Slug
	}
	if req.Title != nil {
		program.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.Type != nil {
		program.Type = *req.Type
	}
	if req.HasCommonCourse != nil {
		program.HasCommonCourse = *req.HasCommonCourse
	}
	if req.Price != nil {
		program.Price = *req.Price
	}
	if req.ThumbnailURL != nil {
		program.ThumbnailURL = req.ThumbnailURL
	}

	if err := s.repo.Program().Update(ctx, nil, program); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrProgramSlugTaken
		}
		return nil, classify(err, ErrProgramNotFound, "update program")
	}

	s.logger.Info("Program updated successfully", "program_id", id)
	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityProgram,
		Action:    events.ActionUpdated,
		EntityID:  program.ID,
		ProgramID: program.ID,
		Slug:      oldSlug,
	})

	return program, nil
}

func (s *programService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if err := requireAdmin(actor, "program", "delete"); err != nil {
		return err
	}
	s.logger.Info("Deleting program", "program_id", id, "actor_id", actor.ID)

	program, err := s.repo.Program().GetByID(ctx, nil, id)
	if err != nil {
		return classify(err, ErrProgramNotFound, "get program")
	}

	if err := s.repo.Program().Delete(ctx, nil, id); err != nil {
		return classify(err, ErrProgramNotFound, "delete program")
	}

	s.logger.Info("Program deleted successfully", "program_id", id)
	publishCatalogChange(ctx, s.publisher, s.logger, events.CatalogChangedData{
		Entity:    events.EntityProgram,
		Action:    events.ActionDeleted,
		EntityID:  id,
		ProgramID: id,
		Slug:      program.Slug,
	})

	return nil
}
