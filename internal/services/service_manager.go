package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/notify"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/storage"
	"github.com/nexus-academy/catalog-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Size of the generated cohort range for master viewers without a cohort
	CohortCount int
}

// Collaborators outside the database. Nil members fall back to no-op versions.
type ServiceDependencies struct {
	Publisher events.EventPublisher
	Notifier  notify.Notifier
	Storage   storage.ObjectStorage
	Recorder  metrics.Recorder
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	deps      ServiceDependencies
	config    ServiceManagerConfig

	// Service instances
	programService  ProgramService
	lectureService  LectureService
	waitlistService WaitlistService
	userService     UserService
	postService     PostService
	reviewService   ReviewService
	homeService     HomeService
	exportService   ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{Logger: logger}
	}
	if deps.Storage == nil {
		deps.Storage = storage.DisabledStorage{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NopRecorder{}
	}
	if config.CohortCount <= 0 {
		config.CohortCount = access.DefaultCohortCount
	}

	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		deps:      deps,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.programService = NewProgramService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Publisher)
	sm.lectureService = NewLectureService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Publisher, sm.deps.Recorder, sm.config.CohortCount)
	sm.waitlistService = NewWaitlistService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Publisher, sm.deps.Notifier, sm.deps.Recorder)
	sm.userService = NewUserService(sm.repo, sm.logger, sm.validator)
	sm.postService = NewPostService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Storage)
	sm.reviewService = NewReviewService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.homeService = NewHomeService(sm.repo, sm.reviewService, sm.logger)
	sm.exportService = NewExportService(sm.repo, sm.logger)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully", "cohort_count", sm.config.CohortCount)

	return nil
}

func (sm *serviceManager) mustBeReady(name string) {
	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.shutdown {
		panic(name + " service requested after shutdown")
	}
}

// Service getters
func (sm *serviceManager) Program() ProgramService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("program")
	return sm.programService
}

func (sm *serviceManager) Lecture() LectureService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("lecture")
	return sm.lectureService
}

func (sm *serviceManager) Waitlist() WaitlistService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("waitlist")
	return sm.waitlistService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("user")
	return sm.userService
}

func (sm *serviceManager) Post() PostService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("post")
	return sm.postService
}

func (sm *serviceManager) Review() ReviewService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("review")
	return sm.reviewService
}

func (sm *serviceManager) Home() HomeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("home")
	return sm.homeService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("export")
	return sm.exportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")
	sm.shutdown = true

	if err := sm.deps.Publisher.Close(); err != nil {
		sm.logger.Warn("Failed to close event publisher", "error", err)
	}

	return nil
}
