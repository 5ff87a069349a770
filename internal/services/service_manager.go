package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// Dependencies are shared by every service.
type Dependencies struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Cache     *cache.CacheManager
	Events    events.EventPublisher
	Logger    *slog.Logger
	Validator *validator.Validator

	// Now overrides the wall clock, mainly for tests.
	Now func() time.Time
}

func (d Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps Dependencies

	quizService      QuizService
	attemptService   AttemptService
	gradingService   GradingService
	analyticsService AnalyticsService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil, 0, 0)
	}
	if deps.Events == nil {
		deps.Events, _ = events.NewInProcessEventPublisher("quiz", deps.Logger)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &serviceManager{deps: deps}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil || sm.deps.DB == nil {
		return errors.New("service manager requires a repository and a database")
	}

	sm.deps.Logger.Info("Initializing service manager")

	sm.quizService = NewQuizService(sm.deps)
	sm.attemptService = NewAttemptService(sm.deps)
	sm.gradingService = NewGradingService(sm.deps)
	sm.analyticsService = NewAnalyticsService(sm.deps)

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) Quiz() QuizService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.quizService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.gradingService
}

func (sm *serviceManager) Analytics() AnalyticsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.analyticsService
}

func (sm *serviceManager) mustBeReady() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
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

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	if err := sm.deps.Cache.HealthCheck(ctx); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		// Redis is optional; a configured but unreachable one is only reported.
		sm.deps.Logger.Warn("Cache health check failed", "error", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	var shutdownErr error
	if err := sm.deps.Events.Close(); err != nil {
		shutdownErr = fmt.Errorf("failed to close event publisher: %w", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down")
	return shutdownErr
}
