package repositories

import "context"

// Repository aggregates every repository the service uses.
type Repository interface {
	Quiz() QuizRepository
	Attempt() AttemptRepository
	Enrollment() EnrollmentRepository
	User() UserRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
