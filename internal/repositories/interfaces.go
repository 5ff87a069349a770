package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a conditional write matched no row: the record changed
	// (or left in_progress) since it was read.
	ErrConflict = errors.New("record modified concurrently")
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	SchoolID  *string            `json:"school_id"`
	ClassID   *string            `json:"class_id"`
	SubjectID *string            `json:"subject_id"`
	CreatedBy *string            `json:"created_by"`
	Status    *models.QuizStatus `json:"status"`
	ClassIDs  []string           `json:"class_ids"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "start_date", "end_date", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// AttemptCounts splits a student's attempts on one quiz.
type AttemptCounts struct {
	Total        int64
	NonAbandoned int64
	MaxNumber    int
}

// ===== REPOSITORY INTERFACES =====
//
// Methods accept an optional tx; nil means the repository's own connection.

type QuizRepository interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	Save(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error)
	CountForStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (AttemptCounts, error)
	CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error)
	List(ctx context.Context, tx *gorm.DB, quizID uint, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	ListClosedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]models.QuizAttempt, error)

	// UpdateGuarded writes the mutable attempt columns only if the stored
	// version still equals attempt.Version and, when requireInProgress is
	// set, the stored status is still in_progress. On success attempt.Version
	// is advanced; otherwise ErrConflict is returned and attempt is untouched.
	UpdateGuarded(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt, requireInProgress bool) error
}

// EnrollmentRepository answers class membership questions.
type EnrollmentRepository interface {
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

// UserRepository is read-only; users are owned by the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
