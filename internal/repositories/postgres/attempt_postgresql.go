package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
)

var attemptSortColumns = map[string]bool{
	"created_at":     true,
	"started_at":     true,
	"submitted_at":   true,
	"attempt_number": true,
	"time_spent":     true,
	"status":         true,
}

// Columns rewritten by UpdateGuarded. Identity, quiz/student and the question
// snapshot never change after creation.
var attemptMutableColumns = []string{
	"status",
	"submitted_at",
	"time_spent",
	"answers",
	"results",
	"analytics",
	"version",
	"updated_at",
}

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== CORE ATTEMPT OPERATIONS =====

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	if err := a.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return translateError(err, "create attempt")
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err, "get attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("quiz_id = ? AND student_id = ? AND status = ?", quizID, studentID, models.AttemptInProgress).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err, "get active attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) UpdateGuarded(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt, requireInProgress bool) error {
	expected := attempt.Version
	attempt.Version = expected + 1

	query := a.getDB(tx).WithContext(ctx).
		Model(attempt).
		Where("version = ?", expected)
	if requireInProgress {
		query = query.Where("status = ?", models.AttemptInProgress)
	}

	result := query.Select(attemptMutableColumns).Updates(attempt)
	if result.Error != nil {
		attempt.Version = expected
		return translateError(result.Error, "update attempt")
	}
	if result.RowsAffected == 0 {
		attempt.Version = expected
		return repositories.ErrConflict
	}
	return nil
}

// ===== COUNTS AND LISTINGS =====

func (a *AttemptPostgreSQL) CountForStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (repositories.AttemptCounts, error) {
	var counts repositories.AttemptCounts
	row := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select(`COUNT(*),
			COALESCE(SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(attempt_number), 0)`, models.AttemptAbandoned).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Row()
	if err := row.Scan(&counts.Total, &counts.NonAbandoned, &counts.MaxNumber); err != nil {
		return counts, translateError(err, "count student attempts")
	}
	return counts, nil
}

func (a *AttemptPostgreSQL) CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ?", quizID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err, "count quiz attempts")
	}
	return count, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	query := a.getDB(tx).WithContext(ctx).Model(&models.QuizAttempt{}).Where("quiz_id = ?", quizID)
	query = applyAttemptFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count attempts")
	}

	var attempts []*models.QuizAttempt
	query = applyPaginationAndSort(query, attemptSortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, translateError(err, "list attempts")
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListClosedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("quiz_id = ? AND status <> ?", quizID, models.AttemptInProgress).
		Order("id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, translateError(err, "list closed attempts")
	}
	return attempts, nil
}
