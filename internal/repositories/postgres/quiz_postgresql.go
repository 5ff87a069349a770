package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
)

var quizSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"start_date": true,
	"end_date":   true,
	"title":      true,
	"status":     true,
}

type QuizPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (q *QuizPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuizPostgreSQL) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	if err := q.getDB(tx).WithContext(ctx).Create(quiz).Error; err != nil {
		return translateError(err, "create quiz")
	}
	return nil
}

// GetByID serves from cache outside transactions.
func (q *QuizPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	if tx != nil {
		return q.fetch(ctx, tx, id)
	}

	var quiz models.Quiz
	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cache.QuizKey(id), &quiz, func() (interface{}, error) {
		return q.fetch(ctx, nil, id)
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (q *QuizPostgreSQL) fetch(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := q.getDB(tx).WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, translateError(err, "get quiz")
	}
	return &quiz, nil
}

func (q *QuizPostgreSQL) Save(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	if err := q.getDB(tx).WithContext(ctx).Save(quiz).Error; err != nil {
		return translateError(err, "save quiz")
	}
	cache.InvalidateQuizCache(ctx, q.cacheManager, quiz.ID)
	return nil
}

func (q *QuizPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	query := applyQuizFilters(q.getDB(tx).WithContext(ctx).Model(&models.Quiz{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "count quizzes")
	}

	var quizzes []*models.Quiz
	query = applyPaginationAndSort(query, quizSortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&quizzes).Error; err != nil {
		return nil, 0, translateError(err, "list quizzes")
	}
	return quizzes, total, nil
}
