package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/pkg"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + nonWord.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, pkg.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func sampleQuiz() *models.Quiz {
	now := time.Now().UTC()
	return &models.Quiz{
		SchoolID:  "school-1",
		ClassID:   "class-1",
		SubjectID: "math",
		CreatedBy: "teacher-1",
		Title:     "Fractions",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		Duration:  30,
		Settings:  models.QuizSettings{MaxAttempts: 2, ShowResults: models.ShowResultsImmediately},
		Questions: []models.Question{{
			ID:         "q1",
			Type:       models.SingleChoice,
			Text:       "1/2 + 1/2?",
			Marks:      2,
			Difficulty: models.DifficultyEasy,
			Options: []models.Option{
				{ID: "a", Text: "1", IsCorrect: true},
				{ID: "b", Text: "2"},
			},
		}},
		Grading: models.QuizGrading{TotalMarks: 2, PassingMarks: 1},
		Status:  models.QuizStatusDraft,
	}
}

func newAttempt(quizID uint, student string, number int, status models.AttemptStatus) *models.QuizAttempt {
	return &models.QuizAttempt{
		QuizID:        quizID,
		StudentID:     student,
		AttemptNumber: number,
		Status:        status,
		StartedAt:     time.Now().UTC(),
	}
}

func TestQuizRepository_CreateGetSave(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizPostgreSQL(db, cache.NewCacheManager(nil, 0, 0))
	ctx := context.Background()

	quiz := sampleQuiz()
	require.NoError(t, repo.Create(ctx, nil, quiz))
	require.NotZero(t, quiz.ID)

	got, err := repo.GetByID(ctx, nil, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fractions", got.Title)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "q1", got.Questions[0].ID)
	assert.True(t, got.Questions[0].Options[0].IsCorrect)

	got.Status = models.QuizStatusPublished
	require.NoError(t, repo.Save(ctx, nil, got))

	reloaded, err := repo.GetByID(ctx, nil, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusPublished, reloaded.Status)

	_, err = repo.GetByID(ctx, nil, 9999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestQuizRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizPostgreSQL(db, cache.NewCacheManager(nil, 0, 0))
	ctx := context.Background()

	for i, class := range []string{"class-1", "class-1", "class-2"} {
		quiz := sampleQuiz()
		quiz.ClassID = class
		quiz.Title = []string{"b", "a", "c"}[i]
		require.NoError(t, repo.Create(ctx, nil, quiz))
	}

	classID := "class-1"
	quizzes, total, err := repo.List(ctx, nil, repositories.QuizFilters{ClassID: &classID, SortBy: "title", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "a", quizzes[0].Title)

	// unknown sort columns fall back to created_at
	_, total, err = repo.List(ctx, nil, repositories.QuizFilters{SortBy: "1; DROP TABLE quizzes", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestAttemptRepository_UniqueAttemptNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptPostgreSQL(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, newAttempt(1, "s1", 1, models.AttemptInProgress)))
	err := repo.Create(ctx, nil, newAttempt(1, "s1", 1, models.AttemptInProgress))
	assert.ErrorIs(t, err, repositories.ErrConflict)
}

func TestAttemptRepository_UpdateGuarded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptPostgreSQL(db)
	ctx := context.Background()

	attempt := newAttempt(1, "s1", 1, models.AttemptInProgress)
	require.NoError(t, repo.Create(ctx, nil, attempt))
	assert.Equal(t, 1, attempt.Version)

	stale, err := repo.GetByID(ctx, nil, attempt.ID)
	require.NoError(t, err)

	attempt.TimeSpent = 42
	attempt.Answers = append(attempt.Answers, models.Answer{QuestionID: "q1", SelectedOptions: []string{"a"}})
	require.NoError(t, repo.UpdateGuarded(ctx, nil, attempt, true))
	assert.Equal(t, 2, attempt.Version)

	stale.TimeSpent = 7
	err = repo.UpdateGuarded(ctx, nil, stale, true)
	assert.ErrorIs(t, err, repositories.ErrConflict)
	assert.Equal(t, 1, stale.Version)

	stored, err := repo.GetByID(ctx, nil, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.TimeSpent)
	require.Len(t, stored.Answers, 1)
	assert.Equal(t, []string{"a"}, stored.Answers[0].SelectedOptions)
}

func TestAttemptRepository_UpdateGuardedRequiresInProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptPostgreSQL(db)
	ctx := context.Background()

	attempt := newAttempt(1, "s1", 1, models.AttemptInProgress)
	require.NoError(t, repo.Create(ctx, nil, attempt))

	now := time.Now().UTC()
	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now
	attempt.Results = &models.AttemptResults{TotalMarks: 10, ObtainedMarks: 4, Percentage: 40}
	require.NoError(t, repo.UpdateGuarded(ctx, nil, attempt, true))

	// closed attempts can still be regraded without the status guard
	attempt.Results.ObtainedMarks = 6
	require.NoError(t, repo.UpdateGuarded(ctx, nil, attempt, false))

	err := repo.UpdateGuarded(ctx, nil, attempt, true)
	assert.ErrorIs(t, err, repositories.ErrConflict)

	stored, err := repo.GetByID(ctx, nil, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Results)
	assert.Equal(t, 6.0, stored.Results.ObtainedMarks)
	assert.Equal(t, models.AttemptSubmitted, stored.Status)
}

func TestAttemptRepository_CountsAndActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptPostgreSQL(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, newAttempt(1, "s1", 1, models.AttemptSubmitted)))
	require.NoError(t, repo.Create(ctx, nil, newAttempt(1, "s1", 2, models.AttemptAbandoned)))
	require.NoError(t, repo.Create(ctx, nil, newAttempt(1, "s1", 3, models.AttemptInProgress)))
	require.NoError(t, repo.Create(ctx, nil, newAttempt(1, "s2", 1, models.AttemptAutoSubmitted)))

	counts, err := repo.CountForStudent(ctx, nil, 1, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.NonAbandoned)
	assert.Equal(t, 3, counts.MaxNumber)

	counts, err = repo.CountForStudent(ctx, nil, 1, "nobody")
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
	assert.Zero(t, counts.MaxNumber)

	active, err := repo.GetActiveAttempt(ctx, nil, 1, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, active.AttemptNumber)

	_, err = repo.GetActiveAttempt(ctx, nil, 1, "s2")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	total, err := repo.CountByQuiz(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	closed, err := repo.ListClosedByQuiz(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, closed, 3)

	student := "s1"
	listed, listedTotal, err := repo.List(ctx, nil, 1, repositories.AttemptFilters{StudentID: &student, SortBy: "attempt_number", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), listedTotal)
	assert.Equal(t, 1, listed[0].AttemptNumber)
}

func TestEnrollmentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnrollmentPostgreSQL(db).(*EnrollmentPostgreSQL)
	ctx := context.Background()

	ok, err := repo.IsEnrolled(ctx, "class-1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Enroll(ctx, "class-1", "s1"))
	require.NoError(t, repo.Enroll(ctx, "class-1", "s1"))

	ok, err = repo.IsEnrolled(ctx, "class-1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}
