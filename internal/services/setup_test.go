package services

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories/postgres"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
	"github.com/cropsgg/ionia-stage2-sub000/pkg"
)

var (
	t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	teacher      = Caller{UserID: "teacher-1", Role: models.RoleTeacher}
	otherTeacher = Caller{UserID: "teacher-2", Role: models.RoleTeacher}
	admin        = Caller{UserID: "admin-1", Role: models.RoleAdmin}
	student      = Caller{UserID: "student-1", Role: models.RoleStudent}
	student2     = Caller{UserID: "student-2", Role: models.RoleStudent}

	nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db         *gorm.DB
	clock      *fakeClock
	events     *events.MockEventPublisher
	redis      *miniredis.Miniredis
	cache      *cache.CacheManager
	enrollment *postgres.EnrollmentPostgreSQL
	services   ServiceManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:svc_" + nonWord.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
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

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cm := cache.NewCacheManager(client, time.Minute, time.Minute)

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:               db,
		RedisClient:      client,
		CacheManager:     cm,
		EnrollmentSource: postgres.EnrollmentSourcePostgres,
	})

	clock := &fakeClock{now: t0}
	publisher := events.NewMockEventPublisher(nil)
	sm := NewServiceManager(Dependencies{
		DB:        db,
		Repo:      repo,
		Cache:     cm,
		Events:    publisher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: validator.New(),
		Now:       clock.Now,
	})
	require.NoError(t, sm.Initialize(context.Background()))

	return &testEnv{
		db:         db,
		clock:      clock,
		events:     publisher,
		redis:      mr,
		cache:      cm,
		enrollment: postgres.NewEnrollmentPostgreSQL(db).(*postgres.EnrollmentPostgreSQL),
		services:   sm,
	}
}

func (e *testEnv) enroll(t *testing.T, classID string, students ...Caller) {
	t.Helper()
	for _, s := range students {
		require.NoError(t, e.enrollment.Enroll(context.Background(), classID, s.UserID))
	}
}

// twoQuestionQuiz has two single_choice questions worth 5 marks each with a
// 1 mark penalty; q1 is answered by "q1-a" and q2 by "q2-b".
func twoQuestionQuiz() *validator.CreateQuizRequest {
	return &validator.CreateQuizRequest{
		SchoolID:  "school-1",
		ClassID:   "class-1",
		SubjectID: "science",
		Title:     "Plants",
		StartDate: t0.Add(-time.Hour),
		EndDate:   t0.Add(24 * time.Hour),
		Duration:  10,
		Settings: validator.SettingsRequest{
			MaxAttempts: 1,
			ShowResults: models.ShowResultsImmediately,
		},
		Questions: []validator.QuestionRequest{
			{
				ID:            "q1",
				Type:          models.SingleChoice,
				Text:          "Which gas do plants absorb?",
				Marks:         5,
				NegativeMarks: 1,
				Difficulty:    models.DifficultyEasy,
				Options: []validator.OptionRequest{
					{ID: "q1-a", Text: "Carbon dioxide", IsCorrect: true},
					{ID: "q1-b", Text: "Helium"},
				},
			},
			{
				ID:            "q2",
				Type:          models.SingleChoice,
				Text:          "Where does photosynthesis happen?",
				Marks:         5,
				NegativeMarks: 1,
				Difficulty:    models.DifficultyHard,
				Options: []validator.OptionRequest{
					{ID: "q2-a", Text: "Roots"},
					{ID: "q2-b", Text: "Chloroplasts", IsCorrect: true},
				},
			},
		},
	}
}

// publishedQuiz creates and publishes req as teacher and enrolls student.
func (e *testEnv) publishedQuiz(t *testing.T, req *validator.CreateQuizRequest) *QuizResponse {
	t.Helper()
	ctx := context.Background()
	created, err := e.services.Quiz().Create(ctx, req, teacher)
	require.NoError(t, err)
	published, err := e.services.Quiz().Publish(ctx, created.ID, teacher)
	require.NoError(t, err)
	e.enroll(t, req.ClassID, student, student2)
	return published
}

func (e *testEnv) answer(t *testing.T, attemptID uint, questionID string, options ...string) {
	t.Helper()
	_, err := e.services.Attempt().RecordAnswer(context.Background(), attemptID, questionID,
		&validator.RecordAnswerRequest{SelectedOptions: options, TimeSpentDelta: 30}, student.UserID)
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }
