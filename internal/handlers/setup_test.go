package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories/postgres"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
	"github.com/cropsgg/ionia-stage2-sub000/pkg"
)

const (
	teacherToken = "teacher-token"
	studentToken = "student-token"
	adminToken   = "admin-token"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)

// fakeTokenParser accepts a fixed set of tokens.
type fakeTokenParser map[string]*casdoorsdk.Claims

func (f fakeTokenParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	claims, ok := f[token]
	if !ok {
		return nil, errors.New("token signature is invalid")
	}
	return claims, nil
}

func claimsFor(id string, roles ...string) *casdoorsdk.Claims {
	claims := &casdoorsdk.Claims{}
	claims.User.Id = id
	claims.User.DisplayName = id
	for _, r := range roles {
		claims.User.Roles = append(claims.User.Roles, &casdoorsdk.Role{Name: r})
	}
	return claims
}

// directoryDown makes every lookup miss so users come from token claims.
type directoryDown struct{}

func (directoryDown) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

type testServer struct {
	router     *gin.Engine
	enrollment *postgres.EnrollmentPostgreSQL
	events     *events.MockEventPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:http_" + nonWord.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
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

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:               db,
		EnrollmentSource: postgres.EnrollmentSourcePostgres,
	})

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher(nil)
	sm := services.NewServiceManager(services.Dependencies{
		DB:        db,
		Repo:      repo,
		Events:    publisher,
		Logger:    slogger,
		Validator: validator.New(),
	})
	require.NoError(t, sm.Initialize(context.Background()))

	parser := fakeTokenParser{
		teacherToken: claimsFor("teacher-1", "teacher"),
		studentToken: claimsFor("student-1"),
		adminToken:   claimsFor("admin-1", "admin"),
	}

	log := utils.NewSlogLogger(slogger)
	router := gin.New()
	SetupMiddleware(router, log)
	NewHandlerManager(sm, log, parser, directoryDown{}).SetupRoutes(router)

	return &testServer{
		router:     router,
		enrollment: postgres.NewEnrollmentPostgreSQL(db).(*postgres.EnrollmentPostgreSQL),
		events:     publisher,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// quizBody is a live quiz with one single_choice question answered by "a".
func quizBody() validator.CreateQuizRequest {
	now := time.Now()
	return validator.CreateQuizRequest{
		SchoolID:  "school-1",
		ClassID:   "class-1",
		SubjectID: "science",
		Title:     "Cells",
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		Duration:  30,
		Settings: validator.SettingsRequest{
			MaxAttempts: 1,
			ShowResults: models.ShowResultsImmediately,
		},
		Questions: []validator.QuestionRequest{
			{
				ID:    "q1",
				Type:  models.SingleChoice,
				Text:  "Which organelle makes energy?",
				Marks: 4,
				Options: []validator.OptionRequest{
					{ID: "a", Text: "Mitochondria", IsCorrect: true},
					{ID: "b", Text: "Nucleus"},
				},
			},
		},
	}
}

func (s *testServer) doWithHeader(t *testing.T, method, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
