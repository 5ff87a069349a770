package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

func (s *testServer) publishedQuiz(t *testing.T) *services.QuizResponse {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/quizzes", teacherToken, quizBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[services.QuizResponse](t, w)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/quizzes/%d/publish", created.ID), teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, s.enrollment.Enroll(context.Background(), "class-1", "student-1"))
	quiz := decode[services.QuizResponse](t, w)
	return &quiz
}

func TestQuizAttemptFlow(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.publishedQuiz(t)
	assert.Equal(t, models.QuizStatusPublished, quiz.Status)
	assert.Equal(t, 4.0, quiz.Grading.TotalMarks)

	attemptsPath := fmt.Sprintf("/api/v1/quizzes/%d/attempts", quiz.ID)

	w := srv.do(t, http.MethodPost, attemptsPath, studentToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decode[services.StartAttemptResponse](t, w)
	require.Len(t, started.Questions, 1)
	for _, opt := range started.Questions[0].Options {
		assert.Nil(t, opt.IsCorrect, "correctness must not reach the student")
	}
	assert.InDelta(t, 30*60, started.TimeRemaining, 2)
	attemptID := started.Attempt.ID

	w = srv.do(t, http.MethodPost, attemptsPath, studentToken, validator.StartAttemptRequest{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[services.StartAttemptResponse](t, w).Resumed)

	w = srv.do(t, http.MethodPut, fmt.Sprintf("/api/v1/attempts/%d/answers/q1", attemptID), studentToken,
		validator.RecordAnswerRequest{SelectedOptions: []string{"a"}, TimeSpentDelta: 12})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ack := decode[services.AnswerAck](t, w)
	assert.Equal(t, 12, ack.TimeSpent)
	assert.Equal(t, 1, ack.Revisions)

	w = srv.do(t, http.MethodPut, fmt.Sprintf("/api/v1/attempts/%d/answers/missing", attemptID), studentToken,
		validator.RecordAnswerRequest{SelectedOptions: []string{"a"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/submit", attemptID), studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	submitted := decode[services.SubmitResponse](t, w)
	require.NotNil(t, submitted.Results)
	assert.Equal(t, 4.0, submitted.Results.ObtainedMarks)
	assert.Equal(t, 100, submitted.Results.Percentage)
	assert.Equal(t, models.AttemptSubmitted, submitted.Attempt.Status)

	w = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/submit", attemptID), studentToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodPost, attemptsPath, studentToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	details := decode[ErrorResponse](t, w).Details.(map[string]interface{})
	assert.Equal(t, float64(1), details["max_attempts"])

	w = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/quizzes/%d/statistics", quiz.ID), teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[scoring.QuizStatistics](t, w)
	assert.Equal(t, 1, stats.TotalAttempts)
	assert.Equal(t, 100.0, stats.AverageScore)

	w = srv.do(t, http.MethodGet, attemptsPath, teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), decode[services.AttemptListResponse](t, w).Total)

	assert.Len(t, srv.events.EventsOfType(events.AttemptSubmitted), 1)
}

func TestQuizHandler_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.publishedQuiz(t)

	invalid := quizBody()
	invalid.Duration = 0
	noCorrect := quizBody()
	noCorrect.Questions[0].Options[0].IsCorrect = false

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{name: "bad id", method: http.MethodGet, path: "/api/v1/quizzes/abc", token: teacherToken, status: http.StatusBadRequest},
		{name: "unknown quiz", method: http.MethodGet, path: "/api/v1/quizzes/999", token: teacherToken, status: http.StatusNotFound},
		{name: "validation", method: http.MethodPost, path: "/api/v1/quizzes", token: teacherToken, body: invalid, status: http.StatusBadRequest},
		{name: "structure", method: http.MethodPost, path: "/api/v1/quizzes", token: teacherToken, body: noCorrect, status: http.StatusUnprocessableEntity},
		{name: "students need a class", method: http.MethodGet, path: "/api/v1/quizzes", token: studentToken, status: http.StatusBadRequest},
		{name: "foreign class", method: http.MethodGet, path: "/api/v1/quizzes?class_id=class-9", token: studentToken, status: http.StatusForbidden},
		{name: "unknown attempt", method: http.MethodGet, path: "/api/v1/attempts/42", token: studentToken, status: http.StatusNotFound},
		{name: "bulk empty", method: http.MethodPost, path: "/api/v1/grading/bulk", token: teacherToken, body: validator.BulkGradeRequest{}, status: http.StatusBadRequest},
		{name: "malformed json", method: http.MethodPatch, path: fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID), token: teacherToken, body: "not an object", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := srv.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestQuizHandler_UpdateFrozenAfterAttempt(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.publishedQuiz(t)

	w := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/quizzes/%d/attempts", quiz.ID), studentToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	title := "Renamed"
	w = srv.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID), teacherToken,
		validator.UpdateQuizRequest{Title: &title})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	details := decode[ErrorResponse](t, w).Details.(map[string]interface{})
	assert.Equal(t, []interface{}{"title"}, details["fields"])

	w = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/quizzes/%d/cancel", quiz.ID), teacherToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestQuizHandler_ExportQuizResults(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.publishedQuiz(t)

	w := srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/quizzes/%d/export", quiz.ID), teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("quiz_%d_results.xlsx", quiz.ID))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Statistics", "Results"}, f.GetSheetList())
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quiz_http_requests_total")
}
