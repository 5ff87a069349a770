package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts or resumes the caller's attempt on a quiz
// @Summary Start quiz attempt
// @Description Returns the in-progress attempt when one is still running
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Param attempt body validator.StartAttemptRequest false "Quiz password"
// @Success 201 {object} services.StartAttemptResponse
// @Success 200 {object} services.StartAttemptResponse "resumed"
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Starting quiz attempt", "quiz_id", quizID)

	// the body is optional; only quizzes with a password need one
	var req validator.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	resp, err := h.attemptService.Start(c.Request.Context(), quizID, &req, caller.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// GetAttempt returns one attempt
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// RecordAnswer saves the answer to one question
// @Summary Record answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param questionId path string true "Question ID"
// @Param answer body validator.RecordAnswerRequest true "Answer payload"
// @Success 200 {object} services.AnswerAck
// @Failure 410 {object} ErrorResponse "attempt expired and was auto-submitted"
// @Router /attempts/{id}/answers/{questionId} [put]
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := c.Param("questionId")

	var req validator.RecordAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	ack, err := h.attemptService.RecordAnswer(c.Request.Context(), id, questionID, &req, caller.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// SubmitAttempt finalizes an attempt
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting quiz attempt", "attempt_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	resp, err := h.attemptService.Submit(c.Request.Context(), id, caller.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AbandonAttempt gives up an in-progress attempt
// @Router /attempts/{id}/abandon [post]
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Abandoning quiz attempt", "attempt_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Abandon(c.Request.Context(), id, caller.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListQuizAttempts lists attempts on a quiz; students only see their own
// @Param status query string false "in_progress, submitted, auto_submitted or abandoned"
// @Param student_id query string false "Student (staff only)"
// @Router /quizzes/{id}/attempts [get]
func (h *AttemptHandler) ListQuizAttempts(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	filters := repositories.AttemptFilters{
		Limit:     h.parseIntQuery(c, "limit", 20),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("status"); v != "" {
		status := models.AttemptStatus(v)
		filters.Status = &status
	}
	if v := c.Query("student_id"); v != "" {
		filters.StudentID = &v
	}

	resp, err := h.attemptService.ListByQuiz(c.Request.Context(), quizID, filters, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
