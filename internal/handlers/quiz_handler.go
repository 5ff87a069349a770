package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

type QuizHandler struct {
	BaseHandler
	quizService      services.QuizService
	gradingService   services.GradingService
	analyticsService services.AnalyticsService
}

func NewQuizHandler(
	quizService services.QuizService,
	gradingService services.GradingService,
	analyticsService services.AnalyticsService,
	logger utils.Logger,
) *QuizHandler {
	return &QuizHandler{
		BaseHandler:      NewBaseHandler(logger),
		quizService:      quizService,
		gradingService:   gradingService,
		analyticsService: analyticsService,
	}
}

// CreateQuiz creates a draft quiz
// @Summary Create quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Param quiz body validator.CreateQuizRequest true "Quiz definition"
// @Success 201 {object} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /quizzes [post]
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	h.LogRequest(c, "Creating quiz")

	var req validator.CreateQuizRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz returns a quiz as the caller is allowed to see it
// @Summary Get quiz
// @Tags quizzes
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} services.QuizResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// UpdateQuiz applies a partial update
// @Summary Update quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Param quiz body validator.UpdateQuizRequest true "Fields to change"
// @Success 200 {object} services.QuizResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{id} [patch]
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating quiz", "quiz_id", id)

	var req validator.UpdateQuizRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), id, &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// PublishQuiz moves a draft to published
// @Router /quizzes/{id}/publish [post]
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Publishing quiz", "quiz_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Publish(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// CancelQuiz cancels a quiz that has no attempts
// @Router /quizzes/{id}/cancel [post]
func (h *QuizHandler) CancelQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Cancelling quiz", "quiz_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Cancel(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// ListQuizzes lists quizzes visible to the caller
// @Summary List quizzes
// @Tags quizzes
// @Produce json
// @Param class_id query string false "Class"
// @Param subject_id query string false "Subject"
// @Param status query string false "draft, published or cancelled"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.QuizListResponse
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	filters := repositories.QuizFilters{
		Limit:     h.parseIntQuery(c, "limit", 20),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("class_id"); v != "" {
		filters.ClassID = &v
	}
	if v := c.Query("subject_id"); v != "" {
		filters.SubjectID = &v
	}
	if v := c.Query("school_id"); v != "" {
		filters.SchoolID = &v
	}
	if v := c.Query("status"); v != "" {
		status := models.QuizStatus(v)
		filters.Status = &status
	}

	resp, err := h.quizService.List(c.Request.Context(), filters, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetQuizStatistics returns aggregate statistics over finished attempts
// @Router /quizzes/{id}/statistics [get]
func (h *QuizHandler) GetQuizStatistics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	stats, err := h.analyticsService.QuizStatistics(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportQuizResults streams the results workbook
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /quizzes/{id}/export [get]
func (h *QuizHandler) ExportQuizResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting quiz results", "quiz_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	file, err := h.analyticsService.ExportQuizResults(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// RegradeQuiz re-runs auto-grading over every finished attempt
// @Router /quizzes/{id}/regrade [post]
func (h *QuizHandler) RegradeQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Regrading quiz", "quiz_id", id)

	caller, ok := h.caller(c)
	if !ok {
		return
	}

	result, err := h.gradingService.RegradeQuiz(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
