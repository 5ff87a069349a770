package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// GradeAnswer sets the marks of one answer, overriding auto-grading
// @Summary Grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param questionId path string true "Question ID"
// @Param grade body validator.GradeAnswerRequest true "Marks and feedback"
// @Success 200 {object} services.AttemptView
// @Router /attempts/{id}/answers/{questionId}/grade [put]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := c.Param("questionId")

	h.LogRequest(c, "Grading answer", "attempt_id", id, "question_id", questionID)

	var req validator.GradeAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	attempt, err := h.gradingService.GradeAnswer(c.Request.Context(), id, questionID, &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// BulkGrade grades many answers; failed items are reported, not fatal
// @Success 200 {object} services.BulkGradeResult
// @Success 207 {object} services.BulkGradeResult "some items failed"
// @Router /grading/bulk [post]
func (h *GradingHandler) BulkGrade(c *gin.Context) {
	h.LogRequest(c, "Bulk grading answers")

	var req validator.BulkGradeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	result, err := h.gradingService.BulkGrade(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}
