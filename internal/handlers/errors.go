package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
)

// handleServiceError maps service errors to HTTP responses. Typed errors are
// resolved first so their fields reach the client.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var structureErr *services.StructureError
	if errors.As(err, &structureErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Invalid quiz structure",
			Details: map[string]interface{}{
				"question_index": structureErr.Index,
				"reason":         structureErr.Message,
			},
		})
		return
	}

	var frozenErr *services.ImmutableStructureError
	if errors.As(err, &frozenErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Quiz structure is frozen once attempts exist",
			Details: map[string]interface{}{"fields": frozenErr.Fields},
		})
		return
	}

	var authzErr *services.AuthzError
	if errors.As(err, &authzErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": authzErr.Resource,
				"action":   authzErr.Action,
				"reason":   authzErr.Reason,
			},
		})
		return
	}

	var inactiveErr *services.InactiveQuizError
	if errors.As(err, &inactiveErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Quiz is not active",
			Details: map[string]interface{}{"presentation_status": inactiveErr.Status},
		})
		return
	}

	var limitErr *services.AttemptLimitError
	if errors.As(err, &limitErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Maximum attempts reached",
			Details: map[string]interface{}{
				"max_attempts": limitErr.MaxAttempts,
				"used":         limitErr.Used,
			},
		})
		return
	}

	var expiredErr *services.ExpiredAttemptError
	if errors.As(err, &expiredErr) {
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Time is up; the attempt was submitted automatically",
			Details: map[string]interface{}{
				"attempt_id": expiredErr.AttemptID,
				"deadline":   expiredErr.Deadline,
			},
		})
		return
	}

	var submittedErr *services.AlreadySubmittedError
	if errors.As(err, &submittedErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
			Details: map[string]interface{}{"status": submittedErr.Status},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrNotPublishable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "Quiz cannot be published", Details: err.Error()})
	case errors.Is(err, services.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Invalid quiz password"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Resource was modified concurrently, retry", Details: err.Error()})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized access"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
	case errors.Is(err, services.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "Service temporarily unavailable"})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
