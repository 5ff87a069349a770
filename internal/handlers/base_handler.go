package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps payloads that need a message next to the data.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logger and shared request helpers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.GetLogger(c, h.logger)
}

// LogRequest logs an incoming request
func (h *BaseHandler) LogRequest(c *gin.Context, message string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.Request.URL.Path)
	if userID := c.GetString("user_id"); userID != "" {
		args = append(args, "user_id", userID)
	}
	h.log(c).Info(message, args...)
}

// LogError logs an error with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, args ...any) {
	args = append(args, "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	h.log(c).Error(message, args...)
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// parseIDParam parses a positive uint path parameter. It writes a 400 and
// returns 0 when the value is not usable.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid "+name, raw)
		return 0
	}
	return uint(id)
}

// parseIntQuery reads an integer query parameter, falling back to def.
func (h *BaseHandler) parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// caller returns the authenticated caller, writing a 401 when the auth
// middleware did not run.
func (h *BaseHandler) caller(c *gin.Context) (services.Caller, bool) {
	userID := c.GetString("user_id")
	role, _ := c.Get("user_role")
	userRole, ok := role.(models.UserRole)
	if userID == "" || !ok {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return services.Caller{}, false
	}
	return services.Caller{UserID: userID, Role: userRole}, true
}

// bindJSON binds the body into req, writing a 400 on malformed input.
func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}
