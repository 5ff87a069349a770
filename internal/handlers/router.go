package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cropsgg/ionia-stage2-sub000/internal/metrics"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/services"
	"github.com/cropsgg/ionia-stage2-sub000/internal/utils"
)

const healthCheckTimeout = 3 * time.Second

type HandlerManager struct {
	serviceManager services.ServiceManager
	quizHandler    *QuizHandler
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	userHandler    *UserHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	tokenParser TokenParser,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		serviceManager: serviceManager,
		quizHandler: NewQuizHandler(
			serviceManager.Quiz(),
			serviceManager.Grading(),
			serviceManager.Analytics(),
			logger,
		),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), logger),
		userHandler:    NewUserHandler(userRepo, logger),
		authMiddleware: NewCasdoorAuthMiddleware(tokenParser, userRepo, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staffOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
	studentOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		quizzes := v1.Group("/quizzes")
		{
			// Authoring - Teachers and Admins only
			quizzes.POST("", staffOnly, hm.quizHandler.CreateQuiz)
			quizzes.PATCH("/:id", staffOnly, hm.quizHandler.UpdateQuiz)
			quizzes.POST("/:id/publish", staffOnly, hm.quizHandler.PublishQuiz)
			quizzes.POST("/:id/cancel", staffOnly, hm.quizHandler.CancelQuiz)
			quizzes.GET("/:id/statistics", staffOnly, hm.quizHandler.GetQuizStatistics)
			quizzes.GET("/:id/export", staffOnly, hm.quizHandler.ExportQuizResults)
			quizzes.POST("/:id/regrade", staffOnly, hm.quizHandler.RegradeQuiz)

			// Students get a redacted view
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)

			quizzes.POST("/:id/attempts", studentOnly, hm.attemptHandler.StartAttempt)
			quizzes.GET("/:id/attempts", hm.attemptHandler.ListQuizAttempts)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers/:questionId", studentOnly, hm.attemptHandler.RecordAnswer)
			attempts.POST("/:id/submit", studentOnly, hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/abandon", studentOnly, hm.attemptHandler.AbandonAttempt)

			attempts.PUT("/:id/answers/:questionId/grade", staffOnly, hm.gradingHandler.GradeAnswer)
		}

		grading := v1.Group("/grading")
		grading.Use(staffOnly)
		{
			grading.POST("/bulk", hm.gradingHandler.BulkGrade)
		}

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetCurrentUser)
			users.GET("/:id", staffOnly, hm.userHandler.GetUser)
		}
	}

	router.GET("/health", hm.health)
	router.GET("/metrics", metrics.Handler())
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "quiz-engine",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "quiz-engine",
	})
}
