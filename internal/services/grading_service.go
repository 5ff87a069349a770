package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewGradingService(deps Dependencies) GradingService {
	return &gradingService{
		repo:      deps.Repo,
		db:        deps.DB,
		cache:     deps.Cache,
		publisher: deps.Events,
		logger:    deps.Logger,
		validator: deps.Validator,
		now:       deps.clock(),
	}
}

// ===== MANUAL GRADING =====

// GradeAnswer sets marks on one answer of a finalized attempt. Marks must lie
// in [-negativeMarks, maxMarks]. Results and analytics are recomputed.
func (s *gradingService) GradeAnswer(ctx context.Context, attemptID uint, questionID string, req *validator.GradeAnswerRequest, grader Caller) (*AttemptView, error) {
	s.logger.Info("Grading answer",
		"attempt_id", attemptID,
		"question_id", questionID,
		"grader_id", grader.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	for try := 0; try < guardedRetries; try++ {
		attempt, quiz, err := findAttempt(ctx, s.repo, attemptID)
		if err != nil {
			return nil, err
		}
		if err := authorizeQuizOwner(quiz, grader, "grade"); err != nil {
			return nil, err
		}
		if !attempt.Status.IsFinalized() {
			return nil, &BusinessRuleError{
				Rule:    "grade_unfinished_attempt",
				Message: "only submitted attempts can be graded",
				Context: map[string]interface{}{"status": attempt.Status},
			}
		}

		idx := attempt.AnswerIndex(questionID)
		question := attempt.QuestionByID(questionID)
		if idx < 0 || question == nil {
			return nil, &NotFoundError{Resource: "question", ID: questionID}
		}

		answer := &attempt.Answers[idx]
		if req.Marks < -question.NegativeMarks || req.Marks > answer.MaxMarks {
			return nil, ValidationErrors{*NewValidationError("marks",
				fmt.Sprintf("must be between %g and %g", -question.NegativeMarks, answer.MaxMarks), req.Marks)}
		}

		now := s.now()
		correct := req.Marks > 0
		answer.Marks = req.Marks
		answer.IsCorrect = &correct
		answer.AutoGraded = false
		answer.GradedBy = &grader.UserID
		answer.GradedAt = &now
		answer.Feedback = sanitizeRichPtr(req.Feedback)
		scoring.Recompute(attempt, quiz.Grading.PassingMarks)

		if err := s.repo.Attempt().UpdateGuarded(ctx, nil, attempt, false); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return nil, fmt.Errorf("failed to save grade: %w", err)
		}

		cache.InvalidateQuizStats(ctx, s.cache, quiz.ID)
		publishEvent(ctx, s.publisher, s.logger, events.Event{
			Type:      events.AnswerGraded,
			QuizID:    quiz.ID,
			AttemptID: attempt.ID,
			StudentID: attempt.StudentID,
			ActorID:   grader.UserID,
			Data: map[string]any{
				"question_id":    questionID,
				"marks":          req.Marks,
				"obtained_marks": attempt.Results.ObtainedMarks,
			},
		}, now)

		return teacherAttemptView(attempt, quiz, now), nil
	}

	return nil, &ConflictError{Resource: "attempt", ID: attemptID}
}

// BulkGrade grades every item independently; one failure never aborts the batch.
func (s *gradingService) BulkGrade(ctx context.Context, req *validator.BulkGradeRequest, grader Caller) (*BulkGradeResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	result := &BulkGradeResult{
		Succeeded: make([]validator.BulkGradeItem, 0, len(req.Items)),
		Failed:    make([]BulkGradeFailure, 0),
	}
	for _, item := range req.Items {
		_, err := s.GradeAnswer(ctx, item.AttemptID, item.QuestionID, &validator.GradeAnswerRequest{
			Marks:    item.Marks,
			Feedback: item.Feedback,
		}, grader)
		if err != nil {
			s.logger.Warn("Bulk grading item failed",
				"attempt_id", item.AttemptID,
				"question_id", item.QuestionID,
				"error", err)
			result.Failed = append(result.Failed, BulkGradeFailure{Item: item, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, item)
	}

	s.logger.Info("Bulk grading finished",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed))
	return result, nil
}

// RegradeQuiz re-runs the auto-grader over every finalized attempt of the
// quiz. Manually graded answers are kept.
func (s *gradingService) RegradeQuiz(ctx context.Context, quizID uint, caller Caller) (*RegradeResult, error) {
	s.logger.Info("Regrading quiz", "quiz_id", quizID, "user_id", caller.UserID)

	quiz, err := findQuiz(ctx, s.repo, nil, quizID)
	if err != nil {
		return nil, err
	}
	if err := authorizeQuizOwner(quiz, caller, "regrade"); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListClosedByQuiz(ctx, nil, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	result := &RegradeResult{QuizID: quiz.ID, Regraded: make([]uint, 0, len(attempts)), Failed: make([]RegradeFailure, 0)}
	for i := range attempts {
		attempt := &attempts[i]
		if !attempt.Status.IsFinalized() {
			continue
		}
		if err := s.regradeAttempt(ctx, attempt, quiz); err != nil {
			result.Failed = append(result.Failed, RegradeFailure{AttemptID: attempt.ID, Error: err.Error()})
			continue
		}
		result.Regraded = append(result.Regraded, attempt.ID)
	}

	cache.InvalidateQuizStats(ctx, s.cache, quiz.ID)
	return result, nil
}

func (s *gradingService) regradeAttempt(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz) error {
	for try := 0; try < guardedRetries; try++ {
		if try > 0 {
			fresh, err := s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
			if err != nil {
				return fmt.Errorf("failed to reload attempt: %w", err)
			}
			attempt = fresh
		}

		scoring.GradeAttempt(attempt)
		scoring.Recompute(attempt, quiz.Grading.PassingMarks)
		err := s.repo.Attempt().UpdateGuarded(ctx, nil, attempt, false)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrConflict) {
			return fmt.Errorf("failed to save regrade: %w", err)
		}
	}
	return &ConflictError{Resource: "attempt", ID: attempt.ID}
}
