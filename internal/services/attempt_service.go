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
	"github.com/cropsgg/ionia-stage2-sub000/internal/metrics"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/randomization"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// guardedRetries is how many times a read-modify-write is attempted when
// the optimistic guard loses.
const guardedRetries = 2

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewAttemptService(deps Dependencies) AttemptService {
	return &attemptService{
		repo:      deps.Repo,
		db:        deps.DB,
		cache:     deps.Cache,
		publisher: deps.Events,
		logger:    deps.Logger,
		validator: deps.Validator,
		now:       deps.clock(),
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, quizID uint, req *validator.StartAttemptRequest, studentID string) (*StartAttemptResponse, error) {
	s.logger.Info("Starting quiz attempt", "quiz_id", quizID, "student_id", studentID)

	quiz, err := findQuiz(ctx, s.repo, nil, quizID)
	if err != nil {
		return nil, err
	}

	if err := checkEnrollment(ctx, s.repo.Enrollment(), quiz.ClassID, studentID); err != nil {
		return nil, err
	}

	now := s.now()
	if !quiz.IsActiveAt(now) {
		return nil, &InactiveQuizError{QuizID: quiz.ID, Status: quiz.PresentationStatusAt(now)}
	}

	password := ""
	if req != nil {
		password = req.Password
	}
	if !checkPassword(quiz.Settings, password) {
		return nil, &PasswordError{QuizID: quiz.ID}
	}

	var resumed *StartAttemptResponse
	for try := 0; try < guardedRetries; try++ {
		resumed, err = s.resumeOrExpire(ctx, quiz, studentID, now)
		if !errors.Is(err, repositories.ErrConflict) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, &ConflictError{Resource: "attempt", ID: quiz.ID}
		}
		return nil, err
	}
	if resumed != nil {
		return resumed, nil
	}

	counts, err := s.repo.Attempt().CountForStudent(ctx, nil, quiz.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	// abandoned attempts hold their slot
	if counts.Total >= int64(quiz.Settings.MaxAttempts) {
		return nil, &AttemptLimitError{QuizID: quiz.ID, MaxAttempts: quiz.Settings.MaxAttempts, Used: counts.Total}
	}

	attempt := newAttempt(quiz, studentID, counts.MaxNumber+1, now)
	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// a concurrent start won the attempt number; resume theirs
			if resumed, rerr := s.resumeOrExpire(ctx, quiz, studentID, now); rerr == nil && resumed != nil {
				return resumed, nil
			}
			return nil, &ConflictError{Resource: "attempt", ID: attempt.AttemptNumber}
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	metrics.AttemptStarted(false)
	s.publish(ctx, events.Event{
		Type:      events.AttemptStarted,
		QuizID:    quiz.ID,
		AttemptID: attempt.ID,
		StudentID: studentID,
		Data:      map[string]any{"attempt_number": attempt.AttemptNumber},
	})

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"student_id", studentID,
		"attempt_number", attempt.AttemptNumber)

	return s.startResponse(attempt, quiz, now, false), nil
}

func (s *attemptService) RecordAnswer(ctx context.Context, attemptID uint, questionID string, req *validator.RecordAnswerRequest, studentID string) (*AnswerAck, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	for try := 0; try < guardedRetries; try++ {
		attempt, quiz, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
		if err != nil {
			return nil, err
		}
		if attempt.Status != models.AttemptInProgress {
			return nil, &AlreadySubmittedError{AttemptID: attempt.ID, Status: attempt.Status}
		}

		now := s.now()
		clock := scoring.ClockFor(attempt, quiz)
		if !clock.IsValid(now) {
			if err := s.finalize(ctx, attempt, quiz, models.AttemptAutoSubmitted, now); err != nil {
				if errors.Is(err, repositories.ErrConflict) {
					continue
				}
				return nil, err
			}
			return nil, &ExpiredAttemptError{AttemptID: attempt.ID, Deadline: clock.Deadline}
		}

		idx := attempt.AnswerIndex(questionID)
		question := attempt.QuestionByID(questionID)
		if idx < 0 || question == nil {
			return nil, &NotFoundError{Resource: "question", ID: questionID}
		}
		if errs := validatePayload(question, req); len(errs) > 0 {
			return nil, errs
		}

		answer := &attempt.Answers[idx]
		applyPayload(answer, question, req)
		answer.TimeSpent += req.TimeSpentDelta
		answer.Attempts++
		answer.AnsweredAt = &now
		scoring.Recompute(attempt, quiz.Grading.PassingMarks)

		if err := s.repo.Attempt().UpdateGuarded(ctx, nil, attempt, true); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				metrics.GuardConflict("record_answer")
				s.logger.Debug("Answer write lost the guard, retrying", "attempt_id", attempt.ID, "question_id", questionID)
				continue
			}
			return nil, fmt.Errorf("failed to record answer: %w", err)
		}

		metrics.AnswerRecorded()
		return &AnswerAck{
			AttemptID:     attempt.ID,
			QuestionID:    questionID,
			TimeSpent:     answer.TimeSpent,
			Revisions:     answer.Attempts,
			AnsweredAt:    now,
			TimeRemaining: int(clock.Remaining(now) / time.Second),
		}, nil
	}

	return nil, &ConflictError{Resource: "attempt", ID: attemptID}
}

func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResponse, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "student_id", studentID)

	for try := 0; try < guardedRetries; try++ {
		attempt, quiz, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
		if err != nil {
			return nil, err
		}
		if attempt.Status != models.AttemptInProgress {
			return nil, &AlreadySubmittedError{AttemptID: attempt.ID, Status: attempt.Status}
		}

		now := s.now()
		status := models.AttemptSubmitted
		if !scoring.ClockFor(attempt, quiz).IsValid(now) {
			status = models.AttemptAutoSubmitted
		}

		if err := s.finalize(ctx, attempt, quiz, status, now); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return nil, err
		}

		view := s.studentAttemptView(attempt, quiz, now)
		return &SubmitResponse{
			Attempt:       view,
			AutoSubmitted: status == models.AttemptAutoSubmitted,
			Results:       view.Results,
		}, nil
	}

	return nil, &ConflictError{Resource: "attempt", ID: attemptID}
}

// Abandon closes an in_progress attempt without results. The abandoned
// attempt still counts toward the attempt cap.
func (s *attemptService) Abandon(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error) {
	s.logger.Info("Abandoning attempt", "attempt_id", attemptID, "student_id", studentID)

	for try := 0; try < guardedRetries; try++ {
		attempt, quiz, err := s.loadOwnedAttempt(ctx, attemptID, studentID)
		if err != nil {
			return nil, err
		}
		if attempt.Status != models.AttemptInProgress {
			return nil, &AlreadySubmittedError{AttemptID: attempt.ID, Status: attempt.Status}
		}

		now := s.now()
		clock := scoring.ClockFor(attempt, quiz)
		if !clock.IsValid(now) {
			if err := s.finalize(ctx, attempt, quiz, models.AttemptAutoSubmitted, now); err != nil {
				if errors.Is(err, repositories.ErrConflict) {
					continue
				}
				return nil, err
			}
			return nil, &ExpiredAttemptError{AttemptID: attempt.ID, Deadline: clock.Deadline}
		}

		attempt.Status = models.AttemptAbandoned
		attempt.SubmittedAt = &now
		attempt.TimeSpent = scoring.ElapsedSeconds(attempt.StartedAt, now)
		scoring.Recompute(attempt, quiz.Grading.PassingMarks)

		if err := s.repo.Attempt().UpdateGuarded(ctx, nil, attempt, true); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				metrics.GuardConflict("abandon")
				continue
			}
			return nil, fmt.Errorf("failed to abandon attempt: %w", err)
		}

		metrics.AttemptFinalized(string(models.AttemptAbandoned))
		cache.InvalidateQuizStats(ctx, s.cache, quiz.ID)
		return s.studentAttemptView(attempt, quiz, now), nil
	}

	return nil, &ConflictError{Resource: "attempt", ID: attemptID}
}

// Get returns the attempt as the caller may see it. Reading an expired
// in_progress attempt auto-submits it first.
func (s *attemptService) Get(ctx context.Context, attemptID uint, caller Caller) (*AttemptView, error) {
	for try := 0; try < guardedRetries; try++ {
		attempt, quiz, err := findAttempt(ctx, s.repo, attemptID)
		if err != nil {
			return nil, err
		}

		if caller.IsStaff() {
			if err := authorizeQuizOwner(quiz, caller, "view attempts of"); err != nil {
				return nil, err
			}
		} else if attempt.StudentID != caller.UserID {
			return nil, &AuthzError{Resource: "attempt", Action: "view", Reason: "attempt belongs to another student"}
		}

		now := s.now()
		if attempt.Status == models.AttemptInProgress && !scoring.ClockFor(attempt, quiz).IsValid(now) {
			if err := s.finalize(ctx, attempt, quiz, models.AttemptAutoSubmitted, now); err != nil {
				if errors.Is(err, repositories.ErrConflict) {
					continue
				}
				return nil, err
			}
		}

		if caller.IsStaff() {
			return teacherAttemptView(attempt, quiz, now), nil
		}
		return s.studentAttemptView(attempt, quiz, now), nil
	}

	return nil, &ConflictError{Resource: "attempt", ID: attemptID}
}

// ListByQuiz lists attempts for the quiz owner, or the caller's own attempts
// for students. Expired in_progress attempts are auto-submitted first.
func (s *attemptService) ListByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, caller Caller) (*AttemptListResponse, error) {
	quiz, err := findQuiz(ctx, s.repo, nil, quizID)
	if err != nil {
		return nil, err
	}

	if caller.IsStaff() {
		if err := authorizeQuizOwner(quiz, caller, "list attempts of"); err != nil {
			return nil, err
		}
	} else {
		filters.StudentID = &caller.UserID
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}

	now := s.now()
	if err := s.expireOverdue(ctx, quiz, filters.StudentID, now); err != nil {
		return nil, err
	}

	attempts, total, err := s.repo.Attempt().List(ctx, nil, quiz.ID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	resp := &AttemptListResponse{
		Attempts: make([]*AttemptView, 0, len(attempts)),
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
	for _, attempt := range attempts {
		var view *AttemptView
		if caller.IsStaff() {
			view = teacherAttemptView(attempt, quiz, now)
		} else {
			view = s.studentAttemptView(attempt, quiz, now)
		}
		// listings stay light; fetch the attempt for the full question set
		view.Questions = nil
		view.Answers = nil
		resp.Attempts = append(resp.Attempts, view)
	}
	return resp, nil
}

// ===== TRANSITIONS =====

// resumeOrExpire returns a resume response for a still-valid in_progress
// attempt, auto-submits an expired one and returns nil, or returns nil when
// there is none. repositories.ErrConflict means the active attempt changed
// underneath; callers re-run it.
func (s *attemptService) resumeOrExpire(ctx context.Context, quiz *models.Quiz, studentID string, now time.Time) (*StartAttemptResponse, error) {
	active, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, quiz.ID, studentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}

	if scoring.ClockFor(active, quiz).IsValid(now) {
		metrics.AttemptStarted(true)
		s.logger.Info("Resuming attempt", "attempt_id", active.ID, "student_id", studentID)
		return s.startResponse(active, quiz, now, true), nil
	}

	if err := s.finalize(ctx, active, quiz, models.AttemptAutoSubmitted, now); err != nil {
		return nil, err
	}
	return nil, nil
}

// finalize moves attempt out of in_progress: grade, recompute, guarded write.
// repositories.ErrConflict is returned untouched when another writer won.
// expireOverdue auto-submits the quiz's in_progress attempts whose clock has
// run out, so listings and status filters never report them as open. A
// conflict means another request closed the attempt first.
func (s *attemptService) expireOverdue(ctx context.Context, quiz *models.Quiz, studentID *string, now time.Time) error {
	inProgress := models.AttemptInProgress
	open, _, err := s.repo.Attempt().List(ctx, nil, quiz.ID, repositories.AttemptFilters{Status: &inProgress, StudentID: studentID})
	if err != nil {
		return fmt.Errorf("failed to list open attempts: %w", err)
	}

	for _, attempt := range open {
		if scoring.ClockFor(attempt, quiz).IsValid(now) {
			continue
		}
		if err := s.finalize(ctx, attempt, quiz, models.AttemptAutoSubmitted, now); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *attemptService) finalize(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, status models.AttemptStatus, now time.Time) error {
	attempt.Status = status
	attempt.SubmittedAt = &now
	attempt.TimeSpent = scoring.ElapsedSeconds(attempt.StartedAt, now)
	scoring.GradeAttempt(attempt)
	scoring.Recompute(attempt, quiz.Grading.PassingMarks)

	if err := s.repo.Attempt().UpdateGuarded(ctx, nil, attempt, true); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			metrics.GuardConflict(string(status))
			return err
		}
		return fmt.Errorf("failed to finalize attempt: %w", err)
	}

	metrics.AttemptFinalized(string(status))
	cache.InvalidateQuizStats(ctx, s.cache, quiz.ID)

	data := map[string]any{
		"auto_submitted": status == models.AttemptAutoSubmitted,
		"time_spent":     attempt.TimeSpent,
	}
	if attempt.Results != nil {
		data["obtained_marks"] = attempt.Results.ObtainedMarks
		data["percentage"] = attempt.Results.Percentage
	}
	s.publish(ctx, events.Event{
		Type:      events.AttemptSubmitted,
		QuizID:    quiz.ID,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Data:      data,
	})

	s.logger.Info("Attempt finalized",
		"attempt_id", attempt.ID,
		"status", status,
		"time_spent", attempt.TimeSpent)
	return nil
}

// ===== HELPERS =====

// loadOwnedAttempt hides other students' attempts behind NotFoundError.
func (s *attemptService) loadOwnedAttempt(ctx context.Context, id uint, studentID string) (*models.QuizAttempt, *models.Quiz, error) {
	attempt, quiz, err := findAttempt(ctx, s.repo, id)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, &NotFoundError{Resource: "attempt", ID: id}
	}
	return attempt, quiz, nil
}

func (s *attemptService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.publisher, s.logger, event, s.now())
}

func (s *attemptService) startResponse(attempt *models.QuizAttempt, quiz *models.Quiz, now time.Time, resumed bool) *StartAttemptResponse {
	view := s.studentAttemptView(attempt, quiz, now)
	remaining := 0
	if view.TimeRemaining != nil {
		remaining = *view.TimeRemaining
	}
	return &StartAttemptResponse{
		Attempt:       view,
		Questions:     view.Questions,
		TimeRemaining: remaining,
		Resumed:       resumed,
	}
}

func (s *attemptService) studentAttemptView(attempt *models.QuizAttempt, quiz *models.Quiz, now time.Time) *AttemptView {
	return studentAttemptView(attempt, quiz, now)
}

func newAttempt(quiz *models.Quiz, studentID string, number int, now time.Time) *models.QuizAttempt {
	snapshot := randomization.Snapshot(quiz.Questions, quiz.Settings, studentID)
	answers := make([]models.Answer, len(snapshot))
	for i, q := range snapshot {
		answers[i] = models.Answer{
			QuestionID:   q.ID,
			QuestionType: q.Type,
			Difficulty:   q.Difficulty,
			MaxMarks:     q.Marks,
		}
	}

	attempt := &models.QuizAttempt{
		QuizID:        quiz.ID,
		StudentID:     studentID,
		AttemptNumber: number,
		Status:        models.AttemptInProgress,
		StartedAt:     now,
		Questions:     snapshot,
		Answers:       answers,
		Version:       1,
	}
	scoring.Recompute(attempt, quiz.Grading.PassingMarks)
	return attempt
}
