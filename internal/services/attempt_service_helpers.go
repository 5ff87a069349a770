package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// ===== LOOKUPS =====

func findQuiz(ctx context.Context, repo repositories.Repository, tx *gorm.DB, id uint) (*models.Quiz, error) {
	quiz, err := repo.Quiz().GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, &NotFoundError{Resource: "quiz", ID: id}
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

// findAttempt loads an attempt together with its quiz.
func findAttempt(ctx context.Context, repo repositories.Repository, id uint) (*models.QuizAttempt, *models.Quiz, error) {
	attempt, err := repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, &NotFoundError{Resource: "attempt", ID: id}
		}
		return nil, nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	quiz, err := findQuiz(ctx, repo, nil, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, quiz, nil
}

// ===== PAYLOAD =====

// validatePayload checks selected option ids against the snapshot question.
func validatePayload(q *models.Question, req *validator.RecordAnswerRequest) ValidationErrors {
	var errs ValidationErrors

	if len(req.SelectedOptions) > 0 {
		if !q.Type.IsObjective() {
			errs = append(errs, *NewValidationError("selected_options", "question does not take options", req.SelectedOptions))
			return errs
		}
		for _, id := range req.SelectedOptions {
			if !hasOption(q, id) {
				errs = append(errs, *NewValidationError("selected_options", "unknown option id", id))
			}
		}
		if q.Type != models.MultipleChoice && len(req.SelectedOptions) > 1 {
			errs = append(errs, *NewValidationError("selected_options", "only one option may be selected", len(req.SelectedOptions)))
		}
	}

	if req.BooleanAnswer != nil && q.Type != models.TrueFalse {
		errs = append(errs, *NewValidationError("boolean_answer", "only true_false questions take a boolean answer", *req.BooleanAnswer))
	}
	if req.TextAnswer != nil && q.Type.IsObjective() {
		errs = append(errs, *NewValidationError("text_answer", "choice questions do not take free text", nil))
	}
	return errs
}

// applyPayload overwrites the payload fields for the question type. An empty
// request clears the answer.
func applyPayload(a *models.Answer, q *models.Question, req *validator.RecordAnswerRequest) {
	a.SelectedOptions = nil
	a.BooleanAnswer = nil
	a.TextAnswer = nil

	switch q.Type {
	case models.SingleChoice, models.MultipleChoice:
		a.SelectedOptions = dedupe(req.SelectedOptions)
	case models.TrueFalse:
		a.SelectedOptions = dedupe(req.SelectedOptions)
		a.BooleanAnswer = req.BooleanAnswer
	default:
		a.TextAnswer = sanitizeRichPtr(req.TextAnswer)
	}
}

func hasOption(q *models.Question, id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ===== VIEWS =====

// resultsVisible applies the quiz's showResults policy to a finalized attempt.
func resultsVisible(quiz *models.Quiz, attempt *models.QuizAttempt, now time.Time) bool {
	if !attempt.Status.IsFinalized() {
		return false
	}
	switch quiz.Settings.ShowResults {
	case models.ShowResultsImmediately:
		return true
	case models.ShowResultsAfterEndDate:
		return now.After(quiz.EndDate)
	default:
		return false
	}
}

// studentAttemptView strips correctness, explanations, marks and results
// unless the quiz policy allows the student to see them.
func studentAttemptView(attempt *models.QuizAttempt, quiz *models.Quiz, now time.Time) *AttemptView {
	visible := resultsVisible(quiz, attempt, now)
	reveal := visible && quiz.Settings.ShowCorrectAnswers

	view := baseAttemptView(attempt, quiz, now, reveal)
	if visible {
		analytics := attempt.Analytics.Data()
		view.Results = attempt.Results
		view.Analytics = &analytics
		return view
	}

	for i := range view.Answers {
		a := &view.Answers[i]
		a.Marks = 0
		a.IsCorrect = nil
		a.AutoGraded = false
		a.GradedBy = nil
		a.GradedAt = nil
		a.Feedback = nil
	}
	return view
}

func teacherAttemptView(attempt *models.QuizAttempt, quiz *models.Quiz, now time.Time) *AttemptView {
	view := baseAttemptView(attempt, quiz, now, true)
	analytics := attempt.Analytics.Data()
	view.Results = attempt.Results
	view.Analytics = &analytics
	return view
}

func baseAttemptView(attempt *models.QuizAttempt, quiz *models.Quiz, now time.Time, reveal bool) *AttemptView {
	view := &AttemptView{
		ID:            attempt.ID,
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   attempt.SubmittedAt,
		TimeSpent:     attempt.TimeSpent,
		Questions:     make([]QuestionView, len(attempt.Questions)),
		Answers:       slices.Clone([]models.Answer(attempt.Answers)),
	}
	for i := range attempt.Questions {
		view.Questions[i] = questionView(&attempt.Questions[i], reveal)
	}
	if attempt.Status == models.AttemptInProgress {
		remaining := int(scoring.ClockFor(attempt, quiz).Remaining(now) / time.Second)
		view.TimeRemaining = &remaining
	}
	return view
}
