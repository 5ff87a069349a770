package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

var (
	richTextPolicy  = bluemonday.UGCPolicy()
	plainTextPolicy = bluemonday.StrictPolicy()
)

// ===== STRUCTURE =====

// ValidateQuestions checks the shape of every choice question. Choice types
// need at least two options and at least one correct option; single_choice
// and true_false need exactly one, and true_false labels must read as a
// boolean.
func ValidateQuestions(questions []models.Question) error {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		if !q.Type.IsValid() {
			return &StructureError{Index: i, Message: fmt.Sprintf("unsupported question type %q", q.Type)}
		}
		if seen[q.ID] {
			return &StructureError{Index: i, Message: fmt.Sprintf("duplicate question id %q", q.ID)}
		}
		seen[q.ID] = true

		if q.Type.IsObjective() {
			if len(q.Options) < 2 {
				return &StructureError{Index: i, Message: "choice questions need at least 2 options"}
			}
			correct := len(q.CorrectOptionIDs())
			if correct == 0 {
				return &StructureError{Index: i, Message: "at least one option must be correct"}
			}
			if q.Type == models.SingleChoice && correct != 1 {
				return &StructureError{Index: i, Message: "single_choice needs exactly one correct option"}
			}
			if q.Type == models.TrueFalse {
				if correct != 1 {
					return &StructureError{Index: i, Message: "true_false needs exactly one correct option"}
				}
				for _, o := range q.Options {
					if !scoring.IsBooleanLabel(o.Text) {
						return &StructureError{Index: i, Message: fmt.Sprintf("true_false option %q is not a true/false label", o.Text)}
					}
				}
			}
			optionIDs := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				if optionIDs[o.ID] {
					return &StructureError{Index: i, Message: fmt.Sprintf("duplicate option id %q", o.ID)}
				}
				optionIDs[o.ID] = true
			}
		}
	}
	return nil
}

// NormalizeQuestions clamps marks, negative marks and time limits in place.
func NormalizeQuestions(questions []models.Question) {
	for i := range questions {
		q := &questions[i]
		q.Marks = clamp(q.Marks, models.MinQuestionMarks, models.MaxQuestionMarks)
		q.NegativeMarks = math.Max(q.NegativeMarks, 0)
		if q.TimeLimit != nil {
			limit := int(clamp(float64(*q.TimeLimit), models.MinQuestionTimeLimit, models.MaxQuestionTimeLimit))
			q.TimeLimit = &limit
		}
		if !q.Difficulty.IsValid() {
			q.Difficulty = models.DifficultyMedium
		}
		if !q.Type.IsObjective() {
			q.Options = nil
		}
	}
}

// ComputeDerived sets totalMarks and, when unset, passingMarks = ceil(total/2).
// It is called explicitly after every structural change.
func ComputeDerived(quiz *models.Quiz) {
	total := 0.0
	for _, q := range quiz.Questions {
		total += q.Marks
	}
	quiz.Grading.TotalMarks = total
	if quiz.Grading.PassingMarks <= 0 {
		quiz.Grading.PassingMarks = math.Ceil(0.5 * total)
	}
}

func validateGrading(quiz *models.Quiz) ValidationErrors {
	if quiz.Grading.PassingMarks > quiz.Grading.TotalMarks && len(quiz.Questions) > 0 {
		return ValidationErrors{*NewValidationError("passing_marks", "cannot exceed total marks", quiz.Grading.PassingMarks)}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func buildQuestions(reqs []validator.QuestionRequest) []models.Question {
	questions := make([]models.Question, len(reqs))
	for i, r := range reqs {
		q := models.Question{
			ID:            r.ID,
			Type:          r.Type,
			Text:          sanitizeRich(r.Text),
			Marks:         r.Marks,
			NegativeMarks: r.NegativeMarks,
			Difficulty:    r.Difficulty,
			TimeLimit:     r.TimeLimit,
			Explanation:   sanitizeRichPtr(r.Explanation),
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		for _, o := range r.Options {
			option := models.Option{
				ID:          o.ID,
				Text:        sanitizeRich(o.Text),
				IsCorrect:   o.IsCorrect,
				Explanation: sanitizeRichPtr(o.Explanation),
			}
			if option.ID == "" {
				option.ID = uuid.NewString()
			}
			q.Options = append(q.Options, option)
		}
		questions[i] = q
	}
	return questions
}

// buildSettings maps the request onto settings, hashing a new password or
// keeping the existing hash when none is supplied.
func buildSettings(req validator.SettingsRequest, existing models.QuizSettings) (models.QuizSettings, error) {
	settings := models.QuizSettings{
		MaxAttempts:         req.MaxAttempts,
		ShuffleQuestions:    req.ShuffleQuestions,
		ShuffleOptions:      req.ShuffleOptions,
		ShowResults:         req.ShowResults,
		ShowCorrectAnswers:  req.ShowCorrectAnswers,
		RequirePassword:     req.RequirePassword,
		PreventTabSwitching: req.PreventTabSwitching,
		RequireWebcam:       req.RequireWebcam,
		RequireFullScreen:   req.RequireFullScreen,
	}
	if settings.MaxAttempts == 0 {
		settings.MaxAttempts = models.MinMaxAttempts
	}
	if settings.ShowResults == "" {
		settings.ShowResults = models.ShowResultsImmediately
	}

	if !settings.RequirePassword {
		return settings, nil
	}
	if req.Password == "" {
		if existing.PasswordHash == "" {
			return settings, ValidationErrors{*NewValidationError("settings.password", "is required when require_password is set", nil)}
		}
		settings.PasswordHash = existing.PasswordHash
		return settings, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return settings, fmt.Errorf("failed to hash quiz password: %w", err)
	}
	settings.PasswordHash = string(hash)
	return settings, nil
}

func checkPassword(settings models.QuizSettings, password string) bool {
	if !settings.RequirePassword {
		return true
	}
	if settings.PasswordHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(settings.PasswordHash), []byte(password)) == nil
}

// applyPatch writes the non-nil patch fields onto quiz and recomputes the
// derived grading fields.
func applyPatch(quiz *models.Quiz, req *validator.UpdateQuizRequest) error {
	if req.Title != nil {
		quiz.Title = sanitizePlain(*req.Title)
	}
	if req.Description != nil {
		quiz.Description = sanitizeRichPtr(req.Description)
	}
	if req.Instructions != nil {
		quiz.Instructions = sanitizeRichPtr(req.Instructions)
	}
	if req.SubjectID != nil {
		quiz.SubjectID = *req.SubjectID
	}
	if req.StartDate != nil {
		quiz.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		quiz.EndDate = req.EndDate.UTC()
	}
	if req.Duration != nil {
		quiz.Duration = *req.Duration
	}
	if req.Settings != nil {
		settings, err := buildSettings(*req.Settings, quiz.Settings)
		if err != nil {
			return err
		}
		quiz.Settings = settings
	}
	if req.Questions != nil {
		questions := buildQuestions(*req.Questions)
		if err := ValidateQuestions(questions); err != nil {
			return err
		}
		if len(questions) == 0 && quiz.Status == models.QuizStatusPublished {
			return &BusinessRuleError{Rule: "published_without_questions", Message: "a published quiz needs at least one question"}
		}
		NormalizeQuestions(questions)
		quiz.Questions = questions
		if req.PassingMarks == nil {
			quiz.Grading.PassingMarks = 0
		}
	}
	if req.PassingMarks != nil {
		quiz.Grading.PassingMarks = *req.PassingMarks
	}

	ComputeDerived(quiz)
	return nil
}

func sanitizePlain(s string) string {
	return plainTextPolicy.Sanitize(s)
}

func sanitizeRich(s string) string {
	return richTextPolicy.Sanitize(s)
}

func sanitizeRichPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := richTextPolicy.Sanitize(*s)
	return &clean
}

// ===== AUTHORIZATION =====

func authorizeQuizOwner(quiz *models.Quiz, caller Caller, action string) error {
	if caller.IsAdmin() || (caller.Role == models.RoleTeacher && quiz.CreatedBy == caller.UserID) {
		return nil
	}
	return &AuthzError{Resource: "quiz", Action: action, Reason: "caller did not create this quiz"}
}

func checkEnrollment(ctx context.Context, enrollment repositories.EnrollmentRepository, classID, studentID string) error {
	enrolled, err := enrollment.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return &AuthzError{Resource: "quiz", Action: "access", Reason: "student is not enrolled in the class"}
	}
	return nil
}

// ===== EVENTS =====

// publishEvent logs and drops publishing failures.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, event events.Event, now time.Time) {
	if publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			"error", err,
			"event_type", event.Type,
			"quiz_id", event.QuizID,
			"attempt_id", event.AttemptID)
	}
}

// ===== VIEWS =====

func quizResponse(quiz *models.Quiz, now time.Time) *QuizResponse {
	return &QuizResponse{
		ID:           quiz.ID,
		SchoolID:     quiz.SchoolID,
		ClassID:      quiz.ClassID,
		SubjectID:    quiz.SubjectID,
		CreatedBy:    quiz.CreatedBy,
		Title:        quiz.Title,
		Description:  quiz.Description,
		Instructions: quiz.Instructions,
		StartDate:    quiz.StartDate,
		EndDate:      quiz.EndDate,
		Duration:     quiz.Duration,
		Settings: QuizSettingsView{
			MaxAttempts:         quiz.Settings.MaxAttempts,
			ShuffleQuestions:    quiz.Settings.ShuffleQuestions,
			ShuffleOptions:      quiz.Settings.ShuffleOptions,
			ShowResults:         quiz.Settings.ShowResults,
			ShowCorrectAnswers:  quiz.Settings.ShowCorrectAnswers,
			RequirePassword:     quiz.Settings.RequirePassword,
			PreventTabSwitching: quiz.Settings.PreventTabSwitching,
			RequireWebcam:       quiz.Settings.RequireWebcam,
			RequireFullScreen:   quiz.Settings.RequireFullScreen,
		},
		Grading:       quiz.Grading,
		Status:        quiz.Status,
		Presentation:  quiz.PresentationStatusAt(now),
		PublishedAt:   quiz.PublishedAt,
		QuestionCount: len(quiz.Questions),
		CreatedAt:     quiz.CreatedAt,
		UpdatedAt:     quiz.UpdatedAt,
	}
}

// questionView renders q; reveal controls correctness flags and explanations.
func questionView(q *models.Question, reveal bool) QuestionView {
	view := QuestionView{
		ID:            q.ID,
		Type:          q.Type,
		Text:          q.Text,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
		Difficulty:    q.Difficulty,
		TimeLimit:     q.TimeLimit,
	}
	if reveal {
		view.Explanation = q.Explanation
	}
	if len(q.Options) > 0 {
		view.Options = make([]OptionView, len(q.Options))
		for i, o := range q.Options {
			view.Options[i] = OptionView{ID: o.ID, Text: o.Text}
			if reveal {
				correct := o.IsCorrect
				view.Options[i].IsCorrect = &correct
				view.Options[i].Explanation = o.Explanation
			}
		}
	}
	return view
}
