package services

import (
	"context"
	"time"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	UserID string
	Role   models.UserRole
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// IsStaff reports whether the caller may author or grade.
func (c Caller) IsStaff() bool {
	return c.Role == models.RoleTeacher || c.Role == models.RoleAdmin
}

// ===== RESPONSE DTOs =====

type QuizResponse struct {
	ID            uint                      `json:"id"`
	SchoolID      string                    `json:"school_id"`
	ClassID       string                    `json:"class_id"`
	SubjectID     string                    `json:"subject_id"`
	CreatedBy     string                    `json:"created_by"`
	Title         string                    `json:"title"`
	Description   *string                   `json:"description,omitempty"`
	Instructions  *string                   `json:"instructions,omitempty"`
	StartDate     time.Time                 `json:"start_date"`
	EndDate       time.Time                 `json:"end_date"`
	Duration      int                       `json:"duration"`
	Settings      QuizSettingsView          `json:"settings"`
	Grading       models.QuizGrading        `json:"grading"`
	Status        models.QuizStatus         `json:"status"`
	Presentation  models.PresentationStatus `json:"presentation_status"`
	PublishedAt   *time.Time                `json:"published_at,omitempty"`
	QuestionCount int                       `json:"question_count"`
	Questions     []QuestionView            `json:"questions,omitempty"`
	HasAttempts   bool                      `json:"has_attempts"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// QuizSettingsView is QuizSettings without the password hash.
type QuizSettingsView struct {
	MaxAttempts         int                      `json:"max_attempts"`
	ShuffleQuestions    bool                     `json:"shuffle_questions"`
	ShuffleOptions      bool                     `json:"shuffle_options"`
	ShowResults         models.ShowResultsPolicy `json:"show_results"`
	ShowCorrectAnswers  bool                     `json:"show_correct_answers"`
	RequirePassword     bool                     `json:"require_password"`
	PreventTabSwitching bool                     `json:"prevent_tab_switching"`
	RequireWebcam       bool                     `json:"require_webcam"`
	RequireFullScreen   bool                     `json:"require_full_screen"`
}

type QuizListResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// QuestionView is a question as rendered to a caller. The correctness and
// explanation fields are only populated for views allowed to reveal them.
type QuestionView struct {
	ID            string                 `json:"id"`
	Type          models.QuestionType    `json:"type"`
	Text          string                 `json:"text"`
	Options       []OptionView           `json:"options,omitempty"`
	Marks         float64                `json:"marks"`
	NegativeMarks float64                `json:"negative_marks"`
	Difficulty    models.DifficultyLevel `json:"difficulty"`
	TimeLimit     *int                   `json:"time_limit,omitempty"`
	Explanation   *string                `json:"explanation,omitempty"`
}

type OptionView struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	IsCorrect   *bool   `json:"is_correct,omitempty"`
	Explanation *string `json:"explanation,omitempty"`
}

type AttemptView struct {
	ID            uint                     `json:"id"`
	QuizID        uint                     `json:"quiz_id"`
	StudentID     string                   `json:"student_id"`
	AttemptNumber int                      `json:"attempt_number"`
	Status        models.AttemptStatus     `json:"status"`
	StartedAt     time.Time                `json:"started_at"`
	SubmittedAt   *time.Time               `json:"submitted_at,omitempty"`
	TimeSpent     int                      `json:"time_spent"`
	TimeRemaining *int                     `json:"time_remaining,omitempty"`
	Questions     []QuestionView           `json:"questions"`
	Answers       []models.Answer          `json:"answers"`
	Results       *models.AttemptResults   `json:"results,omitempty"`
	Analytics     *models.AttemptAnalytics `json:"analytics,omitempty"`
}

type StartAttemptResponse struct {
	Attempt       *AttemptView   `json:"attempt"`
	Questions     []QuestionView `json:"questions"`
	TimeRemaining int            `json:"time_remaining"` // seconds
	Resumed       bool           `json:"resumed"`
}

type AnswerAck struct {
	AttemptID     uint      `json:"attempt_id"`
	QuestionID    string    `json:"question_id"`
	TimeSpent     int       `json:"time_spent"`
	Revisions     int       `json:"revisions"`
	AnsweredAt    time.Time `json:"answered_at"`
	TimeRemaining int       `json:"time_remaining"`
}

type SubmitResponse struct {
	Attempt       *AttemptView           `json:"attempt"`
	AutoSubmitted bool                   `json:"auto_submitted"`
	Results       *models.AttemptResults `json:"results,omitempty"`
}

type AttemptListResponse struct {
	Attempts []*AttemptView `json:"attempts"`
	Total    int64          `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

type BulkGradeFailure struct {
	Item  validator.BulkGradeItem `json:"item"`
	Error string                  `json:"error"`
}

type BulkGradeResult struct {
	Succeeded []validator.BulkGradeItem `json:"succeeded"`
	Failed    []BulkGradeFailure        `json:"failed"`
}

// RegradeResult reports re-grading over a quiz's finalized attempts.
type RegradeResult struct {
	QuizID   uint             `json:"quiz_id"`
	Regraded []uint           `json:"regraded"`
	Failed   []RegradeFailure `json:"failed"`
}

type RegradeFailure struct {
	AttemptID uint   `json:"attempt_id"`
	Error     string `json:"error"`
}

// ExportFile is a generated workbook ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

type QuizService interface {
	Create(ctx context.Context, req *validator.CreateQuizRequest, caller Caller) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, caller Caller) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *validator.UpdateQuizRequest, caller Caller) (*QuizResponse, error)
	Publish(ctx context.Context, id uint, caller Caller) (*QuizResponse, error)
	Cancel(ctx context.Context, id uint, caller Caller) (*QuizResponse, error)
	List(ctx context.Context, filters repositories.QuizFilters, caller Caller) (*QuizListResponse, error)
}

type AttemptService interface {
	Start(ctx context.Context, quizID uint, req *validator.StartAttemptRequest, studentID string) (*StartAttemptResponse, error)
	RecordAnswer(ctx context.Context, attemptID uint, questionID string, req *validator.RecordAnswerRequest, studentID string) (*AnswerAck, error)
	Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResponse, error)
	Abandon(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error)
	Get(ctx context.Context, attemptID uint, caller Caller) (*AttemptView, error)
	ListByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, caller Caller) (*AttemptListResponse, error)
}

type GradingService interface {
	GradeAnswer(ctx context.Context, attemptID uint, questionID string, req *validator.GradeAnswerRequest, grader Caller) (*AttemptView, error)
	BulkGrade(ctx context.Context, req *validator.BulkGradeRequest, grader Caller) (*BulkGradeResult, error)
	RegradeQuiz(ctx context.Context, quizID uint, caller Caller) (*RegradeResult, error)
}

type AnalyticsService interface {
	QuizStatistics(ctx context.Context, quizID uint, caller Caller) (*scoring.QuizStatistics, error)
	ExportQuizResults(ctx context.Context, quizID uint, caller Caller) (*ExportFile, error)
}

type ServiceManager interface {
	Quiz() QuizService
	Attempt() AttemptService
	Grading() GradingService
	Analytics() AnalyticsService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
