package validator

import (
	"time"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// CreateQuizRequest is the authoring payload for a new quiz.
type CreateQuizRequest struct {
	SchoolID     string            `json:"school_id" validate:"required,max=255"`
	ClassID      string            `json:"class_id" validate:"required,max=255"`
	SubjectID    string            `json:"subject_id" validate:"required,max=255"`
	Title        string            `json:"title" validate:"required,min=1,max=200"`
	Description  *string           `json:"description" validate:"omitempty,max=5000"`
	Instructions *string           `json:"instructions" validate:"omitempty,max=5000"`
	StartDate    time.Time         `json:"start_date" validate:"required"`
	EndDate      time.Time         `json:"end_date" validate:"required"`
	Duration     int               `json:"duration" validate:"required,quiz_duration"`
	Settings     SettingsRequest   `json:"settings"`
	Questions    []QuestionRequest `json:"questions" validate:"omitempty,dive"`
	PassingMarks *float64          `json:"passing_marks" validate:"omitempty,min=0"`
}

// UpdateQuizRequest is a patch; nil fields are left untouched. Questions is
// a pointer so an explicit empty list is distinguishable from absence.
type UpdateQuizRequest struct {
	Title        *string            `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string            `json:"description" validate:"omitempty,max=5000"`
	Instructions *string            `json:"instructions" validate:"omitempty,max=5000"`
	SubjectID    *string            `json:"subject_id" validate:"omitempty,max=255"`
	StartDate    *time.Time         `json:"start_date"`
	EndDate      *time.Time         `json:"end_date"`
	Duration     *int               `json:"duration" validate:"omitempty,quiz_duration"`
	Settings     *SettingsRequest   `json:"settings"`
	Questions    *[]QuestionRequest `json:"questions" validate:"omitempty,dive"`
	PassingMarks *float64           `json:"passing_marks" validate:"omitempty,min=0"`
}

// StructuralFields lists the patch fields that are not in the post-attempt
// allow-list {description, instructions, end_date}.
func (r *UpdateQuizRequest) StructuralFields() []string {
	var fields []string
	if r.Title != nil {
		fields = append(fields, "title")
	}
	if r.SubjectID != nil {
		fields = append(fields, "subject_id")
	}
	if r.StartDate != nil {
		fields = append(fields, "start_date")
	}
	if r.Duration != nil {
		fields = append(fields, "duration")
	}
	if r.Settings != nil {
		fields = append(fields, "settings")
	}
	if r.Questions != nil {
		fields = append(fields, "questions")
	}
	if r.PassingMarks != nil {
		fields = append(fields, "passing_marks")
	}
	return fields
}

type SettingsRequest struct {
	MaxAttempts         int                      `json:"max_attempts" validate:"omitempty,max_attempts"`
	ShuffleQuestions    bool                     `json:"shuffle_questions"`
	ShuffleOptions      bool                     `json:"shuffle_options"`
	ShowResults         models.ShowResultsPolicy `json:"show_results" validate:"omitempty,show_results"`
	ShowCorrectAnswers  bool                     `json:"show_correct_answers"`
	RequirePassword     bool                     `json:"require_password"`
	Password            string                   `json:"password" validate:"omitempty,min=4,max=72"`
	PreventTabSwitching bool                     `json:"prevent_tab_switching"`
	RequireWebcam       bool                     `json:"require_webcam"`
	RequireFullScreen   bool                     `json:"require_full_screen"`
}

type QuestionRequest struct {
	ID            string                 `json:"id" validate:"omitempty,max=64"`
	Type          models.QuestionType    `json:"type" validate:"required,question_type"`
	Text          string                 `json:"text" validate:"required,min=1,max=5000"`
	Options       []OptionRequest        `json:"options" validate:"omitempty,dive"`
	Marks         float64                `json:"marks"`
	NegativeMarks float64                `json:"negative_marks"`
	Difficulty    models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	TimeLimit     *int                   `json:"time_limit"`
	Explanation   *string                `json:"explanation" validate:"omitempty,max=5000"`
}

type OptionRequest struct {
	ID          string  `json:"id" validate:"omitempty,max=64"`
	Text        string  `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect   bool    `json:"is_correct"`
	Explanation *string `json:"explanation" validate:"omitempty,max=2000"`
}

type StartAttemptRequest struct {
	Password string `json:"password" validate:"omitempty,max=72"`
}

// RecordAnswerRequest carries the payload matching the question type.
type RecordAnswerRequest struct {
	SelectedOptions []string `json:"selected_options" validate:"omitempty,max=20,dive,min=1"`
	BooleanAnswer   *bool    `json:"boolean_answer"`
	TextAnswer      *string  `json:"text_answer" validate:"omitempty,max=20000"`
	TimeSpentDelta  int      `json:"time_spent_delta" validate:"min=0,max=86400"`
}

type GradeAnswerRequest struct {
	Marks    float64 `json:"marks"`
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

type BulkGradeItem struct {
	AttemptID  uint    `json:"attempt_id" validate:"required"`
	QuestionID string  `json:"question_id" validate:"required"`
	Marks      float64 `json:"marks"`
	Feedback   *string `json:"feedback" validate:"omitempty,max=5000"`
}

type BulkGradeRequest struct {
	Items []BulkGradeItem `json:"items" validate:"required,min=1,max=500,dive"`
}
