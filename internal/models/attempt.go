package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptAbandoned     AttemptStatus = "abandoned"
)

// IsFinalized reports whether the status carries results.
func (s AttemptStatus) IsFinalized() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

type QuizAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QuizID        uint          `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_quiz_student_attempt"`
	StudentID     string        `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_quiz_student_attempt"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_student_attempt"`
	Status        AttemptStatus `json:"status" gorm:"not null;default:in_progress;index;size:20"`

	// Timing
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Questions as presented at start, already randomized.
	Questions datatypes.JSONSlice[Question] `json:"questions"`
	Answers   datatypes.JSONSlice[Answer]   `json:"answers"`

	Results   *AttemptResults                      `json:"results,omitempty" gorm:"serializer:json"`
	Analytics datatypes.JSONType[AttemptAnalytics] `json:"analytics"`

	// Incremented on every write; guards concurrent read-modify-write cycles.
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Answer struct {
	QuestionID   string          `json:"question_id"`
	QuestionType QuestionType    `json:"question_type"`
	Difficulty   DifficultyLevel `json:"difficulty"`

	// Payload, one of these depending on type
	SelectedOptions []string `json:"selected_options,omitempty"`
	BooleanAnswer   *bool    `json:"boolean_answer,omitempty"`
	TextAnswer      *string  `json:"text_answer,omitempty"`

	TimeSpent  int        `json:"time_spent"` // seconds, accumulated
	Attempts   int        `json:"attempts"`   // revision count
	AnsweredAt *time.Time `json:"answered_at,omitempty"`

	// Grading
	Marks      float64    `json:"marks"`
	MaxMarks   float64    `json:"max_marks"`
	IsCorrect  *bool      `json:"is_correct"`
	AutoGraded bool       `json:"auto_graded"`
	GradedBy   *string    `json:"graded_by,omitempty"`
	GradedAt   *time.Time `json:"graded_at,omitempty"`
	Feedback   *string    `json:"feedback,omitempty"`
}

// HasPayload reports whether the student supplied anything for this answer.
func (a *Answer) HasPayload() bool {
	switch {
	case len(a.SelectedOptions) > 0:
		return true
	case a.BooleanAnswer != nil:
		return true
	case a.TextAnswer != nil && *a.TextAnswer != "":
		return true
	}
	return false
}

type AttemptResults struct {
	TotalMarks    float64 `json:"total_marks"`
	ObtainedMarks float64 `json:"obtained_marks"`
	Percentage    int     `json:"percentage"`
	Passed        bool    `json:"passed"`
}

type AttemptAnalytics struct {
	Attempted              int                            `json:"attempted"`
	Correct                int                            `json:"correct"`
	Incorrect              int                            `json:"incorrect"`
	Skipped                int                            `json:"skipped"`
	AverageTimePerQuestion float64                        `json:"average_time_per_question"`
	DifficultyBreakdown    map[DifficultyLevel]Difficulty `json:"difficulty_breakdown"`
}

type Difficulty struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// AnswerIndex returns the index of the answer for questionID, or -1.
func (a *QuizAttempt) AnswerIndex(questionID string) int {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// QuestionByID looks a question up in the attempt snapshot.
func (a *QuizAttempt) QuestionByID(id string) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}
