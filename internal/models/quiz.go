package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
	QuizStatusCancelled QuizStatus = "cancelled"
)

// PresentationStatus is derived from the stored status and the current time. It is never persisted.
type PresentationStatus string

const (
	PresentationDraft     PresentationStatus = "draft"
	PresentationCancelled PresentationStatus = "cancelled"
	PresentationScheduled PresentationStatus = "scheduled"
	PresentationActive    PresentationStatus = "active"
	PresentationEnded     PresentationStatus = "ended"
)

type ShowResultsPolicy string

const (
	ShowResultsImmediately  ShowResultsPolicy = "immediately"
	ShowResultsAfterEndDate ShowResultsPolicy = "after_end_date"
	ShowResultsNever        ShowResultsPolicy = "never"
)

const (
	MinQuizDuration = 1
	MaxQuizDuration = 300
	MinMaxAttempts  = 1
	MaxMaxAttempts  = 10
)

type Quiz struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SchoolID  string `json:"school_id" gorm:"not null;index;size:255"`
	ClassID   string `json:"class_id" gorm:"not null;index;size:255"`
	SubjectID string `json:"subject_id" gorm:"not null;index;size:255"`
	CreatedBy string `json:"created_by" gorm:"not null;index;size:255"`

	Title        string  `json:"title" gorm:"not null;size:200"`
	Description  *string `json:"description" gorm:"type:text"`
	Instructions *string `json:"instructions" gorm:"type:text"`

	// Window
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null;index"`
	Duration  int       `json:"duration" gorm:"not null"` // minutes

	Settings  QuizSettings                 `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	Questions datatypes.JSONSlice[Question] `json:"questions"`
	Grading   QuizGrading                  `json:"grading" gorm:"embedded;embeddedPrefix:grading_"`

	Status      QuizStatus `json:"status" gorm:"not null;default:draft;index;size:20"`
	PublishedAt *time.Time `json:"published_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type QuizSettings struct {
	MaxAttempts        int               `json:"max_attempts" gorm:"not null;default:1"`
	ShuffleQuestions   bool              `json:"shuffle_questions" gorm:"not null;default:false"`
	ShuffleOptions     bool              `json:"shuffle_options" gorm:"not null;default:false"`
	ShowResults        ShowResultsPolicy `json:"show_results" gorm:"not null;default:immediately;size:20"`
	ShowCorrectAnswers bool              `json:"show_correct_answers" gorm:"not null;default:false"`
	RequirePassword    bool              `json:"require_password" gorm:"not null;default:false"`
	PasswordHash       string            `json:"password_hash,omitempty" gorm:"size:255"`

	// Proctoring
	PreventTabSwitching bool `json:"prevent_tab_switching" gorm:"not null;default:false"`
	RequireWebcam       bool `json:"require_webcam" gorm:"not null;default:false"`
	RequireFullScreen   bool `json:"require_full_screen" gorm:"not null;default:false"`
}

type QuizGrading struct {
	TotalMarks   float64 `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks float64 `json:"passing_marks" gorm:"not null;default:0"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// PresentationStatusAt derives scheduled/active/ended for published quizzes.
func (q *Quiz) PresentationStatusAt(now time.Time) PresentationStatus {
	switch q.Status {
	case QuizStatusDraft:
		return PresentationDraft
	case QuizStatusCancelled:
		return PresentationCancelled
	}
	if now.Before(q.StartDate) {
		return PresentationScheduled
	}
	if now.After(q.EndDate) {
		return PresentationEnded
	}
	return PresentationActive
}

// IsActiveAt reports whether students may start attempts at now.
func (q *Quiz) IsActiveAt(now time.Time) bool {
	return q.PresentationStatusAt(now) == PresentationActive
}

// QuestionByID returns the question with the given id, or nil.
func (q *Quiz) QuestionByID(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}
