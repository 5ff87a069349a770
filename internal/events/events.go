package events

import (
	"context"
	"time"
)

type EventType string

const (
	QuizPublished    EventType = "quiz.published"
	AttemptStarted   EventType = "attempt.started"
	AttemptSubmitted EventType = "attempt.submitted"
	AnswerGraded     EventType = "answer.graded"
)

// Event is the envelope published for every lifecycle change.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	QuizID     uint           `json:"quiz_id"`
	AttemptID  uint           `json:"attempt_id,omitempty"`
	StudentID  string         `json:"student_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// EventPublisher delivers events to downstream consumers (notifications, reporting).
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
