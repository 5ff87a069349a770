package scoring

import (
	"time"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// Deadline is min(startedAt + duration, endDate).
func Deadline(startedAt time.Time, durationMinutes int, endDate time.Time) time.Time {
	limit := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	if endDate.Before(limit) {
		return endDate
	}
	return limit
}

// ValidityClock evaluates the time window of one attempt.
type ValidityClock struct {
	StartedAt time.Time
	Deadline  time.Time
}

// ClockFor builds the clock for attempt under quiz.
func ClockFor(attempt *models.QuizAttempt, quiz *models.Quiz) ValidityClock {
	return ValidityClock{
		StartedAt: attempt.StartedAt,
		Deadline:  Deadline(attempt.StartedAt, quiz.Duration, quiz.EndDate),
	}
}

// IsValid holds while now <= deadline.
func (c ValidityClock) IsValid(now time.Time) bool {
	return !now.After(c.Deadline)
}

// Remaining is the time left at now, never negative.
func (c ValidityClock) Remaining(now time.Time) time.Duration {
	if d := c.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ElapsedSeconds returns whole seconds between startedAt and at.
func ElapsedSeconds(startedAt, at time.Time) int {
	d := at.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
