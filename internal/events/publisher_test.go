package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInProcessPublisher_DeliversToSubscriber(t *testing.T) {
	publisher, pubSub := NewInProcessEventPublisher("quiz", testLogger())
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, publisher.Topic(AttemptSubmitted))
	require.NoError(t, err)

	event := Event{
		Type:       AttemptSubmitted,
		QuizID:     12,
		AttemptID:  3,
		StudentID:  "student-1",
		OccurredAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Data:       map[string]any{"auto_submitted": true},
	}
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		got, err := DecodeEvent(msg)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, AttemptSubmitted, got.Type)
		assert.Equal(t, uint(12), got.QuizID)
		assert.Equal(t, true, got.Data["auto_submitted"])
		assert.Equal(t, "12", msg.Metadata.Get("quiz_id"))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestTopic(t *testing.T) {
	p := NewWatermillEventPublisher(nil, "", testLogger())
	assert.Equal(t, "quiz.published", p.Topic(QuizPublished))

	p = NewWatermillEventPublisher(nil, "school", testLogger())
	assert.Equal(t, "school.answer.graded", p.Topic(AnswerGraded))
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	require.NoError(t, mock.Publish(ctx, Event{Type: QuizPublished, QuizID: 1}))
	require.NoError(t, mock.Publish(ctx, Event{Type: AttemptStarted, QuizID: 1}))

	assert.Len(t, mock.GetPublishedEvents(), 2)
	assert.Len(t, mock.EventsOfType(AttemptStarted), 1)

	mock.FailWith(errors.New("broker down"))
	assert.Error(t, mock.Publish(ctx, Event{Type: AnswerGraded}))
	assert.Len(t, mock.GetPublishedEvents(), 2)
}
