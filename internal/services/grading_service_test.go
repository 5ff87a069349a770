package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// essayQuiz extends twoQuestionQuiz with a 10 mark essay "q3".
func essayQuiz() *validator.CreateQuizRequest {
	req := twoQuestionQuiz()
	req.Questions = append(req.Questions, validator.QuestionRequest{
		ID:    "q3",
		Type:  models.Essay,
		Text:  "Explain why leaves are green",
		Marks: 10,
	})
	return req
}

// submittedEssayAttempt returns an attempt with q1 right, q2 skipped and an
// essay answer waiting for a grade.
func submittedEssayAttempt(t *testing.T, env *testEnv) (*QuizResponse, uint) {
	t.Helper()
	ctx := context.Background()
	quiz := env.publishedQuiz(t, essayQuiz())

	started, err := env.services.Attempt().Start(ctx, quiz.ID, nil, student.UserID)
	require.NoError(t, err)
	env.answer(t, started.Attempt.ID, "q1", "q1-a")
	_, err = env.services.Attempt().RecordAnswer(ctx, started.Attempt.ID, "q3",
		&validator.RecordAnswerRequest{TextAnswer: ptr("Chlorophyll reflects green light")}, student.UserID)
	require.NoError(t, err)

	submitted, err := env.services.Attempt().Submit(ctx, started.Attempt.ID, student.UserID)
	require.NoError(t, err)
	require.Equal(t, 5.0, submitted.Results.ObtainedMarks)
	return quiz, started.Attempt.ID
}

func answerFor(view *AttemptView, questionID string) *models.Answer {
	for i := range view.Answers {
		if view.Answers[i].QuestionID == questionID {
			return &view.Answers[i]
		}
	}
	return nil
}

func TestGradingService_GradeAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, attemptID := submittedEssayAttempt(t, env)

	view, err := env.services.Grading().GradeAnswer(ctx, attemptID, "q3", &validator.GradeAnswerRequest{
		Marks:    7,
		Feedback: ptr(`<b>Good</b><script>alert(1)</script>`),
	}, teacher)
	require.NoError(t, err)

	essay := answerFor(view, "q3")
	require.NotNil(t, essay)
	assert.Equal(t, 7.0, essay.Marks)
	require.NotNil(t, essay.IsCorrect)
	assert.True(t, *essay.IsCorrect)
	assert.False(t, essay.AutoGraded)
	require.NotNil(t, essay.GradedBy)
	assert.Equal(t, teacher.UserID, *essay.GradedBy)
	require.NotNil(t, essay.Feedback)
	assert.Equal(t, "<b>Good</b>", *essay.Feedback)

	require.NotNil(t, view.Results)
	assert.Equal(t, 20.0, view.Results.TotalMarks)
	assert.Equal(t, 12.0, view.Results.ObtainedMarks)
	assert.Equal(t, 60, view.Results.Percentage)
	assert.True(t, view.Results.Passed)

	graded := env.events.EventsOfType(events.AnswerGraded)
	require.Len(t, graded, 1)
	assert.Equal(t, "q3", graded[0].Data["question_id"])
	assert.Equal(t, teacher.UserID, graded[0].ActorID)

	view, err = env.services.Grading().GradeAnswer(ctx, attemptID, "q3", &validator.GradeAnswerRequest{Marks: 0}, admin)
	require.NoError(t, err)
	essay = answerFor(view, "q3")
	assert.False(t, *essay.IsCorrect, "zero marks counts as incorrect")
	assert.Equal(t, 5.0, view.Results.ObtainedMarks)
}

func TestGradingService_GradeAnswer_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, attemptID := submittedEssayAttempt(t, env)

	tests := []struct {
		name       string
		attemptID  uint
		questionID string
		marks      float64
		grader     Caller
		want       error
		wantFields bool
	}{
		{name: "above max marks", attemptID: attemptID, questionID: "q3", marks: 10.5, grader: teacher, wantFields: true},
		{name: "below negative marks", attemptID: attemptID, questionID: "q1", marks: -1.5, grader: teacher, wantFields: true},
		{name: "negative on a question without penalty", attemptID: attemptID, questionID: "q3", marks: -1, grader: teacher, wantFields: true},
		{name: "another teacher", attemptID: attemptID, questionID: "q3", marks: 1, grader: otherTeacher, want: ErrForbidden},
		{name: "student", attemptID: attemptID, questionID: "q3", marks: 1, grader: student, want: ErrForbidden},
		{name: "unknown question", attemptID: attemptID, questionID: "q9", marks: 1, grader: teacher, want: ErrQuestionNotFound},
		{name: "unknown attempt", attemptID: attemptID + 10, questionID: "q3", marks: 1, grader: teacher, want: ErrAttemptNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.services.Grading().GradeAnswer(ctx, tt.attemptID, tt.questionID,
				&validator.GradeAnswerRequest{Marks: tt.marks}, tt.grader)
			if tt.wantFields {
				var verrs ValidationErrors
				assert.ErrorAs(t, err, &verrs)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// q1 carries a 1 mark penalty, so -1 is in range
	_, err := env.services.Grading().GradeAnswer(ctx, attemptID, "q1", &validator.GradeAnswerRequest{Marks: -1}, teacher)
	assert.NoError(t, err)

	started, err := env.services.Attempt().Start(ctx, quiz.ID, nil, student2.UserID)
	require.NoError(t, err)
	_, err = env.services.Grading().GradeAnswer(ctx, started.Attempt.ID, "q3", &validator.GradeAnswerRequest{Marks: 1}, teacher)
	assert.ErrorIs(t, err, ErrBusinessRule, "in-progress attempts cannot be graded")
}

func TestGradingService_BulkGrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, attemptID := submittedEssayAttempt(t, env)

	result, err := env.services.Grading().BulkGrade(ctx, &validator.BulkGradeRequest{
		Items: []validator.BulkGradeItem{
			{AttemptID: attemptID, QuestionID: "q3", Marks: 8},
			{AttemptID: attemptID + 99, QuestionID: "q3", Marks: 8},
			{AttemptID: attemptID, QuestionID: "q3", Marks: 80},
			{AttemptID: attemptID, QuestionID: "q2", Marks: 5},
		},
	}, teacher)
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, attemptID+99, result.Failed[0].Item.AttemptID)
	assert.Equal(t, 80.0, result.Failed[1].Item.Marks)
	assert.NotEmpty(t, result.Failed[0].Error)

	view, err := env.services.Attempt().Get(ctx, attemptID, teacher)
	require.NoError(t, err)
	assert.Equal(t, 18.0, view.Results.ObtainedMarks)

	_, err = env.services.Grading().BulkGrade(ctx, &validator.BulkGradeRequest{}, teacher)
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestGradingService_RegradeQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := essayQuiz()
	req.Settings.MaxAttempts = 2
	quiz := env.publishedQuiz(t, req)

	started, err := env.services.Attempt().Start(ctx, quiz.ID, nil, student.UserID)
	require.NoError(t, err)
	env.answer(t, started.Attempt.ID, "q1", "q1-a")
	env.answer(t, started.Attempt.ID, "q2", "q2-a")
	_, err = env.services.Attempt().Submit(ctx, started.Attempt.ID, student.UserID)
	require.NoError(t, err)

	abandoned, err := env.services.Attempt().Start(ctx, quiz.ID, nil, student.UserID)
	require.NoError(t, err)
	_, err = env.services.Attempt().Abandon(ctx, abandoned.Attempt.ID, student.UserID)
	require.NoError(t, err)

	// a manual override on an objective answer survives regrading
	_, err = env.services.Grading().GradeAnswer(ctx, started.Attempt.ID, "q2", &validator.GradeAnswerRequest{Marks: 2}, teacher)
	require.NoError(t, err)

	result, err := env.services.Grading().RegradeQuiz(ctx, quiz.ID, teacher)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, result.QuizID)
	assert.Equal(t, []uint{started.Attempt.ID}, result.Regraded)
	assert.Empty(t, result.Failed)

	view, err := env.services.Attempt().Get(ctx, started.Attempt.ID, teacher)
	require.NoError(t, err)
	assert.Equal(t, 2.0, answerFor(view, "q2").Marks)
	assert.Equal(t, 5.0, answerFor(view, "q1").Marks)
	assert.Equal(t, 7.0, view.Results.ObtainedMarks)

	_, err = env.services.Grading().RegradeQuiz(ctx, quiz.ID, otherTeacher)
	assert.ErrorIs(t, err, ErrForbidden)
}
