package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

func validCreate() *CreateQuizRequest {
	now := time.Now()
	return &CreateQuizRequest{
		SchoolID:  "s",
		ClassID:   "c",
		SubjectID: "m",
		Title:     "Quiz",
		StartDate: now,
		EndDate:   now.Add(time.Hour),
		Duration:  30,
		Settings:  SettingsRequest{MaxAttempts: 1, ShowResults: models.ShowResultsNever},
		Questions: []QuestionRequest{{Type: models.Essay, Text: "Discuss", Marks: 5}},
	}
}

func TestValidateQuizCreate(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name   string
		mutate func(r *CreateQuizRequest)
		field  string
	}{
		{"valid", func(r *CreateQuizRequest) {}, ""},
		{"duration too long", func(r *CreateQuizRequest) { r.Duration = 301 }, "duration"},
		{"too many attempts", func(r *CreateQuizRequest) { r.Settings.MaxAttempts = 11 }, "settings.max_attempts"},
		{"bad show results", func(r *CreateQuizRequest) { r.Settings.ShowResults = "sometimes" }, "settings.show_results"},
		{"bad question type", func(r *CreateQuizRequest) { r.Questions[0].Type = "matching" }, "questions[0].type"},
		{"bad difficulty", func(r *CreateQuizRequest) { r.Questions[0].Difficulty = "brutal" }, "questions[0].difficulty"},
		{"window inverted", func(r *CreateQuizRequest) { r.EndDate = r.StartDate.Add(-time.Minute) }, "end_date"},
		{"password missing", func(r *CreateQuizRequest) { r.Settings.RequirePassword = true }, "settings.password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(req)
			errs := bv.ValidateQuizCreate(req)
			if tt.field == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidator_ValidateReturnsTypedErrors(t *testing.T) {
	v := New()
	err := v.Validate(&BulkGradeRequest{})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "items", verrs[0].Field)
	assert.Equal(t, "required", verrs[0].Rule)

	assert.NoError(t, v.Validate(&StartAttemptRequest{}))
}

func TestUpdateQuizRequest_StructuralFields(t *testing.T) {
	desc := "new"
	end := time.Now()
	req := UpdateQuizRequest{Description: &desc, EndDate: &end}
	assert.Empty(t, req.StructuralFields())

	empty := []QuestionRequest{}
	req.Questions = &empty
	assert.Equal(t, []string{"questions"}, req.StructuralFields())
}
