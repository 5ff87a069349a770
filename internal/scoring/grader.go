// Package scoring holds the pure parts of attempt evaluation: objective
// auto-grading, the validity clock and analytics reductions.
package scoring

import (
	"strings"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// GradeResult is the outcome of grading one answer.
type GradeResult struct {
	Marks      float64
	IsCorrect  *bool
	AutoGraded bool
}

// GradeAnswer grades a single answer against its question definition.
//
// Objective answers earn question.Marks when correct and lose NegativeMarks
// when a payload is present but wrong. Nothing is floored at zero.
// Subjective answers are left for manual grading.
func GradeAnswer(q *models.Question, a *models.Answer) GradeResult {
	if q == nil || !q.Type.IsObjective() {
		return GradeResult{Marks: 0, IsCorrect: nil, AutoGraded: false}
	}

	if !a.HasPayload() {
		return GradeResult{Marks: 0, IsCorrect: boolPtr(false), AutoGraded: true}
	}

	var correct bool
	switch q.Type {
	case models.SingleChoice:
		correct = gradeSingleChoice(q, a)
	case models.MultipleChoice:
		correct = gradeMultipleChoice(q, a)
	case models.TrueFalse:
		correct = gradeTrueFalse(q, a)
	}

	if correct {
		return GradeResult{Marks: q.Marks, IsCorrect: boolPtr(true), AutoGraded: true}
	}

	marks := 0.0
	if q.NegativeMarks > 0 {
		marks = -q.NegativeMarks
	}
	return GradeResult{Marks: marks, IsCorrect: boolPtr(false), AutoGraded: true}
}

// ApplyGrade writes r onto the answer.
func ApplyGrade(a *models.Answer, r GradeResult) {
	a.Marks = r.Marks
	a.IsCorrect = r.IsCorrect
	a.AutoGraded = r.AutoGraded
}

// GradeAttempt auto-grades every answer of the attempt against its snapshot.
// Answers already graded by a person are kept.
func GradeAttempt(attempt *models.QuizAttempt) {
	for i := range attempt.Answers {
		answer := &attempt.Answers[i]
		if answer.GradedBy != nil {
			continue
		}
		ApplyGrade(answer, GradeAnswer(attempt.QuestionByID(answer.QuestionID), answer))
	}
}

func gradeSingleChoice(q *models.Question, a *models.Answer) bool {
	if len(a.SelectedOptions) != 1 {
		return false
	}
	correct := q.CorrectOptionIDs()
	return len(correct) == 1 && correct[0] == a.SelectedOptions[0]
}

func gradeMultipleChoice(q *models.Question, a *models.Answer) bool {
	return sameSet(a.SelectedOptions, q.CorrectOptionIDs())
}

func gradeTrueFalse(q *models.Question, a *models.Answer) bool {
	var correctOpt *models.Option
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			correctOpt = &q.Options[i]
			break
		}
	}
	if correctOpt == nil {
		return false
	}

	if a.BooleanAnswer != nil {
		return *a.BooleanAnswer == OptionMeansTrue(correctOpt.Text)
	}
	// Clients may send the chosen option id instead of a boolean.
	return len(a.SelectedOptions) == 1 && a.SelectedOptions[0] == correctOpt.ID
}

// OptionMeansTrue interprets a true/false option label.
func OptionMeansTrue(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "t", "yes", "1":
		return true
	}
	return false
}

// IsBooleanLabel reports whether text is an accepted true/false option label.
func IsBooleanLabel(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "t", "yes", "1", "false", "f", "no", "0":
		return true
	}
	return false
}

func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, v := range b {
		right[v] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for v := range left {
		if _, ok := right[v]; !ok {
			return false
		}
	}
	return true
}

func boolPtr(v bool) *bool {
	return &v
}
