package models

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

const (
	MinQuestionMarks     = 0.5
	MaxQuestionMarks     = 100.0
	MinQuestionTimeLimit = 10
	MaxQuestionTimeLimit = 3600
)

// Question is embedded in a quiz document and copied into each attempt snapshot.
type Question struct {
	ID            string          `json:"id"`
	Type          QuestionType    `json:"type"`
	Text          string          `json:"text"`
	Options       []Option        `json:"options,omitempty"`
	Marks         float64         `json:"marks"`
	NegativeMarks float64         `json:"negative_marks"`
	Difficulty    DifficultyLevel `json:"difficulty"`
	TimeLimit     *int            `json:"time_limit,omitempty"` // seconds
	Explanation   *string         `json:"explanation,omitempty"`
}

type Option struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	IsCorrect   bool    `json:"is_correct"`
	Explanation *string `json:"explanation,omitempty"`
}

// IsObjective reports whether the type is auto-gradeable.
func (t QuestionType) IsObjective() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse:
		return true
	}
	return false
}

// IsValid reports whether the type is one of the supported question types.
func (t QuestionType) IsValid() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse, ShortAnswer, Essay:
		return true
	}
	return false
}

func (d DifficultyLevel) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// CorrectOptionIDs returns the ids of options flagged correct, in definition order.
func (q *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}
