package scoring

import (
	"math"

	"gorm.io/datatypes"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// Recompute refreshes attempt analytics and, for finalized attempts, results.
// Callers invoke it after every answer or grade mutation.
func Recompute(attempt *models.QuizAttempt, passingMarks float64) {
	attempt.Analytics = datatypes.NewJSONType(ComputeAnalytics(attempt.Answers))

	if attempt.Status.IsFinalized() {
		results := ComputeResults(attempt.Answers, passingMarks)
		attempt.Results = &results
	} else {
		attempt.Results = nil
	}
}

// ComputeAnalytics counts attempted, correct, incorrect and skipped answers.
func ComputeAnalytics(answers []models.Answer) models.AttemptAnalytics {
	analytics := models.AttemptAnalytics{
		DifficultyBreakdown: map[models.DifficultyLevel]models.Difficulty{
			models.DifficultyEasy:   {},
			models.DifficultyMedium: {},
			models.DifficultyHard:   {},
		},
	}

	totalTime := 0
	for i := range answers {
		a := &answers[i]
		if !a.HasPayload() {
			analytics.Skipped++
			continue
		}

		analytics.Attempted++
		totalTime += a.TimeSpent

		bucket := analytics.DifficultyBreakdown[difficultyOf(a)]
		bucket.Attempted++

		if a.IsCorrect != nil {
			if *a.IsCorrect {
				analytics.Correct++
				bucket.Correct++
			} else {
				analytics.Incorrect++
			}
		}
		analytics.DifficultyBreakdown[difficultyOf(a)] = bucket
	}

	if analytics.Attempted > 0 {
		analytics.AverageTimePerQuestion = float64(totalTime) / float64(analytics.Attempted)
	}
	return analytics
}

// ComputeResults sums marks. The total is not floored at zero.
func ComputeResults(answers []models.Answer, passingMarks float64) models.AttemptResults {
	var obtained, total float64
	for _, a := range answers {
		obtained += a.Marks
		total += a.MaxMarks
	}
	return models.AttemptResults{
		TotalMarks:    total,
		ObtainedMarks: obtained,
		Percentage:    Percentage(obtained, total),
		Passed:        obtained >= passingMarks,
	}
}

// Percentage is round(obtained/total*100), rounding halves up. Zero total yields 0.
func Percentage(obtained, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(obtained/total*100 + 0.5))
}

// QuizStatistics aggregates finalized attempts of one quiz.
type QuizStatistics struct {
	QuizID                uint    `json:"quiz_id"`
	TotalAttempts         int     `json:"total_attempts"`
	AverageScore          float64 `json:"average_score"`
	AverageCompletionTime float64 `json:"average_completion_time"`
	PassRate              float64 `json:"pass_rate"`
	MinScore              int     `json:"min_score"`
	MaxScore              int     `json:"max_score"`
}

// Statistics reduces attempts into quiz statistics. Every attempt that has
// left in_progress counts, abandoned ones included.
func Statistics(quizID uint, attempts []models.QuizAttempt, passingMarks float64) QuizStatistics {
	stats := QuizStatistics{QuizID: quizID}

	var scoreSum, timeSum float64
	passed := 0
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Status == models.AttemptInProgress {
			continue
		}

		results := attempt.Results
		if results == nil {
			r := ComputeResults(attempt.Answers, passingMarks)
			results = &r
		}

		if stats.TotalAttempts == 0 {
			stats.MinScore = results.Percentage
			stats.MaxScore = results.Percentage
		} else {
			stats.MinScore = min(stats.MinScore, results.Percentage)
			stats.MaxScore = max(stats.MaxScore, results.Percentage)
		}

		stats.TotalAttempts++
		scoreSum += float64(results.Percentage)
		timeSum += float64(attempt.TimeSpent)
		if results.Passed {
			passed++
		}
	}

	if stats.TotalAttempts > 0 {
		n := float64(stats.TotalAttempts)
		stats.AverageScore = scoreSum / n
		stats.AverageCompletionTime = timeSum / n
		stats.PassRate = float64(passed) / n
	}
	return stats
}

func difficultyOf(a *models.Answer) models.DifficultyLevel {
	if a.Difficulty.IsValid() {
		return a.Difficulty
	}
	return models.DifficultyMedium
}
