package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/scoring"
)

const (
	statisticsSheet = "Statistics"
	resultsSheet    = "Results"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type analyticsService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyticsService(deps Dependencies) AnalyticsService {
	return &analyticsService{
		repo:   deps.Repo,
		cache:  deps.Cache,
		logger: deps.Logger,
		now:    deps.clock(),
	}
}

// QuizStatistics aggregates all attempts that left in_progress. The result is
// cached until an attempt of the quiz finalizes or is graded.
func (s *analyticsService) QuizStatistics(ctx context.Context, quizID uint, caller Caller) (*scoring.QuizStatistics, error) {
	quiz, err := findQuiz(ctx, s.repo, nil, quizID)
	if err != nil {
		return nil, err
	}
	if err := authorizeQuizOwner(quiz, caller, "view statistics of"); err != nil {
		return nil, err
	}

	var stats scoring.QuizStatistics
	err = s.cache.Stats.CacheOrExecute(ctx, cache.QuizStatsKey(quiz.ID), &stats, func() (interface{}, error) {
		attempts, err := s.repo.Attempt().ListClosedByQuiz(ctx, nil, quiz.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		return scoring.Statistics(quiz.ID, attempts, quiz.Grading.PassingMarks), nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ExportQuizResults builds an xlsx workbook with a statistics sheet and one
// row per closed attempt.
func (s *analyticsService) ExportQuizResults(ctx context.Context, quizID uint, caller Caller) (*ExportFile, error) {
	quiz, err := findQuiz(ctx, s.repo, nil, quizID)
	if err != nil {
		return nil, err
	}
	if err := authorizeQuizOwner(quiz, caller, "export results of"); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListClosedByQuiz(ctx, nil, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	stats := scoring.Statistics(quiz.ID, attempts, quiz.Grading.PassingMarks)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", statisticsSheet); err != nil {
		return nil, fmt.Errorf("failed to name statistics sheet: %w", err)
	}
	if err := writeStatisticsSheet(f, quiz, stats, s.now()); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to create results sheet: %w", err)
	}
	if err := writeResultsSheet(f, attempts, quiz.Grading.PassingMarks); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Quiz results exported", "quiz_id", quiz.ID, "attempts", len(attempts))
	return &ExportFile{
		Filename:    fmt.Sprintf("quiz_%d_results.xlsx", quiz.ID),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

func writeStatisticsSheet(f *excelize.File, quiz *models.Quiz, stats scoring.QuizStatistics, now time.Time) error {
	rows := [][]interface{}{
		{"Quiz", quiz.Title},
		{"Quiz ID", quiz.ID},
		{"Total Marks", quiz.Grading.TotalMarks},
		{"Passing Marks", quiz.Grading.PassingMarks},
		{"Total Attempts", stats.TotalAttempts},
		{"Average Score (%)", stats.AverageScore},
		{"Average Completion Time (s)", stats.AverageCompletionTime},
		{"Pass Rate", stats.PassRate},
		{"Min Score (%)", stats.MinScore},
		{"Max Score (%)", stats.MaxScore},
		{"Generated At", now.UTC().Format(time.RFC3339)},
	}
	return writeRows(f, statisticsSheet, rows)
}

func writeResultsSheet(f *excelize.File, attempts []models.QuizAttempt, passingMarks float64) error {
	rows := [][]interface{}{{
		"Attempt ID", "Student ID", "Attempt", "Status", "Started At", "Submitted At",
		"Time Spent (s)", "Obtained Marks", "Total Marks", "Percentage", "Passed",
	}}
	for i := range attempts {
		a := &attempts[i]
		results := a.Results
		if results == nil {
			r := scoring.ComputeResults(a.Answers, passingMarks)
			results = &r
		}
		submitted := ""
		if a.SubmittedAt != nil {
			submitted = a.SubmittedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{
			a.ID, a.StudentID, a.AttemptNumber, string(a.Status),
			a.StartedAt.UTC().Format(time.RFC3339), submitted, a.TimeSpent,
			results.ObtainedMarks, results.TotalMarks, results.Percentage, results.Passed,
		})
	}
	return writeRows(f, resultsSheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
