package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func QuizKey(quizID uint) string {
	return fmt.Sprintf("id:%d", quizID)
}

func QuizStatsKey(quizID uint) string {
	return fmt.Sprintf("quiz:%d", quizID)
}

// InvalidateQuizCache drops the cached quiz document and its statistics.
func InvalidateQuizCache(ctx context.Context, cm *CacheManager, quizID uint) {
	SafeDelete(ctx, cm.Quiz, QuizKey(quizID))
	InvalidateQuizStats(ctx, cm, quizID)
}

// InvalidateQuizStats drops cached statistics, including per-export variants.
func InvalidateQuizStats(ctx context.Context, cm *CacheManager, quizID uint) {
	SafeDelete(ctx, cm.Stats, QuizStatsKey(quizID))
	SafeInvalidatePattern(ctx, cm.Stats, QuizStatsKey(quizID)+":*")
}
