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

// InvalidateProgramCache drops a program, its lecture list and every program listing.
func InvalidateProgramCache(ctx context.Context, cm *CacheManager, programID uint, slug string) {
	keys := []string{fmt.Sprintf("id:%d", programID)}
	if slug != "" {
		keys = append(keys, "slug:"+slug)
	}
	SafeDelete(ctx, cm.Program, keys...)
	SafeInvalidatePattern(ctx, cm.Program, "list:*")
	SafeDelete(ctx, cm.Lecture, fmt.Sprintf("program:%d", programID))
	SafeInvalidatePattern(ctx, cm.Lecture, "related:*")
}

// InvalidateLectureCache drops a lecture and the ordered list of its program.
func InvalidateLectureCache(ctx context.Context, cm *CacheManager, lectureID, programID uint) {
	SafeDelete(ctx, cm.Lecture,
		fmt.Sprintf("id:%d", lectureID),
		fmt.Sprintf("program:%d", programID))
	SafeInvalidatePattern(ctx, cm.Lecture, "related:*")
}

// InvalidatePostCache drops a post and every post listing.
func InvalidatePostCache(ctx context.Context, cm *CacheManager, postID uint, slug string) {
	keys := []string{fmt.Sprintf("id:%d", postID)}
	if slug != "" {
		keys = append(keys, "slug:"+slug)
	}
	SafeDelete(ctx, cm.Post, keys...)
	SafeInvalidatePattern(ctx, cm.Post, "list:*")
}

// InvalidateReviewCache drops every review listing.
func InvalidateReviewCache(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Review, "*")
}

// InvalidateCatalog flushes everything derived from programs and lectures.
func InvalidateCatalog(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Program, "*")
	SafeInvalidatePattern(ctx, cm.Lecture, "*")
	SafeInvalidatePattern(ctx, cm.Exists, "*")
}
