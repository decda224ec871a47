package services

import (
	"context"
	"log/slog"

	"github.com/nexus-academy/catalog-service/internal/events"
	"github.com/nexus-academy/catalog-service/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// requireAdmin guards admin operations. Membership role plays no part here.
func requireAdmin(actor *models.User, resource, action string) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if !actor.IsAdmin {
		return NewPermissionError(actor.ID, resource, action, "admin role required")
	}
	return nil
}

// normalizePage clamps limit to [1, MaxPageSize] and returns the page number it implies.
func normalizePage(limit, offset int) (int, int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, offset/limit + 1
}

func actorID(actor *models.User) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}

// publishEvent never fails the caller; the write has already been committed.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, event *events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event", "type", event.Type, "event_id", event.ID, "error", err)
	}
}

func publishCatalogChange(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, data events.CatalogChangedData) {
	publishEvent(ctx, publisher, logger, events.NewCatalogChangedEvent(data))
}
