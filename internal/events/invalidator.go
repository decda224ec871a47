package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nexus-academy/catalog-service/internal/cache"
)

// CatalogInvalidator drops cached catalog reads when catalog.changed arrives,
// so every instance behind the load balancer sees admin writes.
type CatalogInvalidator struct {
	subscriber message.Subscriber
	cache      *cache.CacheManager
	logger     *slog.Logger
}

func NewCatalogInvalidator(subscriber message.Subscriber, cacheManager *cache.CacheManager, logger *slog.Logger) *CatalogInvalidator {
	return &CatalogInvalidator{
		subscriber: subscriber,
		cache:      cacheManager,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled or the subscription closes.
func (ci *CatalogInvalidator) Run(ctx context.Context) error {
	messages, err := ci.subscriber.Subscribe(ctx, TypeCatalogChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TypeCatalogChanged, err)
	}

	ci.logger.Info("Catalog invalidator started", "topic", TypeCatalogChanged)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			ci.handle(ctx, msg)
		}
	}
}

func (ci *CatalogInvalidator) handle(ctx context.Context, msg *message.Message) {
	// a malformed message is acked; retrying cannot fix it
	defer msg.Ack()

	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		ci.logger.Error("Invalid catalog event payload", "message_uuid", msg.UUID, "error", err)
		cache.InvalidateCatalog(ctx, ci.cache)
		return
	}

	var data CatalogChangedData
	if err := event.DecodeData(&data); err != nil {
		ci.logger.Error("Invalid catalog event data", "event_id", event.ID, "error", err)
		cache.InvalidateCatalog(ctx, ci.cache)
		return
	}

	switch data.Entity {
	case EntityProgram:
		cache.InvalidateProgramCache(ctx, ci.cache, data.EntityID, data.Slug)
	case EntityLecture:
		cache.InvalidateLectureCache(ctx, ci.cache, data.EntityID, data.ProgramID)
	default:
		cache.InvalidateCatalog(ctx, ci.cache)
	}

	ci.logger.Debug("Catalog cache invalidated", "entity", data.Entity, "entity_id", data.EntityID, "action", data.Action)
}
