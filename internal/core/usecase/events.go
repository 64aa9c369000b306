package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/core/ports"
)

// publishAfterCommit emits an event once the owning transaction is durable.
// Delivery failures are logged and never undo the committed change.
func publishAfterCommit(ctx context.Context, publisher ports.EventPublisher, event domain.Event) {
	if publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := publisher.Publish(ctx, event); err != nil {
		slog.Warn("event_publish_failed",
			"type", string(event.Type),
			"entity_kind", event.EntityKind,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}

type noopMetrics struct{}

func (noopMetrics) StartDocument() {}
func (noopMetrics) FinishDocument(domain.ProcessingSource, time.Duration, error) {}
func (noopMetrics) ObserveStageFailure(string) {}

// FanOutPublisher delivers every event to each publisher in order and joins
// their errors. Nil publishers are skipped.
type FanOutPublisher []ports.EventPublisher

func (p FanOutPublisher) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, publisher := range p {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
