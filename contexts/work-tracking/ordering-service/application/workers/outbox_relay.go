package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"compass/contexts/work-tracking/ordering-service/application"
	"compass/contexts/work-tracking/ordering-service/ports"
)

// OutboxRelay drains pending ordering events from the outbox and publishes
// them to the event bus. Delivery is at-least-once: rows stay pending until
// the publish and the mark both succeed.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "work-tracking.ordering"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "ordering_outbox_list_failed",
			"module", "work-tracking/ordering-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "ordering_outbox_decode_failed",
				"module", "work-tracking/ordering-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "ordering_outbox_publish_failed",
				"module", "work-tracking/ordering-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "ordering_outbox_mark_failed",
				"module", "work-tracking/ordering-service",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "ordering_outbox_relay_completed",
			"module", "work-tracking/ordering-service",
			"layer", "worker",
			"sent_count", len(pending),
		)
	}
	return nil
}
