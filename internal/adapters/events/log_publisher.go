package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

// LogPublisher writes mutation events to the application log. It is the
// default publisher when no webhook target is configured.
type LogPublisher struct {
	log *logrus.Logger
}

func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.log.WithFields(logrus.Fields{
		"topic":      topic,
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"item_id":    event.ItemID,
		"item_sku":   event.ItemSKU,
		"actor":      event.Actor,
	}).Info("outbox publish")
	return nil
}
