package repository

import (
	"context"
	"fmt"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
	applogger "VolMonitor/pkg/logger"
)

// messagePublisher is the subset of pkg/kafka.Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaTablePublisher emits every freshly built table to a topic, keyed by
// as-of date so a compacted topic keeps the latest table per date.
type KafkaTablePublisher struct {
	p     messagePublisher
	topic string
	l     *applogger.Logger
}

func NewKafkaTablePublisher(p messagePublisher, topic string) *KafkaTablePublisher {
	return &KafkaTablePublisher{p: p, topic: topic}
}

// SetLogger injects a structured logger.
func (k *KafkaTablePublisher) SetLogger(l *applogger.Logger) { k.l = l }

func (k *KafkaTablePublisher) PublishTable(ctx context.Context, t *models.AnalyticsTable) error {
	key := []byte(t.AsOf.Format(timeseries.DateLayout))
	if err := k.p.Publish(ctx, k.topic, key, t); err != nil {
		if k.l != nil {
			k.l.Warn("publish table failed", applogger.String("topic", k.topic), applogger.Date("as_of", t.AsOf), applogger.Error(err))
		}
		return fmt.Errorf("publish table %s: %w", key, err)
	}
	if k.l != nil {
		k.l.Debug("table published", applogger.String("topic", k.topic), applogger.Date("as_of", t.AsOf), applogger.String("version", t.Version))
	}
	return nil
}

func (k *KafkaTablePublisher) Close() error { return k.p.Close() }
