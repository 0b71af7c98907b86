package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// SyncPublisher captures the subset of producer behaviour Kafka targets need.
type SyncPublisher interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// KafkaTarget delivers payloads by publishing them to a Kafka topic. The
// transaction id header becomes the record key so one transaction's messages
// stay on one partition.
type KafkaTarget struct {
	name      string
	topic     string
	publisher SyncPublisher
	logger    zerolog.Logger
}

// NewKafkaTarget constructs a Kafka delivery target.
func NewKafkaTarget(name, topic string, publisher SyncPublisher, logger zerolog.Logger) (*KafkaTarget, error) {
	if topic == "" {
		return nil, errors.New("dispatch: kafka topic is required")
	}
	if publisher == nil {
		return nil, errors.New("dispatch: kafka publisher is required")
	}
	return &KafkaTarget{name: name, topic: topic, publisher: publisher, logger: logger}, nil
}

// Deliver publishes the payload synchronously and reports the broker result.
func (t *KafkaTarget) Deliver(_ context.Context, payload []byte, headers map[string]string) error {
	recordHeaders := make(map[string][]byte, len(headers))
	for name, value := range headers {
		recordHeaders[name] = []byte(value)
	}

	var key []byte
	if txn := headers["X-Transaction-Id"]; txn != "" {
		key = []byte(txn)
	}

	if err := t.publisher.PublishSync(t.topic, key, recordHeaders, payload); err != nil {
		return fmt.Errorf("dispatch: deliver to %q: %w", t.name, err)
	}

	t.logger.Debug().
		Str("target", t.name).
		Str("topic", t.topic).
		Int("bytes", len(payload)).
		Msg("payload published")
	return nil
}
