// Package producer wraps a Sarama synchronous producer for the Kafka
// delivery targets of the fan-out router.
package producer

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Option customises the producer during construction.
type Option func(*options)

type options struct {
	config *sarama.Config
}

// WithConfig allows callers to supply a preconfigured Sarama config.
func WithConfig(cfg *sarama.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// Producer publishes records synchronously. Deliveries through the fan-out
// router must observe success or failure before the next target is attempted,
// so only the sync path is exposed.
type Producer struct {
	logger       zerolog.Logger
	client       sarama.Client
	syncProducer sarama.SyncProducer
}

// New constructs a Producer using the supplied broker list and logger.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}

	settings := &options{config: defaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	client, err := sarama.NewClient(brokers, settings.config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}

	syncProd, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	return &Producer{logger: logger, client: client, syncProducer: syncProd}, nil
}

// PublishSync publishes one record and waits for the broker acknowledgement.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if p == nil || p.syncProducer == nil {
		return errors.New("kafka producer: not initialised")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	for name, value := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{
			Key:   []byte(name),
			Value: value,
		})
	}

	partition, offset, err := p.syncProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka producer: publish to %s: %w", topic, err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("record published")
	return nil
}

// Close shuts down the producer and the underlying client.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.syncProducer != nil {
		if err := p.syncProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sync producer: %w", err))
		}
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}
	return errors.Join(errs...)
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = false
	return cfg
}
