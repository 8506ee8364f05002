package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// KafkaNotifier produces one keyed message per record. The key is the tx hash.
type KafkaNotifier struct {
	topic    string
	producer sarama.SyncProducer
	logger   zerolog.Logger
}

// NewKafkaNotifier dials brokers with a synchronous producer.
func NewKafkaNotifier(brokers []string, topic string, logger zerolog.Logger) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, errors.New("kafka topic empty")
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers empty")
	}

	producer, err := sarama.NewSyncProducer(brokers, kafkaProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, topic, logger), nil
}

// kafkaProducerConfig sends each alert at most once: a failed produce is dropped, not re-sent.
func kafkaProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 0
	cfg.Producer.Timeout = 5 * time.Second
	// SyncProducer requires both.
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

// NewKafkaNotifierWithProducer wraps an existing producer.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		topic:    topic,
		producer: producer,
		logger:   logger.With().Str("component", "alert_kafka").Logger(),
	}
}

// Name implements Notifier.
func (n *KafkaNotifier) Name() string { return "kafka" }

// Notify sends the envelope and waits for the broker ack.
func (n *KafkaNotifier) Notify(ctx context.Context, rec mempool.Record) error {
	// SendMessage takes no context; check before sending.
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(newEnvelope(rec))
	if err != nil {
		return fmt.Errorf("marshal kafka envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(rec.Hash.Hex()),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", n.topic, err)
	}

	n.logger.Debug().
		Str("tx", rec.Hash.Hex()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("alert produced (kafka)")
	return nil
}

// Close closes the producer.
func (n *KafkaNotifier) Close() error {
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}

var _ Notifier = (*KafkaNotifier)(nil)
