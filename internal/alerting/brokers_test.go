package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNATSNotifierPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewNATSNotifier(pub, "", testLogger())

	require.NoError(t, notifier.Notify(context.Background(), sampleRecord()))
	assert.Equal(t, "mempool.hits", pub.subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.data, &env))
	assert.Equal(t, "mempool_hit", env.Type)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "swapExactETHForTokens", env.Data.Method)
	assert.Equal(t, "1.2345", env.Data.EffectiveETH)
	assert.Equal(t, "1700143168", env.Data.Deadline)
	assert.Len(t, env.Data.Path, 2)
}

func TestNATSNotifierPropagatesPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	err := NewNATSNotifier(pub, "alerts", testLogger()).Notify(context.Background(), sampleRecord())
	assert.ErrorContains(t, err, "publish alerts")
}

func TestNATSNotifierHonoursCancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewNATSNotifier(pub, "alerts", testLogger()).Notify(ctx, sampleRecord()), context.Canceled)
	assert.Nil(t, pub.data)
}

func TestKafkaNotifierProducesKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != sampleRecord().Hash.Hex() {
			return errors.New("message key should be the tx hash")
		}
		if msg.Topic != "mempool-hits" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	notifier := NewKafkaNotifierWithProducer(producer, "mempool-hits", testLogger())
	require.NoError(t, notifier.Notify(context.Background(), sampleRecord()))

	err := notifier.Notify(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, notifier.Close())
}

func TestKafkaNotifierRejectsEmptyConfig(t *testing.T) {
	_, err := NewKafkaNotifier(nil, "topic", testLogger())
	assert.Error(t, err)
	_, err = NewKafkaNotifier([]string{"localhost:9092"}, "", testLogger())
	assert.Error(t, err)
}

func TestRedisNotifierAppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	notifier, err := NewRedisNotifier(ctx, "redis://"+mr.Addr(), "hits", 0, testLogger())
	require.NoError(t, err)
	defer notifier.Close()

	require.NoError(t, notifier.Notify(ctx, sampleRecord()))
	require.NoError(t, notifier.Notify(ctx, sampleRecord()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	entries, err := client.XRange(ctx, "hits", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, sampleRecord().Hash.Hex(), entries[0].Values["tx"])
	assert.Equal(t, "swapExactETHForTokens", entries[0].Values["method"])

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &env))
	assert.Equal(t, entries[0].Values["id"], env.ID)
}

func TestRedisNotifierFailsFastWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisNotifier(context.Background(), "redis://"+addr, "hits", 0, testLogger())
	assert.Error(t, err)
}

func TestKafkaProducerConfigSendsOnce(t *testing.T) {
	cfg := kafkaProducerConfig()

	assert.Equal(t, 0, cfg.Producer.Retry.Max)
	assert.False(t, cfg.Producer.Idempotent)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.True(t, cfg.Producer.Return.Errors)
	require.NoError(t, cfg.Validate())

	// A failed produce surfaces once and is not re-sent.
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	notifier := NewKafkaNotifierWithProducer(producer, "mempool-hits", testLogger())
	assert.ErrorIs(t, notifier.Notify(context.Background(), sampleRecord()), sarama.ErrNotLeaderForPartition)
	require.NoError(t, notifier.Close())
}

func TestRedisNotifierDisablesCommandRetries(t *testing.T) {
	opts, err := redisOptions("redis://127.0.0.1:6379/2")
	require.NoError(t, err)
	assert.Equal(t, -1, opts.MaxRetries)
	assert.Equal(t, 2, opts.DB)

	_, err = redisOptions("http://not-redis")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	notifier, err := NewRedisNotifier(context.Background(), "redis://"+mr.Addr(), "hits", 0, testLogger())
	require.NoError(t, err)
	defer notifier.Close()

	// The client normalises -1 to zero retries; the library default would be 3.
	assert.Equal(t, 0, notifier.client.Options().MaxRetries)
}
