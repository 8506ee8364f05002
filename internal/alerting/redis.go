package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// RedisNotifier appends records to a capped Redis stream.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
	logger zerolog.Logger
}

// NewRedisNotifier parses url, pings the server and returns a stream notifier.
func NewRedisNotifier(ctx context.Context, url, stream string, maxLen int64, logger zerolog.Logger) (*RedisNotifier, error) {
	opts, err := redisOptions(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if stream == "" {
		stream = "mempool:hits"
	}
	return &RedisNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With().Str("component", "alert_redis").Logger(),
	}, nil
}

// redisOptions parses url with command retries disabled so an XADD is attempted once.
func redisOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// Zero means the client default of three retries; -1 disables them.
	opts.MaxRetries = -1
	return opts, nil
}

// Name implements Notifier.
func (n *RedisNotifier) Name() string { return "redis" }

// Notify XADDs one entry with approximate trimming.
func (n *RedisNotifier) Notify(ctx context.Context, rec mempool.Record) error {
	env := newEnvelope(rec)
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal redis envelope: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"id":      env.ID,
			"tx":      rec.Hash.Hex(),
			"method":  rec.Method,
			"payload": string(payload),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	id, err := n.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}

	n.logger.Debug().Str("tx", rec.Hash.Hex()).Str("entry", id).Msg("alert appended (redis)")
	return nil
}

// Close closes the client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
