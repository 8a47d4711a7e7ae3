// Package redisqueue reads vote messages from a redis list.
package redisqueue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	nerrors "github.com/ajitpratap0/voterelay/pkg/errors"
)

// Client is the subset of the go-redis client used by the queue
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

var (
	_ Client     = (*redis.Client)(nil)
	_ core.Queue = (*Queue)(nil)
)

// Queue pops raw messages from the right end of a redis list
type Queue struct {
	client Client
	logger *zap.Logger
	addr   string
	db     int
}

// New wraps an existing client
func New(client Client, logger *zap.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// Dial creates a queue for cfg without touching the network. Call Ping to
// verify the server.
func Dial(cfg config.RedisConfig, logger *zap.Logger) *Queue {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	q := New(client, logger)
	q.addr = cfg.Addr()
	q.db = cfg.DB
	return q
}

// Connect dials redis and verifies the connection with PING. The worker
// cannot do anything useful without its queue, so callers treat the error
// as fatal.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Queue, error) {
	q := Dial(cfg, logger)
	if err := q.Ping(ctx); err != nil {
		_ = q.client.Close()
		return nil, err
	}
	return q, nil
}

// Ping checks that redis answers. Timeouts and AUTH failures are
// connection errors.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return nerrors.Wrap(err, nerrors.ErrorTypeConnection, "failed to connect to redis").
			WithDetail("addr", q.addr)
	}
	q.logger.Info("connected to redis", zap.String("addr", q.addr), zap.Int("db", q.db))
	return nil
}

// PopRight removes the right-most element of key. An empty list is not an
// error: it returns ok == false.
func (q *Queue) PopRight(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := q.client.RPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, nerrors.Wrap(err, nerrors.ErrorTypeConnection, "failed to pop from redis").
			WithDetail("key", key)
	}
	return data, true, nil
}

// Close closes the underlying client
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return nerrors.Wrap(err, nerrors.ErrorTypeClose, "failed to close redis client")
	}
	return nil
}
