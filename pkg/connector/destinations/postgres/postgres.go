// Package postgres implements the PostgreSQL vote sink.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	"github.com/ajitpratap0/voterelay/pkg/errors"
	"github.com/ajitpratap0/voterelay/pkg/metrics"
	"github.com/ajitpratap0/voterelay/pkg/models"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS public.votes (id VARCHAR(255) NOT NULL, vote VARCHAR(255) NOT NULL)`
	insertSQL      = `INSERT INTO votes VALUES ($1, $2)`
)

// pgxPool is the part of *pgxpool.Pool the sink uses
type pgxPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// newPool is replaced in tests
var newPool = func(ctx context.Context, dsn string, maxConns int32) (pgxPool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	// the loop is single threaded; idle connections are not worth keeping warm
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Sink writes votes to PostgreSQL
type Sink struct {
	cfg    config.PostgresConfig
	logger *zap.Logger

	mu   sync.Mutex
	pool pgxPool
}

var _ core.Sink = (*Sink)(nil)

// NewSink creates an unconnected PostgreSQL sink
func NewSink(cfg *config.Config, logger *zap.Logger) (core.Sink, error) {
	return &Sink{cfg: cfg.Postgres, logger: logger}, nil
}

// Name returns the registry name
func (s *Sink) Name() string { return config.SinkPostgres }

// Connect creates the pool and pings the server. On failure the sink stays
// usable and the next operation tries again.
func (s *Sink) Connect(ctx context.Context) error {
	timer := metrics.NewTimer()
	_, err := s.getPool(ctx)
	metrics.ObserveSinkOperation(s.Name(), "connect", timer.Stop(), err)
	return err
}

func (s *Sink) getPool(ctx context.Context) (pgxPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return s.pool, nil
	}

	pool, err := newPool(ctx, DSN(s.cfg), s.cfg.MaxConns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres").
			WithDetail("host", s.cfg.Host)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres").
			WithDetail("host", s.cfg.Host)
	}

	s.logger.Info("connected to postgres",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("database", s.cfg.Database),
		zap.Int32("max_connections", s.cfg.MaxConns))
	s.pool = pool
	return pool, nil
}

// EnsureTable creates public.votes when missing
func (s *Sink) EnsureTable(ctx context.Context) error {
	timer := metrics.NewTimer()
	err := s.inTx(ctx, createTableSQL, nil, errors.ErrorTypeInternal, "failed to create votes table")
	metrics.ObserveSinkOperation(s.Name(), "ensure_table", timer.Stop(), err)
	if err == nil {
		s.logger.Info("votes table ready", zap.String("table", "public.votes"))
	}
	return err
}

// Insert writes a single vote in its own transaction
func (s *Sink) Insert(ctx context.Context, vote *models.Vote) error {
	timer := metrics.NewTimer()
	err := s.inTx(ctx, insertSQL, []any{vote.VoterID, vote.Vote}, errors.ErrorTypeInsert, "failed to insert vote")
	metrics.ObserveSinkOperation(s.Name(), "insert", timer.Stop(), err)
	return err
}

func (s *Sink) inTx(ctx context.Context, sql string, args []any, errType errors.ErrorType, msg string) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errType, msg)
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		s.rollback(tx)
		return errors.Wrap(err, errType, msg)
	}

	if err := tx.Commit(ctx); err != nil {
		s.rollback(tx)
		return errors.Wrap(err, errType, msg)
	}
	return nil
}

// rollback uses a fresh context so a cancelled caller still releases the
// connection cleanly.
func (s *Sink) rollback(tx pgx.Tx) {
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Warn("rollback failed", zap.Error(err))
	}
}

// Close closes the pool
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// DSN renders cfg as a keyword/value connection string with quoted values
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		quote(cfg.Host), cfg.Port, quote(cfg.Database), quote(cfg.User), quote(cfg.Password))
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
