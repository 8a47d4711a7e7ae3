// Package relay moves votes from the queue into the selected sink.
//
// A Relay runs a single-threaded poll loop:
//
//	r := relay.New(queue, sink, cfg, logger)
//	r.Start(ctx)       // ensure the votes table exists
//	err := r.Run(ctx)  // pop, decode, insert, wait; until ctx is done
//
// Every failure is logged at the iteration boundary and the loop carries on.
// A message that fails to decode or insert is dropped; nothing is retried.
package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	"github.com/ajitpratap0/voterelay/pkg/metrics"
	"github.com/ajitpratap0/voterelay/pkg/models"
	"github.com/ajitpratap0/voterelay/pkg/observability"
)

// Outcome classifies one poll iteration
type Outcome int

const (
	// OutcomeEmpty means the queue had nothing to pop
	OutcomeEmpty Outcome = iota
	// OutcomeInserted means a vote reached the sink
	OutcomeInserted
	// OutcomePopFailed means the queue could not be read
	OutcomePopFailed
	// OutcomeDecodeFailed means the popped message was malformed
	OutcomeDecodeFailed
	// OutcomeInsertFailed means the sink rejected the vote
	OutcomeInsertFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeInserted:
		return "inserted"
	case OutcomePopFailed:
		return "pop_failed"
	case OutcomeDecodeFailed:
		return "decode_failed"
	case OutcomeInsertFailed:
		return "insert_failed"
	default:
		return "unknown"
	}
}

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Relay is the poll loop
type Relay struct {
	queue    core.Queue
	sink     core.Sink
	cfg      config.WorkerConfig
	debug    bool
	logger   *zap.Logger
	workerID string
	wait     WaitFunc

	iterations int64
}

// Option configures a Relay
type Option func(*Relay)

// WithWaitFunc replaces the sleep between iterations
func WithWaitFunc(wait WaitFunc) Option {
	return func(r *Relay) {
		r.wait = wait
	}
}

// WithWorkerID sets the identifier attached to logs and spans. A random
// UUID is used otherwise.
func WithWorkerID(id string) Option {
	return func(r *Relay) {
		r.workerID = id
	}
}

// New creates a relay from queue to sink
func New(queue core.Queue, sink core.Sink, cfg *config.Config, logger *zap.Logger, opts ...Option) *Relay {
	r := &Relay{
		queue:    queue,
		sink:     sink,
		cfg:      cfg.Worker,
		debug:    cfg.Debug,
		workerID: uuid.NewString(),
		wait:     sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.With(
		zap.String("component", "relay"),
		zap.String("worker_id", r.workerID))
	return r
}

// WorkerID returns the identifier of this relay
func (r *Relay) WorkerID() string { return r.workerID }

// Iterations returns the number of completed iterations
func (r *Relay) Iterations() int64 { return atomic.LoadInt64(&r.iterations) }

// Start makes sure the votes table exists. A failure is logged and the
// relay can still run; inserts will report their own errors.
func (r *Relay) Start(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	if err := r.sink.EnsureTable(opCtx); err != nil {
		r.logger.Error("failed to ensure votes table", zap.String("sink", r.sink.Name()), zap.Error(err))
	}
}

// Run polls until ctx is cancelled. The iteration in flight when ctx is
// cancelled completes before Run returns. Run returns nil on shutdown.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("starting poll loop",
		zap.String("queue", r.cfg.ListKey),
		zap.String("sink", r.sink.Name()),
		zap.Duration("poll_interval", r.cfg.PollInterval))

	for ctx.Err() == nil {
		r.Step(ctx)
		if err := r.wait(ctx, r.cfg.PollInterval); err != nil {
			break
		}
	}

	r.logger.Info("poll loop stopped", zap.Int64("iterations", r.Iterations()))
	return nil
}

// Step runs one iteration: pop, decode, insert. It never returns an error;
// the outcome says what happened and failures are logged here.
func (r *Relay) Step(ctx context.Context) Outcome {
	// cancelling ctx stops the loop, not the iteration in flight
	base := context.WithoutCancel(ctx)

	spanCtx, span := observability.StartSpan(base, "relay.iteration",
		attribute.String("queue", r.cfg.ListKey),
		attribute.String("sink", r.sink.Name()),
		attribute.String("worker_id", r.workerID))

	outcome, err := r.step(spanCtx)
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	observability.EndSpan(span, err)

	atomic.AddInt64(&r.iterations, 1)
	metrics.PollIterations.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (r *Relay) step(ctx context.Context) (Outcome, error) {
	data, ok, err := r.pop(ctx)
	if err != nil {
		r.logger.Error("failed to read from queue", zap.String("queue", r.cfg.ListKey), zap.Error(err))
		return OutcomePopFailed, err
	}
	if !ok {
		r.logger.Debug("queue empty", zap.String("queue", r.cfg.ListKey))
		return OutcomeEmpty, nil
	}

	metrics.MessagesPopped.Inc()
	if r.debug {
		r.logger.Debug("message popped", zap.ByteString("message", data))
	}
	r.logger.Info("reading message from queue", zap.String("queue", r.cfg.ListKey))

	vote, err := models.DecodeVote(data)
	if err != nil {
		r.logger.Error("dropping malformed message", zap.Error(err), zap.Int("size", len(data)))
		return OutcomeDecodeFailed, err
	}

	if err := r.insert(ctx, vote); err != nil {
		r.logger.Error("failed to insert vote",
			zap.String("sink", r.sink.Name()),
			zap.String("voter_id", vote.VoterID),
			zap.Error(err))
		return OutcomeInsertFailed, err
	}

	r.logger.Info("vote inserted", zap.String("sink", r.sink.Name()), zap.String("voter_id", vote.VoterID))
	return OutcomeInserted, nil
}

func (r *Relay) pop(ctx context.Context) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return r.queue.PopRight(opCtx, r.cfg.ListKey)
}

func (r *Relay) insert(ctx context.Context, vote *models.Vote) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()
	return r.sink.Insert(opCtx, vote)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
