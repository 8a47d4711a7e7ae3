package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/internal/relay"
	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/registry"
	"github.com/ajitpratap0/voterelay/pkg/connector/sources/redisqueue"
	"github.com/ajitpratap0/voterelay/pkg/logger"
	"github.com/ajitpratap0/voterelay/pkg/metrics"
	"github.com/ajitpratap0/voterelay/pkg/observability"
)

// runWorker resolves the configuration, wires the queue and sink, and runs
// the relay until SIGINT or SIGTERM.
func runWorker(parent context.Context, configFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Resolve(config.ResolveOptions{File: configFile})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	base, err := logger.Init(loggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	workerID := uuid.NewString()
	log := base.With(zap.String("component", "vote-worker"), zap.String("worker_id", workerID))
	log.Info("starting vote worker",
		zap.String("version", version),
		zap.String("sink", cfg.SinkName()),
		zap.Any("config", cfg.Redacted()))

	shutdownTracing, err := observability.Setup(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		WorkerID:       workerID,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	sink, err := registry.CreateSink(cfg.SinkName(), cfg, base.With(zap.String("component", "sink")))
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(context.Background()); err != nil {
			log.Warn("failed to close sink", zap.Error(err))
		}
	}()

	// an unreachable database is not fatal; every insert retries the connection
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Worker.OperationTimeout)
	if err := sink.Connect(connectCtx); err != nil {
		log.Error("failed to connect to sink", zap.String("sink", sink.Name()), zap.Error(err))
	}
	cancel()

	queue := redisqueue.Dial(cfg.Redis, base.With(zap.String("component", "queue")))
	defer func() {
		if err := queue.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	}()

	// the table is provisioned even when redis turns out to be down
	r := relay.New(queue, sink, cfg, base, relay.WithWorkerID(workerID))
	r.Start(ctx)

	log.Info("connecting to redis", zap.String("addr", cfg.Redis.Addr()))
	redisCtx, cancel := context.WithTimeout(ctx, cfg.Worker.OperationTimeout)
	err = queue.Ping(redisCtx)
	cancel()
	if err != nil {
		log.Error("failed to connect to redis", zap.Error(err))
		return err
	}

	return r.Run(ctx)
}

func loggerConfig(cfg *config.Config) logger.Config {
	level := cfg.Logging.Level
	if cfg.Debug {
		level = "debug"
	}
	lc := logger.Config{
		Level:    level,
		Encoding: cfg.Logging.Format,
	}
	if cfg.Logging.Output != "" {
		lc.OutputPaths = []string{cfg.Logging.Output}
	}
	return lc
}
