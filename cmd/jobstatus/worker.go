package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mohans/jobstatus/asynqgw"
	"github.com/mohans/jobstatus/internal/config"
	"github.com/mohans/jobstatus/redisqueue"
)

func runWorker(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := e.newRunner()
	qcfg := e.cfg.Queue

	e.log.Info("Starting worker",
		slog.String("queue_backend", qcfg.Backend),
		slog.String("store_backend", e.cfg.Store.Backend),
		slog.Any("queues", qcfg.Queues),
		slog.Int("concurrency", qcfg.Concurrency),
	)

	switch qcfg.Backend {
	case config.QueueAsynq:
		weights := make(map[string]int, len(qcfg.Queues))
		for _, q := range qcfg.Queues {
			weights[q] = 1
		}
		p := asynqgw.NewProcessor(e.redisConnOpt(), runner, asynqgw.ProcessorConfig{
			Concurrency: qcfg.Concurrency,
			Queues:      weights,
			Logger:      e.log.Logger,
		})
		if err := p.Start(); err != nil {
			return fmt.Errorf("failed to start processor: %w", err)
		}

		<-ctx.Done()
		e.log.Info("Received signal, shutting down gracefully")
		p.Shutdown()

	default:
		w := redisqueue.NewWorker(e.newRedisQueue(), runner,
			redisqueue.WithConcurrency(qcfg.Concurrency),
			redisqueue.WithQueues(qcfg.Queues...),
			redisqueue.WithPollInterval(qcfg.PollInterval),
			redisqueue.WithLogger(e.log.Logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}

		<-ctx.Done()
		e.log.Info("Received signal, shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := w.Stop(shutdownCtx); err != nil {
			e.log.Warn("Worker shutdown timeout exceeded, forcing exit",
				slog.String("error", err.Error()),
			)
		}
	}

	e.log.Info("Worker stopped")
	return nil
}
