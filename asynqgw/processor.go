package asynqgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mohans/jobstatus"
)

// Processor manages asynq workers and runs each task through a Runner.
type Processor struct {
	server *asynq.Server
	runner *jobstatus.Runner
}

type ProcessorConfig struct {
	Concurrency int
	Queues      map[string]int
	Logger      *slog.Logger
}

func NewProcessor(redisOpt asynq.RedisConnOpt, runner *jobstatus.Runner, cfg ProcessorConfig) *Processor {
	con := cfg.Concurrency
	if con <= 0 {
		con = 10
	}
	qs := cfg.Queues
	if qs == nil {
		qs = map[string]int{jobstatus.DefaultQueue: 1}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: con,
		Queues:      qs,
		Logger:      &logAdapter{logger: logger},
	})
	return &Processor{server: server, runner: runner}
}

// ProcessTask decodes the payload and runs the job named by the task type.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var pl payload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if pl.UUID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			pl.UUID = id
		}
	}
	_, err := p.runner.Perform(ctx, t.Type(), pl.UUID, pl.Options)
	if errors.Is(err, jobstatus.ErrUnknownJob) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Start begins processing in background goroutines.
func (p *Processor) Start() error {
	return p.server.Start(p)
}

// Run processes until the process receives a termination signal.
func (p *Processor) Run() error {
	return p.server.Run(p)
}

func (p *Processor) Shutdown() { p.server.Shutdown() }

// logAdapter routes asynq's logger to slog.
type logAdapter struct {
	logger *slog.Logger
}

func (l *logAdapter) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *logAdapter) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *logAdapter) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *logAdapter) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *logAdapter) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
