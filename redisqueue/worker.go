package redisqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mohans/jobstatus"
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) { w.concurrency = n }
}

// WithQueues sets the queues to poll, in priority order.
func WithQueues(queues ...string) WorkerOption {
	return func(w *Worker) { w.queues = queues }
}

// WithPollInterval sets how long each pop blocks before checking for
// shutdown.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.pollInterval = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// Worker pops jobs from a Queue and runs them through a Runner.
type Worker struct {
	queue        *Queue
	runner       *jobstatus.Runner
	concurrency  int
	queues       []string
	pollInterval time.Duration
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewWorker creates a Worker.
func NewWorker(queue *Queue, runner *jobstatus.Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:        queue,
		runner:       runner,
		concurrency:  5,
		queues:       []string{jobstatus.DefaultQueue},
		pollInterval: time.Second,
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start launches the worker goroutines. It returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true

	ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.logger.Info("worker starting",
		slog.Int("concurrency", w.concurrency),
		slog.Any("queues", w.queues),
	)
	for range w.concurrency {
		w.wg.Add(1)
		go w.loop(ctx)
	}
	return nil
}

// Stop signals the goroutines to stop after their current job and waits.
// When ctx ends first, running jobs see their context cancelled.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped gracefully")
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out, cancelling active jobs")
		w.cancel()
		w.wg.Wait()
	}
	w.cancel()
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.queue.Pop(ctx, w.pollInterval, w.queues...)
		if err != nil {
			w.logger.Error("pop error", slog.String("error", err.Error()))
			w.sleep()
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	_, err := w.runner.Perform(ctx, job.Class, job.UUID, job.Options)
	if err != nil {
		w.logger.Warn("job returned error",
			slog.String("job_name", job.Class),
			slog.String("uuid", job.UUID),
			slog.String("queue", job.Queue),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) sleep() {
	select {
	case <-w.stopCh:
	case <-time.After(w.pollInterval):
	}
}
