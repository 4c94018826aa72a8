package jobstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMiddleware appends middleware around every job body. The first one
// given is the outermost.
func WithMiddleware(mws ...Middleware) RunnerOption {
	return func(r *Runner) { r.middleware = append(r.middleware, mws...) }
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// Runner executes registered jobs and drives their status from working to a
// terminal state. It is what queue workers call for each delivered job.
type Runner struct {
	store      *Store
	registry   *Registry
	middleware []Middleware
	chain      Middleware
	logger     *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(store *Store, registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    store,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	mws := make([]Middleware, 0, len(r.middleware)+1)
	mws = append(mws, r.middleware...)
	r.chain = Chain(append(mws, Recover(r.logger))...)
	return r
}

// Perform runs the job registered as name for uuid. A new uuid is generated
// when empty. The returned Tracker reflects the execution even when an error
// is returned; the terminal status is stored before Perform returns.
//
// A kill never surfaces as an error. An execution error is returned unless
// the job implements FailureHandler, in which case the handler's result is
// returned.
func (r *Runner) Perform(ctx context.Context, name, uuid string, options map[string]any) (*Tracker, error) {
	def, err := r.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if uuid == "" {
		uuid = NewUUID()
	}
	t := newTracker(r.store, def.Name, uuid, options)
	return t, r.run(ctx, def, def.New(), t)
}

func (r *Runner) run(ctx context.Context, def *Definition, job Job, t *Tracker) error {
	h := resolveHooks(job)

	if err := t.setStatus(ctx, StatusWorking); err != nil {
		return fmt.Errorf("jobstatus: start %s: %w", t.uuid, err)
	}

	info := Info{Name: def.Name, UUID: t.uuid, Queue: def.Queue}
	err := r.chain(ctx, info, func(ctx context.Context) error {
		return job.Perform(ctx, t)
	})

	// The terminal write must land even when the body's context is done.
	ctx = context.WithoutCancel(ctx)
	switch {
	case t.wasKilled() || IsKilled(err):
		return r.finishKilled(ctx, t, h)
	case err != nil:
		return r.finishFailed(ctx, t, h, err)
	}
	return r.finishReturned(ctx, t, h)
}

func (r *Runner) finishReturned(ctx context.Context, t *Tracker, h hooks) error {
	rec, err := t.Status(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if rec != nil && rec.Is(StatusFailed) {
		if h.failure != nil {
			return h.failure.OnFailure(ctx, t, failedError(rec))
		}
		return nil
	}
	if rec != nil && !rec.Is(StatusCompleted) {
		if err := t.Completed(ctx); err != nil {
			return err
		}
	}
	if h.success != nil {
		return h.success.OnSuccess(ctx, t)
	}
	return nil
}

// finishKilled rewrites the killed status even when Kill already ran; the
// body may have written another status after swallowing the kill.
func (r *Runner) finishKilled(ctx context.Context, t *Tracker, h hooks) error {
	if err := t.markKilled(ctx); err != nil {
		return err
	}
	if err := r.store.Killed(ctx, t.uuid); err != nil {
		return err
	}
	r.logger.Debug("job killed",
		slog.String("job_name", t.name),
		slog.String("uuid", t.uuid),
	)
	if h.killed != nil {
		return h.killed.OnKilled(ctx, t)
	}
	return nil
}

func (r *Runner) finishFailed(ctx context.Context, t *Tracker, h hooks, cause error) error {
	msg := Messagef("The task failed because of an error: %v", cause)
	if err := t.Failed(ctx, msg); err != nil {
		return errors.Join(cause, err)
	}
	if h.failure != nil {
		return h.failure.OnFailure(ctx, t, cause)
	}
	return cause
}

// failedError turns a record explicitly marked failed into the cause passed
// to OnFailure.
func failedError(rec *Record) error {
	if rec.Message == "" {
		return errors.New("job marked failed")
	}
	return errors.New(rec.Message)
}
