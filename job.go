package jobstatus

import "context"

// Job is a unit of tracked work. Perform reports progress through t and
// should return ErrKilled unchanged when Tick, At or Kill return it.
type Job interface {
	Perform(ctx context.Context, t *Tracker) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context, t *Tracker) error

func (f JobFunc) Perform(ctx context.Context, t *Tracker) error { return f(ctx, t) }

// SuccessHandler is implemented by jobs that want a callback after they
// complete.
type SuccessHandler interface {
	OnSuccess(ctx context.Context, t *Tracker) error
}

// FailureHandler is implemented by jobs that handle their own failures.
// When present, the execution error is passed here and not returned by the
// runner.
type FailureHandler interface {
	OnFailure(ctx context.Context, t *Tracker, cause error) error
}

// KilledHandler is implemented by jobs that want a callback after a kill.
type KilledHandler interface {
	OnKilled(ctx context.Context, t *Tracker) error
}

// hooks holds the optional callbacks a job instance implements.
type hooks struct {
	success SuccessHandler
	failure FailureHandler
	killed  KilledHandler
}

func resolveHooks(j Job) hooks {
	var h hooks
	h.success, _ = j.(SuccessHandler)
	h.failure, _ = j.(FailureHandler)
	h.killed, _ = j.(KilledHandler)
	return h
}
