package jobstatus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Handler is the terminal function that runs the job body.
type Handler func(ctx context.Context) error

// Info identifies the execution a middleware wraps.
type Info struct {
	Name  string
	UUID  string
	Queue string
}

// Middleware wraps a Handler with cross-cutting logic. It must call next
// unless it short-circuits with an error.
type Middleware func(ctx context.Context, info Info, next Handler) error

// Chain composes middleware into one. The first middleware is the outermost
// wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, info Info, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, info, prev)
			}
		}
		return h(ctx)
	}
}

// Recover converts panics in the job body into errors so the execution is
// recorded as failed.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info Info, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job panicked",
					slog.String("job_name", info.Name),
					slog.String("uuid", info.UUID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in job %s: %v", info.Name, r)
			}
		}()
		return next(ctx)
	}
}

// Logging logs the start and end of each execution. A kill is logged as
// such, not as a failure.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info Info, next Handler) error {
		logger.Info("job started",
			slog.String("job_name", info.Name),
			slog.String("uuid", info.UUID),
			slog.String("queue", info.Queue),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case IsKilled(err):
			logger.Info("job killed",
				slog.String("job_name", info.Name),
				slog.String("uuid", info.UUID),
				slog.Duration("elapsed", elapsed),
			)
		case err != nil:
			logger.Error("job failed",
				slog.String("job_name", info.Name),
				slog.String("uuid", info.UUID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		default:
			logger.Info("job finished",
				slog.String("job_name", info.Name),
				slog.String("uuid", info.UUID),
				slog.Duration("elapsed", elapsed),
			)
		}
		return err
	}
}
