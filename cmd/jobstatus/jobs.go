package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cast"

	"github.com/mohans/jobstatus"
)

// sleepStep is how long SleepJob waits between progress updates.
var sleepStep = time.Second

func newRegistry() *jobstatus.Registry {
	reg := jobstatus.NewRegistry()
	reg.Register("SleepJob", func() jobstatus.Job { return &SleepJob{} })
	reg.Register("FailJob", func() jobstatus.Job { return &FailJob{} })
	return reg
}

// SleepJob counts to its "length" option (default 60), one step per second,
// reporting progress and honouring kills along the way.
type SleepJob struct{}

func (j *SleepJob) Perform(ctx context.Context, t *jobstatus.Tracker) error {
	length := cast.ToInt(t.Options()["length"])
	if length <= 0 {
		length = 60
	}

	for i := 0; i < length; i++ {
		if err := t.At(ctx, float64(i), float64(length), jobstatus.Messagef("At %d of %d", i, length)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepStep):
		}
	}
	return t.Completed(ctx, jobstatus.Messagef("Slept for %d steps", length))
}

// FailJob fails with its "message" option.
type FailJob struct{}

func (j *FailJob) Perform(_ context.Context, t *jobstatus.Tracker) error {
	msg := cast.ToString(t.Options()["message"])
	if msg == "" {
		msg = "FailJob always fails"
	}
	return errors.New(msg)
}
