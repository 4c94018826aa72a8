package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// timeLayout formats the timestamps embedded in terminal messages.
const timeLayout = "2006-01-02 15:04:05 -0700"

// Tracker is the surface a running job uses to report progress and observe
// kill requests. One Tracker belongs to one execution.
type Tracker struct {
	store   *Store
	name    string
	uuid    string
	options map[string]any
	killed  atomic.Bool
}

func newTracker(store *Store, name, uuid string, options map[string]any) *Tracker {
	return &Tracker{
		store:   store,
		name:    name,
		uuid:    uuid,
		options: cloneMap(options),
	}
}

// UUID returns the execution id.
func (t *Tracker) UUID() string { return t.uuid }

// Name returns the registered job name.
func (t *Tracker) Name() string { return t.name }

// Options returns a copy of the job arguments.
func (t *Tracker) Options() map[string]any { return cloneMap(t.options) }

// Status returns the current stored record.
func (t *Tracker) Status(ctx context.Context) (*Record, error) {
	return t.store.Get(ctx, t.uuid)
}

// ShouldKill reports whether a kill was requested for this execution.
func (t *Tracker) ShouldKill(ctx context.Context) (bool, error) {
	return t.store.ShouldKill(ctx, t.uuid)
}

// Tick records progress with status working. When a kill was requested it
// records the kill instead and returns ErrKilled.
func (t *Tracker) Tick(ctx context.Context, frags ...Fragment) error {
	kill, err := t.ShouldKill(ctx)
	if err != nil {
		return err
	}
	if kill {
		return t.Kill(ctx)
	}
	return t.setStatus(ctx, StatusWorking, frags...)
}

// At records num out of total units done. total must be positive.
func (t *Tracker) At(ctx context.Context, num, total float64, frags ...Fragment) error {
	if total <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTotal, total)
	}
	return t.Tick(ctx, append([]Fragment{Progress(num, total)}, frags...)...)
}

// Failed marks the execution failed. The runner does not overwrite it when
// Perform then returns normally.
func (t *Tracker) Failed(ctx context.Context, frags ...Fragment) error {
	return t.setStatus(ctx, StatusFailed, frags...)
}

// Completed marks the execution completed, with a timestamped message
// unless frags set one.
func (t *Tracker) Completed(ctx context.Context, frags ...Fragment) error {
	msg := Message("Completed at " + t.store.Now().Format(timeLayout))
	return t.setStatus(ctx, StatusCompleted, append([]Fragment{msg}, frags...)...)
}

// Kill marks the execution killed and returns ErrKilled, or the store error
// if the write failed.
func (t *Tracker) Kill(ctx context.Context) error {
	if err := t.markKilled(ctx); err != nil {
		return errors.Join(ErrKilled, err)
	}
	return ErrKilled
}

func (t *Tracker) markKilled(ctx context.Context) error {
	t.killed.Store(true)
	msg := Message("Killed at " + t.store.Now().Format(timeLayout))
	return t.setStatus(ctx, StatusKilled, msg)
}

// wasKilled reports whether Kill ran during this execution.
func (t *Tracker) wasKilled() bool { return t.killed.Load() }

// displayName renders the job name with its arguments, e.g.
// `ExportJob({"id":7})`.
func (t *Tracker) displayName() string {
	if len(t.options) == 0 {
		return t.name + "()"
	}
	b, err := json.Marshal(t.options)
	if err != nil {
		return t.name + "(" + fmt.Sprint(t.options) + ")"
	}
	return t.name + "(" + string(b) + ")"
}

// setStatus merges the prior record, the display name, frags and finally the
// forced status, and overwrites the stored value.
func (t *Tracker) setStatus(ctx context.Context, status Status, frags ...Fragment) error {
	prior, err := t.store.Get(ctx, t.uuid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	all := make([]Fragment, 0, len(frags)+3)
	all = append(all, FromRecord(prior), WithName(t.displayName()))
	if prior == nil || prior.Options == nil {
		all = append(all, WithOptions(t.options))
	}
	all = append(all, frags...)
	all = append(all, WithStatus(status))
	_, err = t.store.Set(ctx, t.uuid, all...)
	return err
}
