package jobstatus

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ScheduleEntry is one periodic enqueue.
type ScheduleEntry struct {
	ID      cronlib.EntryID
	Spec    string
	Queue   string
	Name    string
	Options map[string]any
}

// Scheduler enqueues tracked jobs on cron schedules. Every firing creates a
// new uuid and status record.
type Scheduler struct {
	client *Client
	cron   *cronlib.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[cronlib.EntryID]ScheduleEntry
}

// NewScheduler creates a Scheduler enqueueing through client.
func NewScheduler(client *Client, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		client:  client,
		cron:    cronlib.New(cronlib.WithParser(cronParser)),
		logger:  logger,
		entries: make(map[cronlib.EntryID]ScheduleEntry),
	}
}

// Add schedules name on queue. An empty queue uses the job's registered
// queue.
func (s *Scheduler) Add(spec, queue, name string, options map[string]any) (cronlib.EntryID, error) {
	if _, err := s.client.registry.Lookup(name); err != nil {
		return 0, err
	}
	entry := ScheduleEntry{Spec: spec, Queue: queue, Name: name, Options: maps.Clone(options)}
	id, err := s.cron.AddFunc(spec, func() { s.fire(entry) })
	if err != nil {
		return 0, fmt.Errorf("jobstatus: schedule %s: %w", name, err)
	}
	entry.ID = id

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return id, nil
}

// Remove unschedules an entry.
func (s *Scheduler) Remove(id cronlib.EntryID) {
	s.cron.Remove(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Entries returns the scheduled entries.
func (s *Scheduler) Entries() []ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Start runs the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for running enqueues, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(e ScheduleEntry) {
	ctx := context.Background()
	var (
		id  string
		err error
	)
	if e.Queue == "" {
		id, err = s.client.Enqueue(ctx, e.Name, e.Options)
	} else {
		id, err = s.client.EnqueueTo(ctx, e.Queue, e.Name, e.Options)
	}
	if err != nil {
		s.logger.Warn("scheduled enqueue failed",
			slog.String("job_name", e.Name),
			slog.String("spec", e.Spec),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("scheduled enqueue",
		slog.String("job_name", e.Name),
		slog.String("uuid", id),
	)
}
