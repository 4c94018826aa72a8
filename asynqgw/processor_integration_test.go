package asynqgw

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mohans/jobstatus"
	"github.com/mohans/jobstatus/redisstore"
)

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	return s
}

func newStore(t *testing.T, s *miniredis.Miniredis) *jobstatus.Store {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return jobstatus.NewStore(redisstore.New(rdb))
}

func pollUntil(t *testing.T, timeout time.Duration, f func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := f()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func hasStatus(ctx context.Context, store *jobstatus.Store, id string, want jobstatus.Status) func() (bool, error) {
	return func() (bool, error) {
		rec, err := store.Get(ctx, id)
		if err != nil {
			return false, nil
		}
		return rec.Status == want, nil
	}
}

func TestProcessor_Integration_SuccessAndFailure(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()
	store := newStore(t, s)

	reg := jobstatus.NewRegistry()
	reg.Register("it:ok", func() jobstatus.Job {
		return jobstatus.JobFunc(func(ctx context.Context, tr *jobstatus.Tracker) error {
			return tr.At(ctx, 1, 2, jobstatus.Message("halfway"))
		})
	})
	reg.Register("it:fail", func() jobstatus.Job {
		return jobstatus.JobFunc(func(context.Context, *jobstatus.Tracker) error {
			return errors.New("boom")
		})
	})

	redisOpt := asynq.RedisClientOpt{Addr: s.Addr()}
	processor := NewProcessor(redisOpt, jobstatus.NewRunner(store, reg), ProcessorConfig{
		Concurrency: 5,
		Queues:      map[string]int{jobstatus.DefaultQueue: 1},
	})
	if err := processor.Start(); err != nil {
		t.Fatalf("start processor: %v", err)
	}
	defer processor.Shutdown()

	gw := NewGateway(redisOpt, GatewayOptions{})
	defer gw.Close()
	client := jobstatus.NewClient(store, gw, reg)

	ctx := context.Background()
	okID, err := client.Enqueue(ctx, "it:ok", map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("enqueue ok: %v", err)
	}
	failID, err := client.Enqueue(ctx, "it:fail", map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("enqueue fail: %v", err)
	}

	if err := pollUntil(t, 3*time.Second, hasStatus(ctx, store, okID, jobstatus.StatusCompleted)); err != nil {
		t.Fatalf("ok task did not complete: %v", err)
	}
	if err := pollUntil(t, 3*time.Second, hasStatus(ctx, store, failID, jobstatus.StatusFailed)); err != nil {
		t.Fatalf("fail task did not fail: %v", err)
	}

	rec, err := store.Get(ctx, failID)
	if err != nil {
		t.Fatalf("get failed record: %v", err)
	}
	if rec.Message != "The task failed because of an error: boom" {
		t.Fatalf("unexpected message: %q", rec.Message)
	}
}

func TestGateway_DuplicateUUIDIsVetoed(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()

	gw := NewGateway(asynq.RedisClientOpt{Addr: s.Addr()}, GatewayOptions{})
	defer gw.Close()
	ctx := context.Background()

	ok, err := gw.EnqueueTo(ctx, "statused", "it:ok", "abc", nil)
	if err != nil || !ok {
		t.Fatalf("first enqueue: ok=%v err=%v", ok, err)
	}
	ok, err = gw.EnqueueTo(ctx, "statused", "it:ok", "abc", nil)
	if err != nil || ok {
		t.Fatalf("second enqueue: ok=%v err=%v", ok, err)
	}
}

func TestGateway_GuardVeto(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()
	store := newStore(t, s)

	guard := func(_ context.Context, _, name, _ string, _ map[string]any) (bool, error) {
		return name != "it:blocked", nil
	}
	gw := NewGateway(asynq.RedisClientOpt{Addr: s.Addr()}, GatewayOptions{Guard: guard})
	defer gw.Close()

	reg := jobstatus.NewRegistry()
	noop := func() jobstatus.Job {
		return jobstatus.JobFunc(func(context.Context, *jobstatus.Tracker) error { return nil })
	}
	reg.Register("it:blocked", noop)
	client := jobstatus.NewClient(store, gw, reg)

	ctx := context.Background()
	if _, err := client.Enqueue(ctx, "it:blocked", nil); !errors.Is(err, jobstatus.ErrEnqueueRejected) {
		t.Fatalf("expected ErrEnqueueRejected, got %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("expected no records after veto, got %d", n)
	}
}

func TestGateway_Dequeue(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()

	redisOpt := asynq.RedisClientOpt{Addr: s.Addr()}
	gw := NewGateway(redisOpt, GatewayOptions{})
	defer gw.Close()
	ctx := context.Background()

	if _, err := gw.EnqueueTo(ctx, "statused", "it:ok", "abc", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := gw.Dequeue(ctx, "statused", "it:ok", "abc", nil); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := gw.Dequeue(ctx, "statused", "it:ok", "abc", nil); err != nil {
		t.Fatalf("second dequeue: %v", err)
	}
	if _, err := gw.inspector.GetTaskInfo("statused", "abc"); err == nil {
		t.Fatalf("expected task to be gone")
	}
}
