// Package redisqueue is a Resque-compatible job queue on redis lists. Jobs
// are stored as {"class": name, "args": [uuid, options]} in
// <namespace>:queue:<name>, so Resque workers and dashboards can share the
// queues.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"

	"github.com/mohans/jobstatus"
)

const defaultNamespace = "resque"

// Option configures a Queue.
type Option func(*Queue)

// WithNamespace sets the key prefix. Defaults to "resque".
func WithNamespace(ns string) Option {
	return func(q *Queue) { q.namespace = ns }
}

// WithGuard sets a hook that can veto enqueues.
func WithGuard(g jobstatus.Guard) Option {
	return func(q *Queue) { q.guard = g }
}

// Job is one queued invocation.
type Job struct {
	Queue   string
	Class   string
	UUID    string
	Options map[string]any
}

type wireJob struct {
	Class string `json:"class"`
	Args  []any  `json:"args"`
}

// Queue implements jobstatus.Gateway on redis lists.
type Queue struct {
	client    redis.Cmdable
	namespace string
	guard     jobstatus.Guard
}

// New creates a Queue on client.
func New(client redis.Cmdable, opts ...Option) *Queue {
	q := &Queue{client: client, namespace: defaultNamespace}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) queueKey(name string) string { return q.namespace + ":queue:" + name }
func (q *Queue) queuesKey() string           { return q.namespace + ":queues" }

// EnqueueTo appends the job to queue.
func (q *Queue) EnqueueTo(ctx context.Context, queue, name, uuid string, options map[string]any) (bool, error) {
	if q.guard != nil {
		ok, err := q.guard(ctx, queue, name, uuid, options)
		if err != nil || !ok {
			return false, err
		}
	}
	body, err := encodeJob(name, uuid, options)
	if err != nil {
		return false, err
	}
	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, q.queuesKey(), queue)
	pipe.RPush(ctx, q.queueKey(queue), body)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redisqueue: enqueue: %w", err)
	}
	return true, nil
}

// Dequeue removes every queued copy of the invocation. Options must match
// what was enqueued.
func (q *Queue) Dequeue(ctx context.Context, queue, name, uuid string, options map[string]any) error {
	body, err := encodeJob(name, uuid, options)
	if err != nil {
		return err
	}
	if err := q.client.LRem(ctx, q.queueKey(queue), 0, body).Err(); err != nil {
		return fmt.Errorf("redisqueue: dequeue: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for a job on any of queues, checked in order.
// It returns nil, nil when the timeout passes.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (*Job, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}
	res, err := q.client.BLPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisqueue: pop: %w", err)
	}
	job, err := decodeJob([]byte(res[1]))
	if err != nil {
		return nil, err
	}
	job.Queue = res[0][len(q.queueKey("")):]
	return job, nil
}

// Size returns the number of jobs waiting on queue.
func (q *Queue) Size(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, q.queueKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisqueue: size: %w", err)
	}
	return n, nil
}

// Queues lists the known queue names.
func (q *Queue) Queues(ctx context.Context) ([]string, error) {
	names, err := q.client.SMembers(ctx, q.queuesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisqueue: queues: %w", err)
	}
	return names, nil
}

func encodeJob(name, uuid string, options map[string]any) ([]byte, error) {
	if options == nil {
		options = map[string]any{}
	}
	body, err := json.Marshal(wireJob{Class: name, Args: []any{uuid, options}})
	if err != nil {
		return nil, fmt.Errorf("redisqueue: encode job: %w", err)
	}
	return body, nil
}

func decodeJob(data []byte) (*Job, error) {
	var w wireJob
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("redisqueue: decode job: %w", err)
	}
	job := &Job{Class: w.Class}
	if len(w.Args) > 0 {
		job.UUID = cast.ToString(w.Args[0])
	}
	if len(w.Args) > 1 {
		opts, err := cast.ToStringMapE(w.Args[1])
		if err != nil {
			return nil, fmt.Errorf("redisqueue: decode job options: %w", err)
		}
		job.Options = opts
	}
	return job, nil
}
