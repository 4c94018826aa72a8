// Package asynqgw runs tracked jobs on hibiken/asynq. Gateway enqueues with
// the job uuid as the asynq task id; Processor delivers tasks to a
// jobstatus.Runner.
package asynqgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/mohans/jobstatus"
)

// payload is the task body. The task type is the registered job name.
type payload struct {
	UUID    string         `json:"uuid"`
	Options map[string]any `json:"options,omitempty"`
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// Guard can veto an enqueue before it reaches redis.
	Guard jobstatus.Guard
	// MaxRetry is passed to asynq. The runner records a failed status on
	// every failed attempt, so the default is 0.
	MaxRetry int
}

// Gateway implements jobstatus.Gateway on an asynq client and inspector.
type Gateway struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	guard     jobstatus.Guard
	maxRetry  int
}

func NewGateway(redisOpt asynq.RedisConnOpt, opts GatewayOptions) *Gateway {
	return &Gateway{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		guard:     opts.Guard,
		maxRetry:  opts.MaxRetry,
	}
}

// EnqueueTo pushes name as a task on queue. A task with the same uuid still
// held by asynq counts as a veto.
func (g *Gateway) EnqueueTo(ctx context.Context, queue, name, uuid string, options map[string]any) (bool, error) {
	if g.client == nil {
		return false, fmt.Errorf("nil asynq client")
	}
	if g.guard != nil {
		ok, err := g.guard(ctx, queue, name, uuid, options)
		if err != nil || !ok {
			return false, err
		}
	}
	body, err := json.Marshal(payload{UUID: uuid, Options: options})
	if err != nil {
		return false, err
	}
	t := asynq.NewTask(name, body)
	_, err = g.client.EnqueueContext(ctx, t,
		asynq.Queue(queue),
		asynq.TaskID(uuid),
		asynq.MaxRetry(g.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Dequeue deletes the pending task for uuid. A task that is gone is not an
// error; an active one cannot be deleted.
func (g *Gateway) Dequeue(_ context.Context, queue, _, uuid string, _ map[string]any) error {
	err := g.inspector.DeleteTask(queue, uuid)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

func (g *Gateway) Close() error {
	var errs []error
	if g.client != nil {
		errs = append(errs, g.client.Close())
	}
	if g.inspector != nil {
		errs = append(errs, g.inspector.Close())
	}
	return errors.Join(errs...)
}
