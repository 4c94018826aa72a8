package jobstatus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Gateway is the queue a Client pushes tracked jobs through. Its worker
// side delivers each job to Runner.Perform.
type Gateway interface {
	// EnqueueTo pushes one invocation. false with a nil error is a veto.
	EnqueueTo(ctx context.Context, queue, name, uuid string, options map[string]any) (bool, error)
	// Dequeue removes a not yet started invocation. Removing one that is
	// not queued is a no-op.
	Dequeue(ctx context.Context, queue, name, uuid string, options map[string]any) error
}

// Guard runs before a gateway enqueues a job. Returning false vetoes the
// enqueue.
type Guard func(ctx context.Context, queue, name, uuid string, options map[string]any) (bool, error)

// NewUUID returns a random id as 32 lowercase hex characters.
func NewUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets a custom logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Client creates status records and enqueues the matching jobs.
type Client struct {
	store    *Store
	gateway  Gateway
	registry *Registry
	logger   *slog.Logger
}

// NewClient creates a Client.
func NewClient(store *Store, gateway Gateway, registry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		store:    store,
		gateway:  gateway,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store returns the status store the client writes to.
func (c *Client) Store() *Store { return c.store }

// Create enqueues name on its registered queue and returns the new uuid.
func (c *Client) Create(ctx context.Context, name string, options map[string]any) (string, error) {
	return c.Enqueue(ctx, name, options)
}

// Enqueue enqueues name on its registered queue and returns the new uuid.
func (c *Client) Enqueue(ctx context.Context, name string, options map[string]any) (string, error) {
	def, err := c.registry.Lookup(name)
	if err != nil {
		return "", err
	}
	return c.EnqueueTo(ctx, def.Queue, name, options)
}

// EnqueueTo creates a queued record and enqueues name on queue. When the
// gateway vetoes or fails, the record is removed again and
// ErrEnqueueRejected or the gateway error is returned.
func (c *Client) EnqueueTo(ctx context.Context, queue, name string, options map[string]any) (string, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return "", err
	}
	id := NewUUID()
	if _, err := c.store.Create(ctx, id, WithOptions(options)); err != nil {
		return "", err
	}

	ok, err := c.gateway.EnqueueTo(ctx, queue, name, id, options)
	if err == nil && ok {
		return id, nil
	}
	if rerr := c.store.Remove(ctx, id); rerr != nil {
		c.logger.Warn("remove rejected status",
			slog.String("uuid", id),
			slog.String("error", rerr.Error()),
		)
	}
	if err != nil {
		return "", fmt.Errorf("jobstatus: enqueue %s: %w", name, err)
	}
	c.logger.Debug("enqueue vetoed",
		slog.String("job_name", name),
		slog.String("queue", queue),
	)
	return "", ErrEnqueueRejected
}

// Dequeue removes the queued invocation of name for uuid, identified by the
// options stored on its record.
func (c *Client) Dequeue(ctx context.Context, name, uuid string) error {
	def, err := c.registry.Lookup(name)
	if err != nil {
		return err
	}
	rec, err := c.store.Get(ctx, uuid)
	if err != nil {
		return err
	}
	if err := c.gateway.Dequeue(ctx, def.Queue, name, uuid, rec.Options); err != nil {
		return fmt.Errorf("jobstatus: dequeue %s: %w", name, err)
	}
	return nil
}
