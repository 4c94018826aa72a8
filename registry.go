package jobstatus

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultQueue is the queue used by jobs registered without WithQueue.
const DefaultQueue = "statused"

// Factory builds a fresh job instance for one execution.
type Factory func() Job

// Definition describes a registered job type.
type Definition struct {
	Name  string
	Queue string
	New   Factory
}

// DefinitionOption configures a Definition at registration.
type DefinitionOption func(*Definition)

// WithQueue sets the queue Enqueue routes the job to.
func WithQueue(queue string) DefinitionOption {
	return func(d *Definition) { d.Queue = queue }
}

// Registry maps job names to their definitions. It is safe for concurrent
// use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds or replaces the job registered under name.
func (r *Registry) Register(name string, factory Factory, opts ...DefinitionOption) {
	d := &Definition{Name: name, Queue: DefaultQueue, New: factory}
	for _, o := range opts {
		o(d)
	}
	r.mu.Lock()
	r.defs[name] = d
	r.mu.Unlock()
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	d, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok || d.New == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return d, nil
}

// Names returns the registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Queues returns the distinct queues of all registered jobs, sorted.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, d := range r.defs {
		seen[d.Queue] = struct{}{}
	}
	queues := make([]string, 0, len(seen))
	for q := range seen {
		queues = append(queues, q)
	}
	sort.Strings(queues)
	return queues
}
