package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// ActionFunc handles one named action on a topic. conn is the requesting
// connection, for replies that should not be broadcast.
type ActionFunc func(ctx context.Context, conn *Conn, data json.RawMessage) error

// TopicHandler is a static registration record for one named unit of
// realtime functionality. Immutable after registration.
type TopicHandler struct {
	Name string

	// Actions maps declared action names to their handlers. A client action
	// is invoked if and only if it appears here.
	Actions map[string]ActionFunc

	// Snapshot returns the payload sent on (re)subscribe. Optional.
	Snapshot func(ctx context.Context) (any, error)

	// Setup is invoked once at hub startup and returns a teardown callback.
	// Optional.
	Setup func(ctx context.Context, h *Hub) (func(), error)
}

// Registry holds the process-wide set of topic handlers, populated once at
// startup and torn down once at shutdown.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*TopicHandler
	order    []string

	teardowns    []func()
	teardownOnce sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]*TopicHandler),
	}
}

func (r *Registry) Register(th *TopicHandler) error {
	if th.Name == "" {
		return fmt.Errorf("topic handler needs a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[th.Name]; exists {
		return fmt.Errorf("topic %q already registered", th.Name)
	}
	r.handlers[th.Name] = th
	r.order = append(r.order, th.Name)
	return nil
}

func (r *Registry) Get(name string) (*TopicHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	th, ok := r.handlers[name]
	return th, ok
}

// Setup runs every handler's setup in registration order and records the
// teardowns. A failing setup is logged and skipped; the rest still run.
func (r *Registry) Setup(ctx context.Context, h *Hub) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		th, _ := r.Get(name)
		if th.Setup == nil {
			continue
		}
		teardown, err := th.Setup(ctx, h)
		if err != nil {
			log.Printf("topic %s setup: %v", name, err)
			continue
		}
		if teardown != nil {
			r.mu.Lock()
			r.teardowns = append(r.teardowns, teardown)
			r.mu.Unlock()
		}
	}
}

// Teardown invokes every recorded teardown exactly once, in reverse order.
// Safe to call even when some setups never completed.
func (r *Registry) Teardown() {
	r.teardownOnce.Do(func() {
		r.mu.Lock()
		teardowns := r.teardowns
		r.teardowns = nil
		r.mu.Unlock()
		for i := len(teardowns) - 1; i >= 0; i-- {
			teardowns[i]()
		}
	})
}
