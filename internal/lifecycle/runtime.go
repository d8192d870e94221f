package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// Component is anything with a start/stop lifecycle: workers, sweepers, sinks.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type entry struct {
	name      string
	component Component
}

// Runtime starts components in registration order and stops them in reverse.
// A failed start rolls back the components already started. Errors carry the
// name a component was registered under.
type Runtime struct {
	entries []entry
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

// Register queues a component under a name. Returns the runtime so
// registrations chain. Nil components are ignored.
func (r *Runtime) Register(name string, component Component) *Runtime {
	if component == nil {
		return r
	}
	r.entries = append(r.entries, entry{name: name, component: component})
	return r
}

func (r *Runtime) Start(ctx context.Context) error {
	for i, e := range r.entries {
		if err := e.component.Start(ctx); err != nil {
			_ = stopAll(ctx, r.entries[:i])
			return fmt.Errorf("start %s: %w", e.name, err)
		}
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return stopAll(ctx, r.entries)
}

func stopAll(ctx context.Context, entries []entry) error {
	var stopErr error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", e.name, err))
		}
	}
	return stopErr
}
