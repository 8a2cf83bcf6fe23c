package conversation

import (
	"context"
	"sort"
	"sync"
)

type registryEntry struct {
	controller *Controller
	refs       int
	ready      chan struct{}
	err        error
}

// Registry hands out one shared Controller per inbox. The controller is
// created and loaded for the first observer and closed when the last one
// releases it.
type Registry struct {
	fetcher Fetcher
	options []Option

	mu      sync.Mutex
	closed  bool
	entries map[string]*registryEntry
}

func NewRegistry(fetcher Fetcher, options ...Option) *Registry {
	return &Registry{
		fetcher: fetcher,
		options: options,
		entries: map[string]*registryEntry{},
	}
}

// Observation is one consumer's handle on a shared controller.
type Observation struct {
	registry *Registry
	inboxID  string
	entry    *registryEntry
	once     sync.Once
}

func (o *Observation) Controller() *Controller {
	return o.entry.controller
}

func (o *Observation) View() View {
	return o.entry.controller.View()
}

// Release gives up the observation. It is safe to call more than once.
func (o *Observation) Release() {
	o.once.Do(func() {
		o.registry.release(o.inboxID, o.entry)
	})
}

// Observe returns a handle on the controller for inboxID. Concurrent first
// observers share a single initial load; if that load fails, every one of
// them gets the error and the next Observe starts over.
func (r *Registry) Observe(ctx context.Context, inboxID string) (*Observation, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := r.entries[inboxID]
	if ok {
		e.refs++
		r.mu.Unlock()
	} else {
		e = &registryEntry{
			controller: NewController(inboxID, r.fetcher, r.options...),
			refs:       1,
			ready:      make(chan struct{}),
		}
		r.entries[inboxID] = e
		r.mu.Unlock()

		e.err = e.controller.LoadInitial(ctx)
		if e.err != nil {
			r.mu.Lock()
			if r.entries[inboxID] == e {
				delete(r.entries, inboxID)
			}
			r.mu.Unlock()
		}
		close(e.ready)
	}

	o := &Observation{registry: r, inboxID: inboxID, entry: e}
	select {
	case <-e.ready:
	case <-ctx.Done():
		o.Release()
		return nil, ctx.Err()
	}
	if e.err != nil {
		o.Release()
		return nil, e.err
	}
	return o, nil
}

func (r *Registry) release(inboxID string, e *registryEntry) {
	r.mu.Lock()
	e.refs--
	done := e.refs == 0
	if done && r.entries[inboxID] == e {
		delete(r.entries, inboxID)
	}
	r.mu.Unlock()
	if done {
		e.controller.Close()
	}
}

// Observed lists the inboxes that currently have a controller.
func (r *Registry) Observed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// Close closes every controller. Outstanding observations keep working as
// no-ops and Observe returns ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = map[string]*registryEntry{}
	r.mu.Unlock()

	for _, e := range entries {
		e.controller.Close()
	}
}
