// Package runs tracks the simulations of a batch while they execute.
package runs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrRunExists   = errors.New("run already registered")
	ErrRunNotFound = errors.New("run not found")
)

// State is the lifecycle position of one run.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "ok"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Run describes one simulation of a batch.
type Run struct {
	ID      string
	Input   string
	Report  string
	Results string

	State    State
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Event is emitted to subscribers whenever a run changes state.
type Event struct {
	Run Run
}

// Registry is an in-memory, thread-safe store of runs.
type Registry struct {
	mu sync.RWMutex

	runs map[string]*Run

	subs   map[int]func(Event)
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]*Run),
		subs: make(map[int]func(Event)),
	}
}

// Add registers a pending run. It fails if the ID is taken.
func (r *Registry) Add(run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("%w: %q", ErrRunExists, run.ID)
	}
	run.State = Pending
	r.runs[run.ID] = &run
	return nil
}

// Get returns a copy of the run with the given ID.
func (r *Registry) Get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns copies of all runs ordered by ID.
func (r *Registry) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		res = append(res, *run)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Start marks a run as running.
func (r *Registry) Start(id string) error {
	return r.update(id, func(run *Run) {
		run.State = Running
		run.Started = time.Now()
	})
}

// Finish records the outcome of a run.
func (r *Registry) Finish(id string, err error) error {
	return r.update(id, func(run *Run) {
		run.State = Succeeded
		if err != nil {
			run.State = Failed
		}
		run.Err = err
		if !run.Started.IsZero() {
			run.Duration = time.Since(run.Started)
		}
	})
}

// Counts returns the number of runs in each state.
func (r *Registry) Counts() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[State]int, 4)
	for _, run := range r.runs {
		out[run.State]++
	}
	return out
}

func (r *Registry) update(id string, fn func(*Run)) error {
	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	fn(run)
	event := Event{Run: *run}
	subs := make([]func(Event), 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	// Subscribers run outside the lock so they may call back into r.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for run events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}
