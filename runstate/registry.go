// Package runstate is the keyed store of live and finished agent runs.
// There is no implicit global registry: callers construct one and pass it
// explicitly to whoever consumes run updates.
package runstate

import (
	"sync"

	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/protocol"
)

// Update notifies a subscriber that the run with the given ID changed.
// Subscribers read the current state back through Get.
type Update struct {
	RunID protocol.RunID
}

// Registry stores runs keyed by run ID and fans out change notifications.
type Registry struct {
	mu          sync.RWMutex
	runs        map[protocol.RunID]*protocol.Run
	subscribers []chan Update
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[protocol.RunID]*protocol.Run)}
}

// Get returns a snapshot of the run, and whether it exists. The snapshot
// owns its message slice and is safe to keep.
func (r *Registry) Get(id protocol.RunID) (protocol.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return protocol.Run{}, false
	}
	return run.Clone(), true
}

// Put inserts or replaces a run record and notifies subscribers.
func (r *Registry) Put(run protocol.Run) {
	r.mu.Lock()
	cp := run.Clone()
	r.runs[run.ID] = &cp
	r.mu.Unlock()
	r.notify(run.ID)
}

// Append adds a message to a run's stream. Appends to terminal runs are
// rejected: a run is never mutated after leaving the running state.
func (r *Registry) Append(id protocol.RunID, msg protocol.Message) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok || run.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}
	run.Messages = append(run.Messages, msg)
	r.mu.Unlock()
	r.notify(id)
	return true
}

// SetStatus transitions a run's status. Transitions out of a terminal
// status are ignored.
func (r *Registry) SetStatus(id protocol.RunID, status protocol.RunStatus) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok || run.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}
	run.Status = status
	r.mu.Unlock()
	r.notify(id)
	return true
}

// Patch applies fn to the run under the lock, for metadata that arrives
// mid-stream (session ID, usage, cost). Terminal runs are not patched.
func (r *Registry) Patch(id protocol.RunID, fn func(*protocol.Run)) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	if !ok || run.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}
	fn(run)
	r.mu.Unlock()
	r.notify(id)
	return true
}

// Subscribe returns a channel of run-change notifications. The channel is
// bounded; when a subscriber falls behind, updates for it are dropped with
// a warning rather than blocking writers.
func (r *Registry) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	r.mu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.mu.Unlock()
	return ch
}

func (r *Registry) notify(id protocol.RunID) {
	r.mu.RLock()
	subs := r.subscribers
	r.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- Update{RunID: id}:
		default:
			logging.Warnf("run registry: subscriber full, dropping update for run %s", id)
		}
	}
}
