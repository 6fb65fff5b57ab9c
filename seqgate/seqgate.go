// Package seqgate implements the generation-token pattern: a monotonic
// counter issued per request group, where a response is applied only if
// its token still matches the latest issued one. The same primitive backs
// discard-stale-async-results in the UI and process-terminal-events-once
// in the session controller.
package seqgate

import "sync"

// Gate issues generation tokens and validates them. The zero value is
// ready to use.
type Gate struct {
	mu     sync.Mutex
	latest uint64
}

// Next issues a new generation token, invalidating all earlier ones.
func (g *Gate) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest++
	return g.latest
}

// Current returns the latest issued token without issuing a new one.
func (g *Gate) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest
}

// Accept reports whether the token is still the latest. Stale responses
// must be discarded by the caller.
func (g *Gate) Accept(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token == g.latest
}

// Once tracks the last processed key and admits each key exactly once,
// regardless of how many times it is observed. It is the idempotence
// guard for terminal run events.
type Once[K comparable] struct {
	mu   sync.Mutex
	seen map[K]struct{}
}

// First reports true the first time key is observed, false afterwards.
func (o *Once[K]) First(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = make(map[K]struct{})
	}
	if _, dup := o.seen[key]; dup {
		return false
	}
	o.seen[key] = struct{}{}
	return true
}
