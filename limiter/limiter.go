// Package limiter keeps one token bucket per identity (API key, client IP,
// Telegram chat) and evicts buckets that have gone idle.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Registry hands out per-identity token buckets. It is safe for concurrent use.
type Registry struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New creates a Registry whose buckets refill at rps and hold burst tokens.
// Buckets unused for idle are dropped by Sweep.
func New(rps float64, burst int, idle time.Duration) *Registry {
	if burst < 1 {
		burst = 1
	}
	return &Registry{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow reports whether identity may proceed now, consuming a token if so.
func (r *Registry) Allow(identity string) bool {
	return r.get(identity).AllowN(r.now(), 1)
}

// RetryAfter returns how long identity must wait for its next token.
func (r *Registry) RetryAfter(identity string) time.Duration {
	lim := r.get(identity)
	now := r.now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return 0
	}
	d := res.DelayFrom(now)
	res.CancelAt(now)
	return d
}

func (r *Registry) get(identity string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.entries[identity] = e
	}
	e.lastSeen = r.now()
	return e.limiter
}

// Len returns the number of tracked identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops buckets not used within the idle window.
func (r *Registry) Sweep() {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}

// SweepEvery runs Sweep on interval until done is closed.
func (r *Registry) SweepEvery(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
