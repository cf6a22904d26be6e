package engine

import (
	"sync"
	"time"
)

// Gate is the shared suppression state between the orchestrator, the change
// processor and the event sources. It also carries the lock that serializes
// every manifest mutation and engine-driven file write.
type Gate struct {
	state sync.Mutex

	mu                     sync.Mutex
	ignoreLocal            int
	lastProcessCompletedAt time.Time
}

// LockState serializes manifest mutations; the reconciler and every
// single-doc action hold it for their full read-modify-write span.
func (g *Gate) LockState()   { g.state.Lock() }
func (g *Gate) UnlockState() { g.state.Unlock() }

// PushIgnoreLocal suppresses watcher events while the engine writes local
// files. Calls nest; every Push is paired with a Pop.
func (g *Gate) PushIgnoreLocal() {
	g.mu.Lock()
	g.ignoreLocal++
	g.mu.Unlock()
}

func (g *Gate) PopIgnoreLocal() {
	g.mu.Lock()
	if g.ignoreLocal > 0 {
		g.ignoreLocal--
	}
	g.mu.Unlock()
}

func (g *Gate) IgnoreLocal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ignoreLocal > 0
}

// MarkProcessCompleted records the end of an engine-driven pass; watcher
// events landing shortly after are treated as echoes.
func (g *Gate) MarkProcessCompleted() {
	g.mu.Lock()
	g.lastProcessCompletedAt = time.Now()
	g.mu.Unlock()
}

// WithinIgnoreWindow reports whether t falls inside window of the last
// completed pass.
func (g *Gate) WithinIgnoreWindow(t time.Time, window time.Duration) bool {
	g.mu.Lock()
	last := g.lastProcessCompletedAt
	g.mu.Unlock()
	if last.IsZero() {
		return false
	}
	delta := t.Sub(last)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}
