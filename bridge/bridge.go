// Package bridge injects small scripts into the page's privileged
// execution world and relays their data back over a narrow channel. Each
// bridge carries its own injection guard instance, so "never double
// inject" holds per page attachment without any global state: a fresh
// attachment gets a fresh bridge and a fresh guard.
package bridge

import "sync"

// guard is the idempotent injection latch. Enter reports whether the
// caller is the first; Reset re-arms it after teardown.
type guard struct {
	mu       sync.Mutex
	injected bool
}

func (g *guard) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.injected {
		return false
	}
	g.injected = true
	return true
}

func (g *guard) reset() {
	g.mu.Lock()
	g.injected = false
	g.mu.Unlock()
}
