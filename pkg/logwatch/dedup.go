package logwatch

import "sync"

// dedupGate suppresses re-processing of a log record that was already
// merged. Record timestamps are compared as opaque strings; the producer
// writes them in a fixed format, so equality is the only test we need.
type dedupGate struct {
	mu   sync.Mutex
	last string
}

// accept reports whether ts is a new record timestamp. The gate advances
// before the caller merges, so a failed merge will not see the same
// record again.
func (g *dedupGate) accept(ts string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ts == g.last {
		return false
	}

	g.last = ts

	return true
}

func (g *dedupGate) current() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.last
}
