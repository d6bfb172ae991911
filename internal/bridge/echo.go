package bridge

import (
	"sync"
	"time"
)

// echoTTL bounds how long a registered publish waits for its reflection.
// Entries the transport never reflects back expire instead of accumulating.
const echoTTL = 10 * time.Second

// echoSweepSize is the pending-entry count that triggers a full expiry sweep.
const echoSweepSize = 1024

// echoGuard tracks names the bridge itself just published on one transport,
// so the opposite pipeline can tell the bridge's own output apart from
// genuine traffic in the same space. Unidirectional rules are protected by
// pattern disjointness at validation time; a bidirectional rule relays into
// the very hierarchy it ingests from, so its reflections can only be caught
// per message. Suppression is counted: each registered publish absorbs
// exactly one inbound occurrence of the same name.
type echoGuard struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string][]time.Time
}

func newEchoGuard() *echoGuard {
	return &echoGuard{
		now:     time.Now,
		pending: make(map[string][]time.Time),
	}
}

// register records one publish of name whose reflection should be ignored.
func (g *echoGuard) register(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pending) > echoSweepSize {
		g.sweep()
	}
	g.pending[name] = append(g.prune(g.pending[name]), g.now())
}

// observe reports whether an inbound name is the reflection of a registered
// publish, consuming one registration when it is.
func (g *echoGuard) observe(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := g.prune(g.pending[name])
	switch len(live) {
	case 0:
		delete(g.pending, name)
		return false
	case 1:
		delete(g.pending, name)
	default:
		g.pending[name] = live[1:]
	}
	return true
}

func (g *echoGuard) prune(times []time.Time) []time.Time {
	cutoff := g.now().Add(-echoTTL)
	for len(times) > 0 && times[0].Before(cutoff) {
		times = times[1:]
	}
	return times
}

func (g *echoGuard) sweep() {
	for name, times := range g.pending {
		live := g.prune(times)
		if len(live) == 0 {
			delete(g.pending, name)
		} else {
			g.pending[name] = live
		}
	}
}
