package controller

import "sync"

// readyTracker keeps edge-accurate readiness and first-attempt bookkeeping
// for the fleet. Bot events are edge-triggered, so ready is a plain per-bot
// flag; attempted is sticky and marks that a bot's first login cycle reached
// a terminal outcome (ready, login abandoned, or GC budget exhausted).
// serviceEdge is the aggregate readiness transition produced by one per-bot
// readiness update.
type serviceEdge int

const (
	edgeNone serviceEdge = iota
	// edgeReady fires when a bot turns ready while no other bot is ready.
	edgeReady
	// edgeUnready fires when the last ready bot is lost.
	edgeUnready
)

type readyTracker struct {
	mu           sync.Mutex
	ready        map[int]bool
	attempted    map[int]bool
	total        int
	serviceReady bool
	changed      chan struct{}
}

func newReadyTracker() *readyTracker {
	return &readyTracker{
		ready:     make(map[int]bool),
		attempted: make(map[int]bool),
		changed:   make(chan struct{}),
	}
}

func (t *readyTracker) register() {
	t.mu.Lock()
	t.total++
	t.broadcastLocked()
	t.mu.Unlock()
}

// setReady records one bot's readiness flag and returns the aggregate edge
// it produced, if any. Edge detection happens under the tracker mutex, so
// concurrent per-bot updates yield exactly one edge per aggregate transition.
func (t *readyTracker) setReady(index int, ready bool) serviceEdge {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ready[index] = ready
	if ready {
		t.attempted[index] = true
	}

	anyReady := false
	for _, r := range t.ready {
		if r {
			anyReady = true
			break
		}
	}

	edge := edgeNone
	if anyReady != t.serviceReady {
		t.serviceReady = anyReady
		if anyReady {
			edge = edgeReady
		} else {
			edge = edgeUnready
		}
	}

	t.broadcastLocked()
	return edge
}

// serviceIsReady reports the latched aggregate readiness flag.
func (t *readyTracker) serviceIsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serviceReady
}

func (t *readyTracker) setAttempted(index int) {
	t.mu.Lock()
	t.attempted[index] = true
	t.broadcastLocked()
	t.mu.Unlock()
}

func (t *readyTracker) readyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.ready {
		if r {
			n++
		}
	}
	return n
}

// snapshot returns the ready count, whether every registered bot has a
// terminal first-login outcome, and a channel closed on the next change.
func (t *readyTracker) snapshot() (ready int, allAttempted bool, changed <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.ready {
		if r {
			ready++
		}
	}
	allAttempted = t.total > 0 && len(t.attempted) >= t.total
	return ready, allAttempted, t.changed
}

// broadcastLocked wakes every waiter by closing the current change channel
// and replacing it.
func (t *readyTracker) broadcastLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}
