// Package metrics holds hot-path counters for the inspect service.
package metrics

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Collector holds atomic counters for global and per-account metrics.
// All fields are updated lock-free; Snapshot is safe to call concurrently.
type Collector struct {
	global  *counters
	account *xsync.Map[string, *counters]
}

// counters holds atomic counters for one measurement scope.
type counters struct {
	inspectRequests atomic.Int64
	inspectOK       atomic.Int64
	inspectTTL      atomic.Int64
	inspectErrors   atomic.Int64
	invalidLinks    atomic.Int64
	noBots          atomic.Int64
	readyEdges      atomic.Int64
	unreadyEdges    atomic.Int64
	loginFailures   atomic.Int64
	gcGiveUps       atomic.Int64
}

// CountersSnapshot is a point-in-time snapshot of one scope's counters.
type CountersSnapshot struct {
	InspectRequests int64 `json:"inspectRequests"`
	InspectOK       int64 `json:"inspectOk"`
	InspectTTL      int64 `json:"inspectTtl"`
	InspectErrors   int64 `json:"inspectErrors"`
	InvalidLinks    int64 `json:"invalidLinks"`
	NoBots          int64 `json:"noBotsAvailable"`
	ReadyEdges      int64 `json:"readyEdges"`
	UnreadyEdges    int64 `json:"unreadyEdges"`
	LoginFailures   int64 `json:"loginFailures"`
	GCGiveUps       int64 `json:"gcReconnectFailures"`
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		global:  &counters{},
		account: xsync.NewMap[string, *counters](),
	}
}

func (c *Collector) forAccount(username string) *counters {
	if username == "" {
		return nil
	}
	got, _ := c.account.LoadOrCompute(username, func() (*counters, bool) {
		return &counters{}, false
	})
	return got
}

func (c *Collector) bump(username string, f func(*counters)) {
	f(c.global)
	if a := c.forAccount(username); a != nil {
		f(a)
	}
}

// IncInspectRequest counts one dispatched inspect request.
func (c *Collector) IncInspectRequest(username string) {
	c.bump(username, func(x *counters) { x.inspectRequests.Add(1) })
}

// IncInspectOK counts one answered inspect.
func (c *Collector) IncInspectOK(username string) {
	c.bump(username, func(x *counters) { x.inspectOK.Add(1) })
}

// IncInspectTTL counts one request the GC never answered in time.
func (c *Collector) IncInspectTTL(username string) {
	c.bump(username, func(x *counters) { x.inspectTTL.Add(1) })
}

// IncInspectError counts one failed inspect (other than TTL).
func (c *Collector) IncInspectError(username string) {
	c.bump(username, func(x *counters) { x.inspectErrors.Add(1) })
}

// IncInvalidLink counts one rejected inspect URL.
func (c *Collector) IncInvalidLink() {
	c.global.invalidLinks.Add(1)
}

// IncNoBots counts one dispatch attempt with no ready idle bot.
func (c *Collector) IncNoBots() {
	c.global.noBots.Add(1)
}

// IncReadyEdge counts one bot transition into the ready state.
func (c *Collector) IncReadyEdge(username string) {
	c.bump(username, func(x *counters) { x.readyEdges.Add(1) })
}

// IncUnreadyEdge counts one bot transition out of the ready state.
func (c *Collector) IncUnreadyEdge(username string) {
	c.bump(username, func(x *counters) { x.unreadyEdges.Add(1) })
}

// IncLoginFailure counts one abandoned login.
func (c *Collector) IncLoginFailure(username string) {
	c.bump(username, func(x *counters) { x.loginFailures.Add(1) })
}

// IncGCGiveUp counts one exhausted GC reconnect budget.
func (c *Collector) IncGCGiveUp(username string) {
	c.bump(username, func(x *counters) { x.gcGiveUps.Add(1) })
}

// Snapshot returns the global counters.
func (c *Collector) Snapshot() CountersSnapshot {
	return snapshot(c.global)
}

// AccountSnapshots returns per-account counters keyed by username.
func (c *Collector) AccountSnapshots() map[string]CountersSnapshot {
	out := make(map[string]CountersSnapshot)
	c.account.Range(func(username string, x *counters) bool {
		out[username] = snapshot(x)
		return true
	})
	return out
}

func snapshot(x *counters) CountersSnapshot {
	return CountersSnapshot{
		InspectRequests: x.inspectRequests.Load(),
		InspectOK:       x.inspectOK.Load(),
		InspectTTL:      x.inspectTTL.Load(),
		InspectErrors:   x.inspectErrors.Load(),
		InvalidLinks:    x.invalidLinks.Load(),
		NoBots:          x.noBots.Load(),
		ReadyEdges:      x.readyEdges.Load(),
		UnreadyEdges:    x.unreadyEdges.Load(),
		LoginFailures:   x.loginFailures.Load(),
		GCGiveUps:       x.gcGiveUps.Load(),
	}
}
