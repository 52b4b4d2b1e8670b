// Package proxysel assigns egress proxy bindings to bots. Three backends
// implement the same capability: a Clash-style control-plane daemon, a
// static proxy list, and none (direct connection). All failures are
// non-fatal: an unavailable selector yields a nil binding and the caller
// connects directly.
package proxysel

import (
	"context"
	"time"
)

// Binding is the egress assignment for one session: local or upstream
// listener URLs plus the upstream's display name. At least one of HTTPProxy
// and SOCKSProxy is set.
type Binding struct {
	Name       string
	HTTPProxy  string
	SOCKSProxy string
}

// Selector picks egress bindings. Implementations are safe for concurrent
// use by many bots.
type Selector interface {
	// PickRandom returns a binding suitable for a fresh session, or nil when
	// none is available (daemon unreachable, empty candidate set, or switch
	// cooldown active).
	PickRandom(ctx context.Context) *Binding
	// PickForBot returns the binding for a specific bot index. Backends
	// without per-bot mappings fall back to PickRandom.
	PickForBot(ctx context.Context, botIndex int) *Binding
	// CurrentName returns the currently selected upstream name, or "".
	CurrentName() string
}

// Config selects and parameterizes a backend. Clash mode wins when
// ClashAPIURL is set; otherwise static mode when ProxyList is non-empty;
// otherwise none.
type Config struct {
	ClashAPIURL    string
	ClashSecret    string
	ClashGroup     string // selector group to switch; default "PROXY"
	ProxyPort      int    // local HTTP listener port; SOCKS is port+1
	SwitchCooldown time.Duration
	ProxyList      []string
}

// New builds the Selector for cfg.
func New(cfg Config) (Selector, error) {
	if cfg.ClashAPIURL != "" {
		return NewClashSelector(cfg), nil
	}
	if len(cfg.ProxyList) > 0 {
		return NewStaticSelector(cfg.ProxyList)
	}
	return NoneSelector{}, nil
}

// NoneSelector always yields a direct connection.
type NoneSelector struct{}

// PickRandom returns nil: direct connection.
func (NoneSelector) PickRandom(context.Context) *Binding { return nil }

// PickForBot returns nil: direct connection.
func (NoneSelector) PickForBot(context.Context, int) *Binding { return nil }

// CurrentName returns "".
func (NoneSelector) CurrentName() string { return "" }
