package proxysel

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync"
)

// StaticSelector maps bot indexes onto a fixed proxy list, round-robin.
// There is no daemon interaction and no cooldown: the bindings are
// precomputed at construction.
type StaticSelector struct {
	bindings []Binding

	mu      sync.Mutex
	current string
}

// NewStaticSelector parses the proxy URL list into bindings. Supported
// schemes: http, https, socks5, socks5h.
func NewStaticSelector(proxyURLs []string) (*StaticSelector, error) {
	if len(proxyURLs) == 0 {
		return nil, fmt.Errorf("proxysel: empty proxy list")
	}

	bindings := make([]Binding, 0, len(proxyURLs))
	for _, raw := range proxyURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proxysel: parse proxy url %q: %w", raw, err)
		}
		b := Binding{Name: u.Host}
		switch u.Scheme {
		case "http", "https":
			b.HTTPProxy = raw
		case "socks5", "socks5h":
			b.SOCKSProxy = raw
		default:
			return nil, fmt.Errorf("proxysel: unsupported proxy scheme %q in %q", u.Scheme, raw)
		}
		bindings = append(bindings, b)
	}
	return &StaticSelector{bindings: bindings}, nil
}

// PickForBot returns the binding at botIndex modulo the list length.
func (s *StaticSelector) PickForBot(_ context.Context, botIndex int) *Binding {
	if botIndex < 0 {
		botIndex = -botIndex
	}
	b := s.bindings[botIndex%len(s.bindings)]

	s.mu.Lock()
	s.current = b.Name
	s.mu.Unlock()
	return &b
}

// PickRandom samples a uniform binding from the list.
func (s *StaticSelector) PickRandom(ctx context.Context) *Binding {
	return s.PickForBot(ctx, rand.IntN(len(s.bindings)))
}

// CurrentName returns the most recently handed-out binding name.
func (s *StaticSelector) CurrentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
