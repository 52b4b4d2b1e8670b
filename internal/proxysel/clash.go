package proxysel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

const (
	defaultClashGroup   = "PROXY"
	defaultCooldown     = 5 * time.Second
	clashRequestTimeout = 10 * time.Second

	// proxyListCacheKey is the single key of the candidate-list cache.
	proxyListCacheKey = "proxies"
	proxyListCacheCap = 8
)

// excludedProxyTypes are meta-selectors/groups and sentinel sinks that can
// never serve as a concrete upstream tunnel.
var excludedProxyTypes = map[string]struct{}{
	"Direct":      {},
	"Reject":      {},
	"Selector":    {},
	"URLTest":     {},
	"Fallback":    {},
	"LoadBalance": {},
}

// ClashSelector drives a local Clash-compatible proxy daemon over its HTTP
// control plane: it samples a live upstream tunnel, switches the daemon's
// selector group to it, and hands out the daemon's local listener pair.
type ClashSelector struct {
	baseURL  string
	secret   string
	group    string
	port     int
	cooldown time.Duration
	httpc    *http.Client

	// candidates caches the daemon's concrete-upstream list between switches
	// so the cooldown window never hits the control plane twice.
	candidates otter.Cache[string, []string]

	mu         sync.Mutex
	current    string
	lastSwitch time.Time
}

// NewClashSelector builds a selector against cfg.ClashAPIURL.
func NewClashSelector(cfg Config) *ClashSelector {
	group := cfg.ClashGroup
	if group == "" {
		group = defaultClashGroup
	}
	cooldown := cfg.SwitchCooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	cache, err := otter.MustBuilder[string, []string](proxyListCacheCap).
		WithTTL(cooldown).
		Build()
	if err != nil {
		panic("proxysel: build candidate cache: " + err.Error())
	}

	return &ClashSelector{
		baseURL:    strings.TrimRight(cfg.ClashAPIURL, "/"),
		secret:     cfg.ClashSecret,
		group:      group,
		port:       cfg.ProxyPort,
		cooldown:   cooldown,
		httpc:      &http.Client{Timeout: clashRequestTimeout},
		candidates: cache,
	}
}

// PickRandom samples a live upstream, switches the daemon to it and returns
// the local listener pair. Returns nil within the switch cooldown, when the
// daemon is unreachable, or when no concrete upstream is live.
func (c *ClashSelector) PickRandom(ctx context.Context) *Binding {
	c.mu.Lock()
	if !c.lastSwitch.IsZero() && time.Since(c.lastSwitch) < c.cooldown {
		c.mu.Unlock()
		return nil
	}
	// Reserve the cooldown window before the control-plane round-trip.
	// Concurrent callers land inside the window and get nil; a failed
	// switch rolls the stamp back.
	prevSwitch := c.lastSwitch
	c.lastSwitch = time.Now()
	current := c.current
	c.mu.Unlock()

	rollback := func() {
		c.mu.Lock()
		c.lastSwitch = prevSwitch
		c.mu.Unlock()
	}

	names, err := c.candidateNames(ctx)
	if err != nil {
		log.Printf("[proxysel] proxy set unavailable: %v", err)
		rollback()
		return nil
	}
	if len(names) == 0 {
		rollback()
		return nil
	}

	chosen := names[rand.IntN(len(names))]
	if chosen == current && len(names) > 1 {
		// Anti-stickiness: resample from the complement.
		others := make([]string, 0, len(names)-1)
		for _, n := range names {
			if n != current {
				others = append(others, n)
			}
		}
		chosen = others[rand.IntN(len(others))]
	}

	if err := c.switchTo(ctx, chosen); err != nil {
		log.Printf("[proxysel] switch to %q failed: %v", chosen, err)
		rollback()
		return nil
	}

	c.mu.Lock()
	c.current = chosen
	c.lastSwitch = time.Now()
	c.mu.Unlock()

	return &Binding{
		Name:       chosen,
		HTTPProxy:  fmt.Sprintf("http://127.0.0.1:%d", c.port),
		SOCKSProxy: fmt.Sprintf("socks5://127.0.0.1:%d", c.port+1),
	}
}

// PickForBot degrades to PickRandom: the daemon exposes one shared local
// listener pair, so per-bot mappings do not apply.
func (c *ClashSelector) PickForBot(ctx context.Context, _ int) *Binding {
	return c.PickRandom(ctx)
}

// CurrentName returns the currently selected upstream name.
func (c *ClashSelector) CurrentName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

type clashProxyEntry struct {
	Type  string `json:"type"`
	Alive *bool  `json:"alive"`
}

type clashProxiesResponse struct {
	Proxies map[string]clashProxyEntry `json:"proxies"`
}

// candidateNames returns the concrete, live upstream names, served from the
// TTL cache when a recent fetch is available.
func (c *ClashSelector) candidateNames(ctx context.Context) ([]string, error) {
	if cached, ok := c.candidates.Get(proxyListCacheKey); ok {
		return cached, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/proxies", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /proxies: status %d", resp.StatusCode)
	}

	var parsed clashProxiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("GET /proxies: decode: %w", err)
	}

	names := make([]string, 0, len(parsed.Proxies))
	for name, entry := range parsed.Proxies {
		if _, excluded := excludedProxyTypes[entry.Type]; excluded {
			continue
		}
		if entry.Alive != nil && !*entry.Alive {
			continue
		}
		names = append(names, name)
	}

	c.candidates.Set(proxyListCacheKey, names)
	return names, nil
}

// switchTo points the daemon's selector group at the chosen upstream.
func (c *ClashSelector) switchTo(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.baseURL+"/proxies/"+c.group, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("PUT /proxies/%s: status %d", c.group, resp.StatusCode)
	}
	return nil
}

func (c *ClashSelector) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	return req, nil
}
