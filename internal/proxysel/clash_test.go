package proxysel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClash struct {
	mu           sync.Mutex
	proxies      map[string]clashProxyEntry
	switches     []string
	auth         []string
	failSwitches bool
}

func (f *fakeClash) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /proxies", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		proxies := f.proxies
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(clashProxiesResponse{Proxies: proxies})
	})
	mux.HandleFunc("PUT /proxies/{group}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		fail := f.failSwitches
		if !fail {
			f.switches = append(f.switches, r.PathValue("group")+"="+body.Name)
		}
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func boolPtr(b bool) *bool { return &b }

func newTestClash(t *testing.T, daemon *fakeClash) *ClashSelector {
	t.Helper()
	srv := httptest.NewServer(daemon.handler())
	t.Cleanup(srv.Close)
	return NewClashSelector(Config{
		ClashAPIURL:    srv.URL,
		ClashSecret:    "s3cret",
		ProxyPort:      7890,
		SwitchCooldown: 5 * time.Second,
	})
}

func livePool() map[string]clashProxyEntry {
	return map[string]clashProxyEntry{
		"PROXY":    {Type: "Selector"},
		"auto":     {Type: "URLTest"},
		"fallback": {Type: "Fallback"},
		"balance":  {Type: "LoadBalance"},
		"DIRECT":   {Type: "Direct"},
		"REJECT":   {Type: "Reject"},
		"jp-1":     {Type: "Shadowsocks", Alive: boolPtr(true)},
		"de-2":     {Type: "Vmess"}, // no liveness flag: kept
		"us-dead":  {Type: "Trojan", Alive: boolPtr(false)},
	}
}

func TestClashSelector_FiltersCandidates(t *testing.T) {
	c := newTestClash(t, &fakeClash{proxies: livePool()})

	names, err := c.candidateNames(context.Background())
	if err != nil {
		t.Fatalf("candidateNames: %v", err)
	}
	got := map[string]bool{}
	for _, n := range names {
		got[n] = true
	}
	if len(got) != 2 || !got["jp-1"] || !got["de-2"] {
		t.Fatalf("candidates = %v, want jp-1 and de-2 only", names)
	}
}

func TestClashSelector_PickSwitchesAndBinds(t *testing.T) {
	daemon := &fakeClash{proxies: livePool()}
	c := newTestClash(t, daemon)

	b := c.PickRandom(context.Background())
	if b == nil {
		t.Fatal("expected a binding")
	}
	if b.Name != "jp-1" && b.Name != "de-2" {
		t.Fatalf("unexpected upstream %q", b.Name)
	}
	if b.HTTPProxy != "http://127.0.0.1:7890" || b.SOCKSProxy != "socks5://127.0.0.1:7891" {
		t.Fatalf("listener pair = %q / %q", b.HTTPProxy, b.SOCKSProxy)
	}
	if c.CurrentName() != b.Name {
		t.Fatalf("CurrentName = %q, want %q", c.CurrentName(), b.Name)
	}

	daemon.mu.Lock()
	defer daemon.mu.Unlock()
	if len(daemon.switches) != 1 || daemon.switches[0] != "PROXY="+b.Name {
		t.Fatalf("switches = %v", daemon.switches)
	}
	if len(daemon.auth) == 0 || daemon.auth[0] != "Bearer s3cret" {
		t.Fatalf("auth headers = %v", daemon.auth)
	}
}

func TestClashSelector_SwitchCooldown(t *testing.T) {
	c := newTestClash(t, &fakeClash{proxies: livePool()})

	if b := c.PickRandom(context.Background()); b == nil {
		t.Fatal("first pick should succeed")
	}
	if b := c.PickRandom(context.Background()); b != nil {
		t.Fatalf("pick within cooldown should return nil, got %+v", b)
	}

	// Age the last switch past the cooldown; the third pick succeeds.
	c.mu.Lock()
	c.lastSwitch = time.Now().Add(-6 * time.Second)
	c.mu.Unlock()
	if b := c.PickRandom(context.Background()); b == nil {
		t.Fatal("pick after cooldown should succeed")
	}
}

func TestClashSelector_AntiStickiness(t *testing.T) {
	c := newTestClash(t, &fakeClash{proxies: livePool()})

	prev := ""
	for i := 0; i < 8; i++ {
		c.mu.Lock()
		c.lastSwitch = time.Time{}
		c.mu.Unlock()

		b := c.PickRandom(context.Background())
		if b == nil {
			t.Fatal("expected a binding")
		}
		if b.Name == prev {
			t.Fatalf("pick %d returned the current upstream %q again", i, prev)
		}
		prev = b.Name
	}
}

func TestClashSelector_DaemonUnreachable(t *testing.T) {
	c := NewClashSelector(Config{
		ClashAPIURL: "http://127.0.0.1:1", // nothing listens here
		ProxyPort:   7890,
	})
	if b := c.PickRandom(context.Background()); b != nil {
		t.Fatalf("unreachable daemon must yield nil, got %+v", b)
	}
}

func TestClashSelector_EmptyCandidateSet(t *testing.T) {
	c := newTestClash(t, &fakeClash{proxies: map[string]clashProxyEntry{
		"PROXY":  {Type: "Selector"},
		"DIRECT": {Type: "Direct"},
	}})
	if b := c.PickRandom(context.Background()); b != nil {
		t.Fatalf("empty candidate set must yield nil, got %+v", b)
	}
}

func TestClashSelector_ConcurrentPicksSwitchOnce(t *testing.T) {
	daemon := &fakeClash{proxies: livePool()}
	c := newTestClash(t, daemon)

	const callers = 8
	var wg sync.WaitGroup
	bindings := make(chan *Binding, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bindings <- c.PickRandom(context.Background())
		}()
	}
	wg.Wait()
	close(bindings)

	got := 0
	for b := range bindings {
		if b != nil {
			got++
		}
	}
	if got != 1 {
		t.Fatalf("non-nil bindings = %d, want 1", got)
	}

	daemon.mu.Lock()
	defer daemon.mu.Unlock()
	if len(daemon.switches) != 1 {
		t.Fatalf("switch commands = %v, want exactly one", daemon.switches)
	}
}

func TestClashSelector_FailedSwitchReleasesCooldown(t *testing.T) {
	daemon := &fakeClash{proxies: livePool(), failSwitches: true}
	c := newTestClash(t, daemon)

	if b := c.PickRandom(context.Background()); b != nil {
		t.Fatalf("binding from failed switch = %+v", b)
	}

	daemon.mu.Lock()
	daemon.failSwitches = false
	daemon.mu.Unlock()

	if b := c.PickRandom(context.Background()); b == nil {
		t.Fatal("retry after failed switch blocked by cooldown")
	}
}
