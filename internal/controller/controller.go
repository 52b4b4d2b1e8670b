// Package controller owns the bot fleet: it registers bots, tracks their
// readiness, dispatches inspect requests to an idle ready bot, and gates
// startup on the fleet's first login outcomes.
package controller

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/floatrig/floatrig/internal/bot"
	"github.com/floatrig/floatrig/internal/inspect"
	"github.com/floatrig/floatrig/internal/proxysel"
	"github.com/floatrig/floatrig/internal/steam"
)

// ErrNoBotsAvailable is returned when no registered bot is both ready and
// idle at dispatch time.
var ErrNoBotsAvailable = errors.New("controller: no bots available")

var dispatchRNGPool = sync.Pool{
	New: func() any {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	},
}

// Config wires the controller's collaborators. NewSession and Settings are
// handed to every bot it creates.
type Config struct {
	NewSession steam.Factory
	Selector   proxysel.Selector
	Settings   bot.Settings
	// OnEvent, when set, observes every bot event after the controller has
	// updated its own bookkeeping. Same contract as bot.EventFunc.
	OnEvent bot.EventFunc
	// OnResult, when set, observes the outcome of every dispatched inspect.
	// info is nil when err is non-nil. Called synchronously on the request
	// path; implementations must not block.
	OnResult ResultFunc
	// OnServiceEvent, when set, observes aggregate readiness edges: true
	// when a bot turns ready while the service is unready, false when the
	// last ready bot is lost. Fires exactly once per transition.
	OnServiceEvent func(ready bool)
}

// ResultFunc receives the outcome of one inspect dispatched to a bot.
type ResultFunc func(username string, botIndex int, link inspect.Link, info *inspect.ItemInfo, duration time.Duration, err error)

// Controller is the fleet registry and dispatcher.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	bots []*bot.Bot

	byName *xsync.Map[string, *bot.Bot]

	tracker *readyTracker
}

// New constructs an empty controller.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:     cfg,
		byName:  xsync.NewMap[string, *bot.Bot](),
		tracker: newReadyTracker(),
	}
}

// AddBot registers an account and starts its login lifecycle. The bot index
// is its registration order.
func (c *Controller) AddBot(username, password, authSecret string) *bot.Bot {
	c.mu.Lock()
	index := len(c.bots)
	b := bot.New(bot.Config{
		Username:   username,
		Password:   password,
		AuthSecret: authSecret,
		Index:      index,
		NewSession: c.cfg.NewSession,
		Selector:   c.cfg.Selector,
		OnEvent:    c.handleBotEvent,
		Settings:   c.cfg.Settings,
	})
	c.bots = append(c.bots, b)
	c.mu.Unlock()

	c.byName.Store(username, b)
	c.tracker.register()
	b.Start()
	return b
}

// handleBotEvent updates the readiness tracker before forwarding to the
// configured observer. Aggregate edges detected by the tracker are announced
// through OnServiceEvent.
func (c *Controller) handleBotEvent(ev bot.Event) {
	edge := edgeNone
	switch ev.Type {
	case bot.EventReady:
		edge = c.tracker.setReady(ev.BotIndex, true)
	case bot.EventUnready:
		edge = c.tracker.setReady(ev.BotIndex, false)
	case bot.EventLoginFailed:
		c.tracker.setAttempted(ev.BotIndex)
		log.Printf("[controller] bot %s login failed: %v", ev.Username, ev.Err)
	case bot.EventGCReconnectFailed:
		c.tracker.setAttempted(ev.BotIndex)
		log.Printf("[controller] bot %s exhausted GC reconnects", ev.Username)
	}

	switch edge {
	case edgeReady:
		log.Printf("[controller] service ready (first ready bot: %s)", ev.Username)
		if c.cfg.OnServiceEvent != nil {
			c.cfg.OnServiceEvent(true)
		}
	case edgeUnready:
		log.Printf("[controller] service unready (last ready bot lost: %s)", ev.Username)
		if c.cfg.OnServiceEvent != nil {
			c.cfg.OnServiceEvent(false)
		}
	}

	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

// IsServiceReady reports the latched aggregate readiness: true from the
// moment any bot is ready until no ready bot remains.
func (c *Controller) IsServiceReady() bool {
	return c.tracker.serviceIsReady()
}

// LookupInspect dispatches the link to a uniformly random ready idle bot and
// returns its normalized answer. Bots that turn busy between the snapshot
// and the send are skipped.
func (c *Controller) LookupInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error) {
	c.mu.Lock()
	candidates := make([]*bot.Bot, len(c.bots))
	copy(candidates, c.bots)
	c.mu.Unlock()

	rng := dispatchRNGPool.Get().(*rand.Rand)
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	dispatchRNGPool.Put(rng)

	for _, b := range candidates {
		if !b.IsReady() || b.IsBusy() {
			continue
		}
		start := time.Now()
		info, err := b.SendInspect(ctx, link)
		if errors.Is(err, bot.ErrNotReady) {
			// Lost the race for this bot, try the next one.
			continue
		}
		if c.cfg.OnResult != nil {
			var infoPtr *inspect.ItemInfo
			if err == nil {
				infoPtr = &info
			}
			c.cfg.OnResult(b.Username(), b.Index(), link, infoPtr, time.Since(start), err)
		}
		return info, err
	}
	return inspect.ItemInfo{}, ErrNoBotsAvailable
}

// Bot returns the bot registered under username.
func (c *Controller) Bot(username string) (*bot.Bot, bool) {
	return c.byName.Load(username)
}

// BotCount returns the number of registered bots.
func (c *Controller) BotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bots)
}

// ReadyCount returns the number of bots currently holding a GC session.
func (c *Controller) ReadyCount() int {
	return c.tracker.readyCount()
}

// Status snapshots every bot in registration order.
func (c *Controller) Status() []bot.Snapshot {
	c.mu.Lock()
	bots := make([]*bot.Bot, len(c.bots))
	copy(bots, c.bots)
	c.mu.Unlock()

	out := make([]bot.Snapshot, 0, len(bots))
	for _, b := range bots {
		out = append(out, b.Status())
	}
	return out
}

// WaitForInitialization blocks until at least one bot is ready, every bot
// has finished its first login cycle, or the timeout lapses. It reports
// whether any bot is ready; a false return is informational, the service
// starts regardless.
func (c *Controller) WaitForInitialization(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		ready, allAttempted, changed := c.tracker.snapshot()
		if ready > 0 {
			return true
		}
		if c.BotCount() > 0 && allAttempted {
			log.Printf("[controller] all bots attempted login, none ready")
			return false
		}
		select {
		case <-changed:
		case <-deadline.C:
			log.Printf("[controller] startup window lapsed with no ready bot")
			return false
		}
	}
}

// Destroy tears down every bot concurrently and waits for completion.
func (c *Controller) Destroy() {
	c.mu.Lock()
	bots := make([]*bot.Bot, len(c.bots))
	copy(bots, c.bots)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, b := range bots {
		wg.Add(1)
		go func(b *bot.Bot) {
			defer wg.Done()
			b.Destroy()
		}(b)
	}
	wg.Wait()
}
