// Package bot implements one account's full lifecycle: login with
// exponential backoff, game-ownership bootstrap, GC session attach,
// scheduled refresh, health monitoring, multi-layer reconnection, and the
// single in-flight inspect request with TTL and post-reply cooldown.
package bot

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/floatrig/floatrig/internal/jitterloop"
	"github.com/floatrig/floatrig/internal/proxysel"
	"github.com/floatrig/floatrig/internal/steam"
)

var (
	// ErrNotReady is returned by SendInspect when the bot has no attached GC
	// session or is already serving a request.
	ErrNotReady = errors.New("bot: not ready")
	// ErrTTLExceeded is returned when the GC does not answer within the
	// request TTL.
	ErrTTLExceeded = errors.New("bot: inspect ttl exceeded")
	// ErrDestroyed is returned to a pending caller when the bot is torn down.
	ErrDestroyed = errors.New("bot: destroyed")
	// ErrSessionReset is returned to a pending caller when the session is
	// re-initialized underneath the request.
	ErrSessionReset = errors.New("bot: session reset")
)

// State is the bot's lifecycle state. The busy flag is orthogonal.
type State int

const (
	StateInit State = iota
	StateLoggingIn
	StateLoggedOn
	StateGCConnecting
	StateReady
	StateGCLost
	StateDead
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedOn:
		return "logged_on"
	case StateGCConnecting:
		return "gc_connecting"
	case StateReady:
		return "ready"
	case StateGCLost:
		return "gc_lost"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// steamLoggedOn reports whether the state implies a live Steam session.
func (s State) steamLoggedOn() bool {
	switch s {
	case StateLoggedOn, StateGCConnecting, StateReady, StateGCLost:
		return true
	default:
		return false
	}
}

// Settings are the per-bot tunables. Zero values fall back to the defaults
// from the upstream rate-limit contract.
type Settings struct {
	MaxLoginRetries     int
	LoginRetryDelay     time.Duration
	MaxGCAttempts       int
	GCReconnectDelay    time.Duration
	RequestTTL          time.Duration
	RequestDelay        time.Duration
	RefreshInterval     time.Duration
	RefreshJitter       time.Duration
	HealthInterval      time.Duration
	GCInactivityCeiling time.Duration
	// PlayToggleDelay is the pause between clearing and re-announcing the
	// played app set when forcing a fresh GC handshake.
	PlayToggleDelay time.Duration
	// ProbeTimeout bounds the pre-login SOCKS liveness probe.
	ProbeTimeout time.Duration
	// Classifier decides which login errors are transient.
	Classifier steam.RetryClassifier
}

func (s Settings) withDefaults() Settings {
	if s.MaxLoginRetries <= 0 {
		s.MaxLoginRetries = 5
	}
	if s.LoginRetryDelay <= 0 {
		s.LoginRetryDelay = 5 * time.Second
	}
	if s.MaxGCAttempts <= 0 {
		s.MaxGCAttempts = 10
	}
	if s.GCReconnectDelay <= 0 {
		s.GCReconnectDelay = 10 * time.Second
	}
	if s.RequestTTL <= 0 {
		s.RequestTTL = 3 * time.Second
	}
	if s.RequestDelay < 0 {
		s.RequestDelay = 0
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = 30 * time.Minute
	}
	if s.RefreshJitter < 0 {
		s.RefreshJitter = 4 * time.Minute
	}
	if s.HealthInterval <= 0 {
		s.HealthInterval = time.Minute
	}
	if s.GCInactivityCeiling <= 0 {
		s.GCInactivityCeiling = 10 * time.Minute
	}
	if s.PlayToggleDelay <= 0 {
		s.PlayToggleDelay = time.Second
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = 5 * time.Second
	}
	if s.Classifier == nil {
		s.Classifier = steam.DefaultRetryClassifier
	}
	return s
}

// Config wires a bot to its collaborators.
type Config struct {
	Username   string
	Password   string
	AuthSecret string // one-time guard code (≤5 chars) or a TOTP seed
	Index      int

	NewSession steam.Factory
	Selector   proxysel.Selector
	OnEvent    EventFunc
	Settings   Settings
}

// Bot owns one account's session. All mutable fields are guarded by mu;
// session operations and event emission always happen outside the lock.
type Bot struct {
	username   string
	password   string
	authSecret string
	index      int

	newSession steam.Factory
	selector   proxysel.Selector
	onEvent    EventFunc
	settings   Settings

	mu             sync.Mutex
	state          State
	stateChangedAt time.Time
	busy           bool
	relogin        bool
	loginAttempt   int
	gcAttempt      int
	lastGCActivity time.Time
	destroyed      bool

	pending *pendingRequest
	session steam.SessionClient
	// gen guards against stale callbacks: every session teardown bumps it,
	// and every timer/event closure carries the gen it was armed under.
	gen     uint64
	binding *proxysel.Binding

	awaitingOwnership bool

	retryTimer    *time.Timer
	gcTimer       *time.Timer
	gcTimerArmed  bool
	toggleTimer   *time.Timer
	toggleArmed   bool
	ttlTimer      *time.Timer
	cooldownTimer *time.Timer

	loopStop chan struct{}
	wg       sync.WaitGroup
}

// New constructs a bot. Call Start to begin login and background loops.
func New(cfg Config) *Bot {
	return &Bot{
		username:       cfg.Username,
		password:       cfg.Password,
		authSecret:     cfg.AuthSecret,
		index:          cfg.Index,
		newSession:     cfg.NewSession,
		selector:       cfg.Selector,
		onEvent:        cfg.OnEvent,
		settings:       cfg.Settings.withDefaults(),
		state:          StateInit,
		stateChangedAt: time.Now(),
		loopStop:       make(chan struct{}),
	}
}

// Start launches the health and refresh loops and begins the first login.
func (b *Bot) Start() {
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		jitterloop.Run(b.loopStop, b.settings.HealthInterval, 0, b.healthTick)
	}()
	go func() {
		defer b.wg.Done()
		jitterloop.Run(b.loopStop, b.settings.RefreshInterval, b.settings.RefreshJitter, b.refreshTick)
	}()
	b.Login()
}

// Login (re-)initializes the session: any in-flight session is torn down
// first, then a fresh login cycle starts asynchronously. Idempotent.
func (b *Bot) Login() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	wasReady := b.state == StateReady
	old := b.teardownSessionLocked(ErrSessionReset)
	b.setStateLocked(StateLoggingIn)
	gen := b.gen
	b.mu.Unlock()

	if old != nil {
		old.LogOff()
	}
	if wasReady {
		b.emit(EventUnready, nil)
	}
	go b.startLogin(gen)
}

// Destroy cancels every timer, fails any pending request and logs the
// session off. The bot is dead afterwards.
func (b *Bot) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	wasReady := b.state == StateReady
	old := b.teardownSessionLocked(ErrDestroyed)
	b.setStateLocked(StateDead)
	close(b.loopStop)
	b.mu.Unlock()

	if old != nil {
		old.LogOff()
	}
	b.wg.Wait()
	if wasReady {
		b.emit(EventUnready, nil)
	}
}

// Username returns the account name.
func (b *Bot) Username() string { return b.username }

// Index returns the controller-assigned bot index.
func (b *Bot) Index() int { return b.index }

// IsReady reports whether the bot holds an attached GC session.
func (b *Bot) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateReady
}

// IsBusy reports whether the bot is serving a request or cooling down.
func (b *Bot) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

// Snapshot is a point-in-time view of one bot for status reporting.
type Snapshot struct {
	Username     string `json:"username"`
	State        string `json:"state"`
	Ready        bool   `json:"ready"`
	Busy         bool   `json:"busy"`
	LoginAttempt int    `json:"loginAttempt"`
	GCAttempt    int    `json:"gcAttempt"`
	Proxy        string `json:"proxy,omitempty"`
}

// Status returns the bot's snapshot.
func (b *Bot) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Username:     b.username,
		State:        b.state.String(),
		Ready:        b.state == StateReady,
		Busy:         b.busy,
		LoginAttempt: b.loginAttempt,
		GCAttempt:    b.gcAttempt,
	}
	if b.binding != nil {
		s.Proxy = b.binding.Name
	}
	return s
}

// --- internal plumbing ---

func (b *Bot) setStateLocked(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.stateChangedAt = time.Now()
}

// teardownSessionLocked bumps the session generation, cancels every timer
// and fails the pending request with failErr. It returns the old session so
// the caller can LogOff outside the lock.
func (b *Bot) teardownSessionLocked(failErr error) steam.SessionClient {
	b.gen++
	old := b.session
	b.session = nil
	b.binding = nil
	b.awaitingOwnership = false

	stopTimer(&b.retryTimer)
	stopTimer(&b.gcTimer)
	stopTimer(&b.toggleTimer)
	stopTimer(&b.ttlTimer)
	stopTimer(&b.cooldownTimer)
	b.gcTimerArmed = false
	b.toggleArmed = false

	b.failPendingLocked(failErr)
	return old
}

func (b *Bot) emit(t EventType, err error) {
	if b.onEvent == nil {
		return
	}
	b.onEvent(Event{Type: t, Username: b.username, BotIndex: b.index, Err: err})
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// backoff returns base·2^(attempt−1), capped to avoid shift overflow.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > 20 {
		shift = 20
	}
	return base << shift
}

// logf logs with the bot's account prefix.
func (b *Bot) logf(format string, args ...any) {
	log.Printf("[bot %s] "+format, append([]any{b.username}, args...)...)
}
