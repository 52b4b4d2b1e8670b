// Package steam defines the opaque session capability a bot drives: Steam
// logon, game-ownership bootstrap, GC attach and the inspect RPC. The actual
// protocol stack is supplied by a registered driver; this package only fixes
// the contract.
package steam

import (
	"fmt"
	"sort"
	"sync"

	"github.com/floatrig/floatrig/internal/inspect"
)

// CSGOAppID is the app whose game coordinator answers inspect queries.
const CSGOAppID uint32 = 730

// Credentials are the logon inputs for one account.
type Credentials struct {
	AccountName      string
	Password         string
	AuthCode         string // one-time email/guard code
	TwoFactorCode    string // TOTP-derived code
	RememberPassword bool
}

// ProxyURLs is the egress binding handed to a session at construction:
// local listener URLs, or zero values for a direct connection.
type ProxyURLs struct {
	HTTP  string
	SOCKS string
}

// Events carries the callbacks a session fires into its owning bot. All
// callbacks are optional; drivers must treat a nil func as "not subscribed".
// Callbacks are invoked from the session's own context; handlers must not
// call back into the session synchronously.
type Events struct {
	Error              func(err error)
	Disconnected       func(code int, msg string)
	LoggedOn           func()
	OwnershipCached    func()
	ConnectedToGC      func()
	DisconnectedFromGC func(reason string)
	ConnectionStatus   func(status string)
	InspectItemInfo    func(raw inspect.RawItemInfo)
}

// SessionClient is the opaque Steam+GC capability. A session is owned by
// exactly one bot and is never shared.
type SessionClient interface {
	// LogOn starts the asynchronous logon. Transport-level failures may be
	// returned synchronously; protocol failures arrive via Events.Error.
	LogOn(creds Credentials) error
	// LogOff tears the session down. Safe to call in any state.
	LogOff()
	// Relog performs a full Steam re-logon reusing the stored credentials.
	Relog()
	// SetPlayedGames announces the played app set; an empty or nil slice
	// closes any GC session, a set containing CSGOAppID opens one.
	SetPlayedGames(appIDs []uint32) error
	// RequestFreeLicense asks Steam to grant the free license for the apps.
	RequestFreeLicense(appIDs []uint32) error
	// OwnsApp reports license ownership; only valid after OwnershipCached.
	OwnsApp(appID uint32) bool
	// InspectItem issues the inspect RPC to the GC. The reply arrives via
	// Events.InspectItemInfo.
	InspectItem(owner, assetID, proofToken string) error
}

// Factory constructs a fresh session wired to the given event hooks and
// egress binding (nil = direct).
type Factory func(events Events, proxy *ProxyURLs) SessionClient

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{}
)

// RegisterDriver makes a session driver available under the given name.
// It panics on duplicate registration, mirroring database/sql.
func RegisterDriver(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("steam: RegisterDriver factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("steam: RegisterDriver called twice for driver " + name)
	}
	drivers[name] = factory
}

// OpenFactory returns the factory registered under name.
func OpenFactory(name string) (Factory, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("steam: unknown session driver %q (registered: %v)", name, driverNamesLocked())
	}
	return f, nil
}

func driverNamesLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
