package steam

import (
	"strconv"
	"sync"

	"github.com/floatrig/floatrig/internal/inspect"
)

// SimDriverName is the built-in deterministic session driver. It fronts no
// network at all: logon always succeeds, the GC attaches as soon as the app
// is played, and inspect replies are synthesized from the request fields.
// It exists for development mode and integration-style tests; production
// deployments register a real protocol stack.
const SimDriverName = "sim"

func init() {
	RegisterDriver(SimDriverName, NewSimSession)
}

// SimSession is the in-process session simulator.
type SimSession struct {
	events Events

	mu       sync.Mutex
	loggedOn bool
	playing  bool
	creds    Credentials
}

// NewSimSession constructs a simulator session. The proxy binding is
// accepted and ignored; there is no egress.
func NewSimSession(events Events, _ *ProxyURLs) SessionClient {
	return &SimSession{events: events}
}

// LogOn immediately reports a successful logon and a cached license set.
func (s *SimSession) LogOn(creds Credentials) error {
	s.mu.Lock()
	s.loggedOn = true
	s.creds = creds
	s.mu.Unlock()

	go func() {
		if s.events.LoggedOn != nil {
			s.events.LoggedOn()
		}
		if s.events.OwnershipCached != nil {
			s.events.OwnershipCached()
		}
	}()
	return nil
}

// LogOff drops the simulated session.
func (s *SimSession) LogOff() {
	s.mu.Lock()
	s.loggedOn = false
	s.playing = false
	s.mu.Unlock()
}

// Relog replays the stored credentials through LogOn.
func (s *SimSession) Relog() {
	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()
	_ = s.LogOn(creds)
}

// SetPlayedGames attaches the GC when the set contains CSGOAppID and
// detaches it otherwise.
func (s *SimSession) SetPlayedGames(appIDs []uint32) error {
	playing := false
	for _, id := range appIDs {
		if id == CSGOAppID {
			playing = true
		}
	}

	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = playing
	s.mu.Unlock()

	switch {
	case playing && !wasPlaying:
		go func() {
			if s.events.ConnectedToGC != nil {
				s.events.ConnectedToGC()
			}
		}()
	case !playing && wasPlaying:
		go func() {
			if s.events.DisconnectedFromGC != nil {
				s.events.DisconnectedFromGC("stopped playing")
			}
		}()
	}
	return nil
}

// RequestFreeLicense always succeeds; the simulator owns everything.
func (s *SimSession) RequestFreeLicense([]uint32) error {
	return nil
}

// OwnsApp reports true for every app.
func (s *SimSession) OwnsApp(uint32) bool {
	return true
}

// InspectItem synthesizes a deterministic reply from the request fields so
// repeated queries for the same asset agree.
func (s *SimSession) InspectItem(owner, assetID, proofToken string) error {
	itemID, err := strconv.ParseUint(assetID, 10, 64)
	if err != nil {
		return err
	}

	seed := int32(itemID % 1000) //nolint:gosec
	raw := inspect.RawItemInfo{
		ItemID:     itemID,
		DefIndex:   7,
		PaintIndex: uint32(itemID % 703), //nolint:gosec
		Rarity:     4,
		Quality:    4,
		Paintwear:  float64(itemID%1_000_000) / 1_000_000,
		Paintseed:  &seed,
	}

	go func() {
		if s.events.InspectItemInfo != nil {
			s.events.InspectItemInfo(raw)
		}
	}()
	return nil
}
