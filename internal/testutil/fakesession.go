// Package testutil provides fakes shared by the bot and controller tests.
package testutil

import (
	"sync"

	"github.com/floatrig/floatrig/internal/inspect"
	"github.com/floatrig/floatrig/internal/steam"
)

// FakeSession is a scripted steam.SessionClient. Operations record their
// arguments and return the configured errors; the test drives the session
// callbacks by calling the Events fields directly, always from a separate
// goroutine so the fake mirrors the real client's asynchronous delivery.
type FakeSession struct {
	Events steam.Events
	Proxy  *steam.ProxyURLs

	mu sync.Mutex

	LogOnErr     error
	PlayedErr    error
	LicenseErr   error
	InspectErr   error
	ownsApp      bool
	logOnCreds   []steam.Credentials
	playedCalls  [][]uint32
	licenseCalls [][]uint32
	inspectCalls []InspectCall
	relogCount   int
	logOffCount  int
}

// InspectCall records one InspectItem invocation.
type InspectCall struct {
	Owner   string
	AssetID string
	D       string
}

// FakeFactory returns a steam.Factory that hands out *FakeSession values and
// reports each one on ch so the test can drive its callbacks.
func FakeFactory(ch chan<- *FakeSession) steam.Factory {
	return func(ev steam.Events, proxy *steam.ProxyURLs) steam.SessionClient {
		fs := &FakeSession{Events: ev, Proxy: proxy, ownsApp: true}
		select {
		case ch <- fs:
		default:
		}
		return fs
	}
}

func (f *FakeSession) LogOn(creds steam.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logOnCreds = append(f.logOnCreds, creds)
	return f.LogOnErr
}

func (f *FakeSession) LogOff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logOffCount++
}

func (f *FakeSession) Relog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relogCount++
}

func (f *FakeSession) SetPlayedGames(appIDs []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playedCalls = append(f.playedCalls, appIDs)
	return f.PlayedErr
}

func (f *FakeSession) RequestFreeLicense(appIDs []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.licenseCalls = append(f.licenseCalls, appIDs)
	return f.LicenseErr
}

func (f *FakeSession) OwnsApp(appID uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ownsApp
}

func (f *FakeSession) InspectItem(owner, assetID, d string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspectCalls = append(f.inspectCalls, InspectCall{Owner: owner, AssetID: assetID, D: d})
	return f.InspectErr
}

// SetOwnsApp scripts the license-cache answer for the next OwnershipCached.
func (f *FakeSession) SetOwnsApp(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownsApp = v
}

func (f *FakeSession) LogOnCalls() []steam.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]steam.Credentials(nil), f.logOnCreds...)
}

func (f *FakeSession) PlayedCalls() [][]uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]uint32(nil), f.playedCalls...)
}

func (f *FakeSession) LicenseCalls() [][]uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]uint32(nil), f.licenseCalls...)
}

func (f *FakeSession) InspectCalls() []InspectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]InspectCall(nil), f.inspectCalls...)
}

func (f *FakeSession) RelogCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relogCount
}

func (f *FakeSession) LogOffCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logOffCount
}

// FireLoggedOn delivers the LoggedOn callback from a fresh goroutine.
func (f *FakeSession) FireLoggedOn() {
	if f.Events.LoggedOn != nil {
		go f.Events.LoggedOn()
	}
}

// FireOwnershipCached delivers the license-cache callback.
func (f *FakeSession) FireOwnershipCached() {
	if f.Events.OwnershipCached != nil {
		go f.Events.OwnershipCached()
	}
}

// FireConnectedToGC delivers the GC-attached callback.
func (f *FakeSession) FireConnectedToGC() {
	if f.Events.ConnectedToGC != nil {
		go f.Events.ConnectedToGC()
	}
}

// FireDisconnectedFromGC delivers the GC-lost callback.
func (f *FakeSession) FireDisconnectedFromGC(reason string) {
	if f.Events.DisconnectedFromGC != nil {
		go f.Events.DisconnectedFromGC(reason)
	}
}

// FireError delivers an asynchronous session error.
func (f *FakeSession) FireError(err error) {
	if f.Events.Error != nil {
		go f.Events.Error(err)
	}
}

// FireInspectReply delivers a GC inspect response.
func (f *FakeSession) FireInspectReply(raw inspect.RawItemInfo) {
	if f.Events.InspectItemInfo != nil {
		go f.Events.InspectItemInfo(raw)
	}
}
