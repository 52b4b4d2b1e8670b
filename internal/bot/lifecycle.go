package bot

import (
	"context"
	"time"

	"github.com/floatrig/floatrig/internal/proxysel"
	"github.com/floatrig/floatrig/internal/steam"
)

// startLogin runs one login cycle for the given session generation: bind
// egress, build credentials, construct the session, log on.
func (b *Bot) startLogin(gen uint64) {
	ctx := context.Background()

	var binding *proxysel.Binding
	if b.selector != nil {
		binding = b.selector.PickForBot(ctx, b.index)
	}
	if binding != nil {
		if err := proxysel.ProbeSOCKS(ctx, binding, b.settings.ProbeTimeout); err != nil {
			// ProxyUnavailable is never fatal: fall back to direct.
			b.logf("egress %s failed liveness probe, connecting direct: %v", binding.Name, err)
			binding = nil
		}
	}

	creds := steam.Credentials{
		AccountName:      b.username,
		Password:         b.password,
		RememberPassword: true,
	}
	if err := steam.ApplyAuthSecret(&creds, b.authSecret); err != nil {
		b.handleLoginError(gen, err)
		return
	}

	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	var proxyURLs *steam.ProxyURLs
	if binding != nil {
		proxyURLs = &steam.ProxyURLs{HTTP: binding.HTTPProxy, SOCKS: binding.SOCKSProxy}
		b.binding = binding
	}
	session := b.newSession(b.sessionEvents(gen), proxyURLs)
	b.session = session
	b.mu.Unlock()

	if binding != nil {
		b.logf("logging in via %s", binding.Name)
	} else {
		b.logf("logging in direct")
	}
	if err := session.LogOn(creds); err != nil {
		b.handleLoginError(gen, err)
	}
}

// sessionEvents binds the session callbacks to this generation so events
// from a torn-down session are ignored.
func (b *Bot) sessionEvents(gen uint64) steam.Events {
	return steam.Events{
		Error:        func(err error) { b.handleLoginError(gen, err) },
		Disconnected: func(code int, msg string) { b.handleDisconnected(gen, code, msg) },
		LoggedOn:     func() { b.handleLoggedOn(gen) },
		OwnershipCached: func() {
			b.handleOwnershipCached(gen)
		},
		ConnectedToGC: func() { b.handleConnectedToGC(gen) },
		DisconnectedFromGC: func(reason string) {
			b.handleDisconnectedFromGC(gen, reason)
		},
		ConnectionStatus: func(status string) {
			b.logf("connection status: %s", status)
		},
		InspectItemInfo: b.inspectReplyHandler(gen),
	}
}

// handleLoginError classifies a logon error: transient errors are retried
// with exponential backoff up to the cap, everything else kills the bot.
func (b *Bot) handleLoginError(gen uint64, err error) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen || b.state == StateDead {
		b.mu.Unlock()
		return
	}

	if b.settings.Classifier(err) && b.loginAttempt < b.settings.MaxLoginRetries {
		b.loginAttempt++
		attempt := b.loginAttempt
		delay := backoff(b.settings.LoginRetryDelay, attempt)
		b.setStateLocked(StateLoggingIn)
		stopTimer(&b.retryTimer)
		b.retryTimer = time.AfterFunc(delay, func() { b.retryLogin(gen) })
		b.mu.Unlock()

		b.logf("login error (attempt %d/%d), retrying in %s: %v",
			attempt, b.settings.MaxLoginRetries, delay, err)
		return
	}

	old := b.teardownSessionLocked(ErrSessionReset)
	b.setStateLocked(StateDead)
	b.mu.Unlock()

	if old != nil {
		old.LogOff()
	}
	b.logf("login failed permanently: %v", err)
	b.emit(EventLoginFailed, err)
}

// retryLogin tears down the failed session and starts a fresh cycle,
// preserving the attempt counter.
func (b *Bot) retryLogin(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	old := b.teardownSessionLocked(ErrSessionReset)
	b.setStateLocked(StateLoggingIn)
	newGen := b.gen
	b.mu.Unlock()

	if old != nil {
		old.LogOff()
	}
	b.startLogin(newGen)
}

// handleLoggedOn drives the post-logon bootstrap: reset the attempt
// counter, then either skip straight to playing (scheduled relog) or clear
// the played set and wait for the license cache.
func (b *Bot) handleLoggedOn(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.loginAttempt = 0
	skipOwnership := b.relogin
	b.relogin = false
	session := b.session

	if skipOwnership {
		b.setStateLocked(StateGCConnecting)
		b.mu.Unlock()
		b.logf("logged on (scheduled relog), reopening GC session")
		if err := session.SetPlayedGames([]uint32{steam.CSGOAppID}); err != nil {
			b.logf("set played games: %v", err)
		}
		return
	}

	b.setStateLocked(StateLoggedOn)
	b.awaitingOwnership = true
	b.mu.Unlock()

	b.logf("logged on, waiting for license cache")
	if err := session.SetPlayedGames(nil); err != nil {
		b.logf("clear played games: %v", err)
	}
}

// handleOwnershipCached checks the license set, requesting the free license
// when missing, then opens the GC session.
func (b *Bot) handleOwnershipCached(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen || !b.awaitingOwnership {
		b.mu.Unlock()
		return
	}
	b.awaitingOwnership = false
	session := b.session
	b.setStateLocked(StateGCConnecting)
	b.mu.Unlock()

	if !session.OwnsApp(steam.CSGOAppID) {
		b.logf("account does not own app %d, requesting free license", steam.CSGOAppID)
		if err := session.RequestFreeLicense([]uint32{steam.CSGOAppID}); err != nil {
			// License failures do not kill the bot: the GC stays unattached
			// and the next health cycle retries the bootstrap.
			b.logf("free license grant failed: %v", err)
			b.mu.Lock()
			if !b.destroyed && gen == b.gen {
				b.setStateLocked(StateLoggedOn)
			}
			b.mu.Unlock()
			return
		}
	}
	if err := session.SetPlayedGames([]uint32{steam.CSGOAppID}); err != nil {
		b.logf("set played games: %v", err)
	}
}

// handleConnectedToGC marks the bot ready and emits the ready edge.
func (b *Bot) handleConnectedToGC(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.gcAttempt = 0
	b.lastGCActivity = time.Now()
	stopTimer(&b.gcTimer)
	b.gcTimerArmed = false
	wasReady := b.state == StateReady
	b.setStateLocked(StateReady)
	b.mu.Unlock()

	if !wasReady {
		b.logf("GC session attached")
		b.emit(EventReady, nil)
	}
}

// handleDisconnectedFromGC demotes the bot and schedules a reattach.
func (b *Bot) handleDisconnectedFromGC(gen uint64, reason string) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	wasReady := b.state == StateReady
	b.setStateLocked(StateGCLost)
	schedule := !b.gcTimerArmed
	b.mu.Unlock()

	b.logf("GC session lost: %s", reason)
	if wasReady {
		b.emit(EventUnready, nil)
	}
	if schedule {
		b.scheduleGCReconnect(gen)
	}
}

// handleDisconnected logs Steam-level drops. The session layer reconnects
// on its own; when it does not, the health loop drives recovery.
func (b *Bot) handleDisconnected(gen uint64, code int, msg string) {
	b.mu.Lock()
	stale := b.destroyed || gen != b.gen
	b.mu.Unlock()
	if stale {
		return
	}
	b.logf("steam disconnected (code %d): %s", code, msg)
}

// scheduleGCReconnect arms the next backed-off GC reattach attempt, or
// emits gcReconnectFailed when the budget is exhausted.
func (b *Bot) scheduleGCReconnect(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	if b.gcAttempt >= b.settings.MaxGCAttempts {
		b.mu.Unlock()
		b.logf("GC reconnect attempts exhausted (%d)", b.settings.MaxGCAttempts)
		b.emit(EventGCReconnectFailed, nil)
		return
	}
	b.gcAttempt++
	attempt := b.gcAttempt
	delay := backoff(b.settings.GCReconnectDelay, attempt)
	stopTimer(&b.gcTimer)
	b.gcTimerArmed = true
	b.gcTimer = time.AfterFunc(delay, func() { b.gcReconnectTick(gen) })
	b.mu.Unlock()

	b.logf("GC reconnect %d/%d in %s", attempt, b.settings.MaxGCAttempts, delay)
}

// gcReconnectTick toggles the played set to force a fresh GC handshake.
func (b *Bot) gcReconnectTick(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.gcTimerArmed = false
	if !b.state.steamLoggedOn() {
		b.mu.Unlock()
		return
	}
	session := b.session
	b.setStateLocked(StateGCConnecting)
	stopTimer(&b.toggleTimer)
	b.toggleArmed = true
	b.toggleTimer = time.AfterFunc(b.settings.PlayToggleDelay, func() { b.playAfterToggle(gen) })
	b.mu.Unlock()

	if err := session.SetPlayedGames(nil); err != nil {
		b.logf("clear played games: %v", err)
	}
}

func (b *Bot) playAfterToggle(gen uint64) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.toggleArmed = false
	session := b.session
	b.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.SetPlayedGames([]uint32{steam.CSGOAppID}); err != nil {
		b.logf("set played games: %v", err)
	}
}

// refreshTick performs the scheduled full relog. A busy bot is skipped and
// picked up again on the next period so the relog never collides with an
// in-flight inspect.
func (b *Bot) refreshTick() {
	b.mu.Lock()
	if b.destroyed || b.state != StateReady || b.busy {
		b.mu.Unlock()
		return
	}
	b.relogin = true
	session := b.session
	b.setStateLocked(StateLoggingIn)
	b.mu.Unlock()

	b.logf("scheduled session refresh, relogging")
	b.emit(EventUnready, nil)
	session.Relog()
}

// healthTick is the 60-second watchdog: it revives logged-out bots,
// demotes bots whose GC has gone quiet, and restarts a stalled reattach.
func (b *Bot) healthTick() {
	b.mu.Lock()
	if b.destroyed || b.state == StateDead {
		b.mu.Unlock()
		return
	}

	now := time.Now()
	gen := b.gen

	switch {
	case b.state == StateInit,
		b.state == StateLoggingIn && b.retryTimer == nil && now.Sub(b.stateChangedAt) > b.settings.HealthInterval:
		b.mu.Unlock()
		b.logf("health: not logged on, (re)starting login")
		b.Login()
		return

	case b.state == StateReady && now.Sub(b.lastGCActivity) > b.settings.GCInactivityCeiling:
		b.setStateLocked(StateGCLost)
		b.mu.Unlock()
		b.logf("health: no GC activity for %s, forcing reattach", b.settings.GCInactivityCeiling)
		b.emit(EventUnready, nil)
		b.scheduleGCReconnect(gen)
		return

	case b.state.steamLoggedOn() && b.state != StateReady && !b.gcTimerArmed && !b.toggleArmed:
		b.mu.Unlock()
		b.logf("health: logged on but GC unattached, scheduling reattach")
		b.scheduleGCReconnect(gen)
		return
	}
	b.mu.Unlock()
}
