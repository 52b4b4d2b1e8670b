package bot

import (
	"context"
	"strconv"
	"time"

	"github.com/floatrig/floatrig/internal/inspect"
)

type inspectResult struct {
	info inspect.ItemInfo
	err  error
}

// pendingRequest is the single in-flight inspect. It stays attached to the
// bot until the post-reply cooldown clears busy, so busy ⇔ pending holds at
// every observable point; resolved marks that the caller already has the
// answer.
type pendingRequest struct {
	link     inspect.Link
	issuedAt time.Time
	resolved bool
	resultCh chan inspectResult // buffered(1); written exactly once
}

// SendInspect forwards the link to the GC and waits for the matching reply
// or the TTL. It fails immediately with ErrNotReady unless the bot is ready
// and idle. The in-flight request is not cancellable: on ctx expiry the
// caller unblocks but the bot stays busy until reply or TTL.
func (b *Bot) SendInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error) {
	b.mu.Lock()
	if b.destroyed || b.state != StateReady || b.busy {
		b.mu.Unlock()
		return inspect.ItemInfo{}, ErrNotReady
	}
	pr := &pendingRequest{
		link:     link,
		issuedAt: time.Now(),
		resultCh: make(chan inspectResult, 1),
	}
	b.pending = pr
	b.busy = true
	gen := b.gen
	session := b.session
	stopTimer(&b.ttlTimer)
	b.ttlTimer = time.AfterFunc(b.settings.RequestTTL, func() { b.expirePending(gen, pr) })
	b.mu.Unlock()

	if err := session.InspectItem(link.Owner(), link.A, link.D); err != nil {
		b.mu.Lock()
		if b.pending == pr {
			stopTimer(&b.ttlTimer)
			b.pending = nil
			b.busy = false
		}
		b.mu.Unlock()
		return inspect.ItemInfo{}, err
	}

	select {
	case res := <-pr.resultCh:
		return res.info, res.err
	case <-ctx.Done():
		return inspect.ItemInfo{}, ctx.Err()
	}
}

// inspectReplyHandler returns the GC reply callback for one session
// generation.
func (b *Bot) inspectReplyHandler(gen uint64) func(inspect.RawItemInfo) {
	return func(raw inspect.RawItemInfo) {
		b.mu.Lock()
		if b.destroyed || gen != b.gen {
			b.mu.Unlock()
			return
		}
		pr := b.pending
		// Cross-talk from a prior request never corrupts state: a reply for
		// a different item id is dropped without touching anything.
		if pr == nil || pr.resolved || strconv.FormatUint(raw.ItemID, 10) != pr.link.A {
			b.mu.Unlock()
			return
		}

		stopTimer(&b.ttlTimer)
		now := time.Now()
		b.lastGCActivity = now
		delay := b.settings.RequestDelay - now.Sub(pr.issuedAt)
		if delay < 0 {
			delay = 0
		}
		info := inspect.Normalize(raw, pr.link, delay)
		pr.resolved = true

		if delay == 0 {
			b.pending = nil
			b.busy = false
		} else {
			stopTimer(&b.cooldownTimer)
			b.cooldownTimer = time.AfterFunc(delay, func() { b.clearCooldown(gen, pr) })
		}
		b.mu.Unlock()

		pr.resultCh <- inspectResult{info: info}
	}
}

// expirePending fails the request when no matching reply arrived in time.
// The bot is immediately available again.
func (b *Bot) expirePending(gen uint64, pr *pendingRequest) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen || b.pending != pr || pr.resolved {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	b.busy = false
	b.mu.Unlock()

	b.logf("inspect %s timed out", pr.link.A)
	pr.resultCh <- inspectResult{err: ErrTTLExceeded}
}

// clearCooldown releases busy once the post-reply delay elapses.
func (b *Bot) clearCooldown(gen uint64, pr *pendingRequest) {
	b.mu.Lock()
	if b.destroyed || gen != b.gen || b.pending != pr {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	b.busy = false
	b.mu.Unlock()
}

// failPendingLocked delivers err to an unresolved pending request and
// clears the busy flag. Caller holds mu.
func (b *Bot) failPendingLocked(err error) {
	pr := b.pending
	b.pending = nil
	b.busy = false
	if pr == nil || pr.resolved {
		return
	}
	pr.resolved = true
	pr.resultCh <- inspectResult{err: err}
}
