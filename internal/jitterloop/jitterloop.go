// Package jitterloop runs a function on a jittered period until stopped.
// Jitter keeps a fleet of identical loops (one per bot) from synchronizing
// their work against the upstream.
package jitterloop

import (
	"math/rand/v2"
	"time"
)

// Run executes fn every minInterval + random([0, jitterRange)) until stopCh
// is closed. The first execution happens after one full interval.
func Run(stopCh <-chan struct{}, minInterval, jitterRange time.Duration, fn func()) {
	run(stopCh, minInterval, jitterRange, fn, false)
}

// RunNow is Run with one immediate execution before the periodic schedule
// starts.
func RunNow(stopCh <-chan struct{}, minInterval, jitterRange time.Duration, fn func()) {
	run(stopCh, minInterval, jitterRange, fn, true)
}

func run(stopCh <-chan struct{}, minInterval, jitterRange time.Duration, fn func(), immediate bool) {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	if jitterRange < 0 {
		jitterRange = 0
	}

	if immediate {
		select {
		case <-stopCh:
			return
		default:
		}
		fn()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C // drain initial fire

	for {
		interval := minInterval
		if jitterRange > 0 {
			interval += time.Duration(rand.Int64N(int64(jitterRange)))
		}

		timer.Reset(interval)
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
		fn()
	}
}
