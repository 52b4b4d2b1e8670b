package jitterloop

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int64
	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		Run(stopCh, 5*time.Millisecond, 0, func() { ticks.Add(1) })
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not tick")
		case <-time.After(time.Millisecond):
		}
	}

	close(stopCh)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunNow_ImmediateFirstTick(t *testing.T) {
	var ticks atomic.Int64
	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		RunNow(stopCh, time.Hour, 0, func() { ticks.Add(1) })
	}()

	deadline := time.After(time.Second)
	for ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("RunNow did not run immediately")
		case <-time.After(time.Millisecond):
		}
	}

	close(stopCh)
	<-done
	if got := ticks.Load(); got != 1 {
		t.Fatalf("ticks = %d, want exactly 1 before the first interval", got)
	}
}

func TestRunNow_StoppedBeforeStart(t *testing.T) {
	stopCh := make(chan struct{})
	close(stopCh)

	ran := false
	RunNow(stopCh, time.Millisecond, 0, func() { ran = true })
	if ran {
		t.Fatal("closed stop channel must suppress the immediate run")
	}
}
