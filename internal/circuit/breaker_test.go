package circuit

import (
	"testing"
	"time"
)

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		HalfOpenProbes:   1,
	})

	for i := 0; i < 2; i++ {
		b.RecordFailure("timeout")
	}
	if state := b.GetState(); state != StateClosed {
		t.Fatalf("state = %s after 2 failures, want closed", state)
	}
	if !b.Allow() {
		t.Fatal("closed breaker must allow requests")
	}

	b.RecordFailure("timeout")
	if state := b.GetState(); state != StateOpen {
		t.Fatalf("state = %s after 3 failures, want open", state)
	}
	if b.Allow() {
		t.Fatal("open breaker must reject requests")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	b.RecordFailure("timeout")
	b.RecordFailure("timeout")
	b.RecordSuccess()
	b.RecordFailure("timeout")
	b.RecordFailure("timeout")

	if state := b.GetState(); state != StateClosed {
		t.Fatalf("state = %s, want closed after success broke the streak", state)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 1,
		Cooldown:         time.Millisecond,
		HalfOpenProbes:   2,
	})

	b.RecordFailure("down")
	if state := b.GetState(); state != StateOpen {
		t.Fatalf("state = %s, want open", state)
	}

	time.Sleep(5 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected probe to be allowed after cooldown")
	}
	if state := b.GetState(); state != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", state)
	}

	b.RecordSuccess()
	if state := b.GetState(); state != StateHalfOpen {
		t.Fatalf("state = %s, want half_open after 1 of 2 probes", state)
	}

	b.RecordSuccess()
	if state := b.GetState(); state != StateClosed {
		t.Fatalf("state = %s, want closed after 2 probes", state)
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 1,
		Cooldown:         time.Millisecond,
		HalfOpenProbes:   1,
	})

	b.RecordFailure("down")
	time.Sleep(5 * time.Millisecond)
	b.Allow() // moves to half-open

	b.RecordFailure("still down")
	if state := b.GetState(); state != StateOpen {
		t.Fatalf("state = %s, want open after failed probe", state)
	}
}

func TestBreakerForceReset(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})

	b.RecordFailure("down")
	if b.Allow() {
		t.Fatal("expected open breaker to reject")
	}

	b.ForceReset()
	if state := b.GetState(); state != StateClosed {
		t.Fatalf("state = %s, want closed after reset", state)
	}
	if !b.Allow() {
		t.Fatal("reset breaker must allow requests")
	}
}

func TestBreakerDisabledAlwaysAllows(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          false,
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})

	b.RecordFailure("down")
	b.RecordFailure("down")
	if !b.Allow() {
		t.Fatal("disabled breaker must always allow")
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})

	done := make(chan struct{})
	var gotFrom, gotTo BreakerState
	b.OnStateChange(func(from, to BreakerState, reason string) {
		gotFrom, gotTo = from, to
		close(done)
	})

	b.RecordFailure("down")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change callback never fired")
	}
	if gotFrom != StateClosed || gotTo != StateOpen {
		t.Errorf("transition %s -> %s, want closed -> open", gotFrom, gotTo)
	}
}

func TestBreakerStats(t *testing.T) {
	b := NewBreaker("test", Config{
		Enabled:          true,
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	})

	b.RecordSuccess()
	b.RecordFailure("a")
	b.RecordFailure("b")
	b.Allow() // rejected

	stats := b.GetStats()
	if stats.State != StateOpen {
		t.Errorf("State = %s, want open", stats.State)
	}
	if stats.TotalSuccesses != 1 || stats.TotalFailures != 2 || stats.TotalRejections != 1 {
		t.Errorf("counters = %d/%d/%d, want 1/2/1",
			stats.TotalSuccesses, stats.TotalFailures, stats.TotalRejections)
	}
	if stats.LastError != "b" {
		t.Errorf("LastError = %q, want b", stats.LastError)
	}
	if stats.CooldownRemaining <= 0 {
		t.Error("expected positive cooldown remaining while open")
	}
}
