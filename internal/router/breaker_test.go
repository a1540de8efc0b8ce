package router

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := NewBreaker(3, 30*time.Second, time.Minute)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		b.Failure()
		if !b.Allow() {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}

	b.Failure()
	if b.Allow() {
		t.Error("expected breaker open after threshold failures")
	}
	if b.State() != "open" {
		t.Errorf("expected state open, got %s", b.State())
	}
}

func TestBreakerWindowPrunesOldFailures(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := NewBreaker(3, 30*time.Second, time.Minute)
	b.now = func() time.Time { return now }

	b.Failure()
	b.Failure()

	// Old failures age out of the window before the third lands
	now = now.Add(time.Minute)
	b.Failure()

	if !b.Allow() {
		t.Error("expected breaker closed, failures were outside the window")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := NewBreaker(1, 30*time.Second, time.Minute)
	b.now = func() time.Time { return now }

	b.Failure()
	if b.Allow() {
		t.Fatal("expected breaker open")
	}

	// Cooldown elapses; one probe is admitted, a second caller is not
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatal("expected probe admitted after cooldown")
	}
	if b.State() != "half_open" {
		t.Errorf("expected half_open, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected only one probe while half-open")
	}

	t.Run("probe success closes", func(t *testing.T) {
		b.Success()
		if !b.Allow() {
			t.Error("expected breaker closed after probe success")
		}
	})
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := NewBreaker(1, 30*time.Second, time.Minute)
	b.now = func() time.Time { return now }

	b.Failure()
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatal("expected probe admitted")
	}

	b.Failure()
	if b.State() != "open" {
		t.Errorf("expected reopened circuit, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected calls rejected after failed probe")
	}

	// A fresh cooldown applies from the failed probe
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Error("expected new probe after second cooldown")
	}
}
