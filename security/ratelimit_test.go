package security

import (
	"fmt"
	"testing"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, nil)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request beyond burst should be denied")
	}
}

func TestRateLimiterIsolatesIdentifiers(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first identifier should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("first identifier should now be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("second identifier should have its own bucket")
	}
}

func TestRateLimiterLRUEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()
	rl.maxEntries = 5

	for i := 0; i < 10; i++ {
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
	}

	if got := rl.Len(); got > 5 {
		t.Errorf("tracked identifiers = %d, want <= 5", got)
	}
}

func TestRateLimiterCleanupRemovesIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	defer rl.Stop()
	rl.maxIdleTime = 0

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	rl.cleanup()

	if got := rl.Len(); got != 0 {
		t.Errorf("tracked identifiers after cleanup = %d, want 0", got)
	}
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	rl.Stop()
}
