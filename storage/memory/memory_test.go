package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clonex/auth-gateway/storage"
)

func newTestRequest(state string, ttl time.Duration) *storage.AuthorizationRequest {
	now := time.Now()
	return &storage.AuthorizationRequest{
		State:         state,
		CodeVerifier:  "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		CodeChallenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestSaveAndTake(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	req := newTestRequest("state-1", time.Minute)
	if err := store.SaveAuthorizationRequest(ctx, req); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	got, err := store.TakeAuthorizationRequest(ctx, "state-1")
	if err != nil {
		t.Fatalf("TakeAuthorizationRequest() error = %v", err)
	}
	if got.CodeVerifier != req.CodeVerifier {
		t.Errorf("CodeVerifier = %q, want %q", got.CodeVerifier, req.CodeVerifier)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after take, want 0", store.Len())
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveAuthorizationRequest(ctx, newTestRequest("state-1", time.Minute)); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	if _, err := store.TakeAuthorizationRequest(ctx, "state-1"); err != nil {
		t.Fatalf("first take error = %v", err)
	}
	if _, err := store.TakeAuthorizationRequest(ctx, "state-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second take error = %v, want ErrNotFound", err)
	}
}

func TestTakeUnknownState(t *testing.T) {
	store := New()
	defer store.Stop()

	_, err := store.TakeAuthorizationRequest(context.Background(), "never-saved")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTakeExpiredRequest(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveAuthorizationRequest(ctx, newTestRequest("state-1", -time.Second)); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	if _, err := store.TakeAuthorizationRequest(ctx, "state-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for expired request", err)
	}
	if store.Len() != 0 {
		t.Error("expired request should be removed on take")
	}
}

func TestSaveInvalidRequest(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveAuthorizationRequest(ctx, nil); err == nil {
		t.Error("expected error for nil request")
	}
	if err := store.SaveAuthorizationRequest(ctx, &storage.AuthorizationRequest{}); err == nil {
		t.Error("expected error for empty state")
	}
}

func TestSaveCopiesRequest(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	req := newTestRequest("state-1", time.Minute)
	if err := store.SaveAuthorizationRequest(ctx, req); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}
	req.CodeVerifier = "mutated-after-save"

	got, err := store.TakeAuthorizationRequest(ctx, "state-1")
	if err != nil {
		t.Fatalf("TakeAuthorizationRequest() error = %v", err)
	}
	if got.CodeVerifier == "mutated-after-save" {
		t.Error("store must not share memory with the caller's request")
	}
}

func TestCleanupExpired(t *testing.T) {
	store := NewWithInterval(time.Hour)
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveAuthorizationRequest(ctx, newTestRequest("live", time.Minute)); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}
	if err := store.SaveAuthorizationRequest(ctx, newTestRequest("dead", -time.Second)); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	store.cleanupExpired()

	if store.Len() != 1 {
		t.Errorf("Len() = %d after cleanup, want 1", store.Len())
	}
	if _, err := store.TakeAuthorizationRequest(ctx, "live"); err != nil {
		t.Errorf("live request should survive cleanup, got %v", err)
	}
}

func TestConcurrentTake(t *testing.T) {
	store := New()
	defer store.Stop()
	ctx := context.Background()

	if err := store.SaveAuthorizationRequest(ctx, newTestRequest("contested", time.Minute)); err != nil {
		t.Fatalf("SaveAuthorizationRequest() error = %v", err)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.TakeAuthorizationRequest(ctx, "contested"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("successful takes = %d, want exactly 1", count)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	store := New()
	store.Stop()
	store.Stop()
}
