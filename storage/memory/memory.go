// Package memory provides an in-memory implementation of the verifier store.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clonex/auth-gateway/storage"
)

// Store is an in-memory implementation of storage.VerifierStore.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*storage.AuthorizationRequest

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

var _ storage.VerifierStore = (*Store)(nil)

// New creates a new in-memory store with the default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval
func NewWithInterval(interval time.Duration) *Store {
	s := &Store{
		requests:        make(map[string]*storage.AuthorizationRequest),
		cleanupInterval: interval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}
	go s.cleanupLoop()
	return s
}

// SetLogger sets the logger used for cleanup reporting
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Stop terminates the background cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// SaveAuthorizationRequest persists a pending authorization request
func (s *Store) SaveAuthorizationRequest(_ context.Context, req *storage.AuthorizationRequest) error {
	if req == nil || req.State == "" {
		return fmt.Errorf("invalid authorization request")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.requests[req.State] = &cp
	return nil
}

// TakeAuthorizationRequest atomically retrieves and deletes the request for
// the given state. Single map operation under the write lock, so two racing
// callbacks on the same state cannot both succeed.
func (s *Store) TakeAuthorizationRequest(_ context.Context, state string) (*storage.AuthorizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[state]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.requests, state)

	if req.Expired(time.Now()) {
		return nil, storage.ErrNotFound
	}

	cp := *req
	return &cp, nil
}

// Len returns the number of pending authorization requests (for tests and metrics)
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanupExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, req := range s.requests {
		if req.Expired(now) {
			delete(s.requests, state)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Cleaned up expired authorization requests",
			"removed", removed,
			"remaining", len(s.requests))
	}
}
