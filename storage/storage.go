package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no authorization request exists for a state.
// A consumed or expired request is indistinguishable from one that never
// existed; callers treat all three as a missing verifier.
var ErrNotFound = errors.New("authorization request not found")

// ErrStateMismatch is returned by stores that bind the request to a single
// browser (the cookie backend) when a request exists but was created for a
// different state than the one presented.
var ErrStateMismatch = errors.New("authorization request state mismatch")

// AuthorizationRequest is the per-login-attempt record created at initiation
// and consumed exactly once at callback time.
type AuthorizationRequest struct {
	// State is the anti-forgery token round-tripped through the provider.
	// It is the lookup key for the request.
	State string

	// CodeVerifier is the PKCE verifier; never leaves the server except
	// inside the token-exchange request body.
	CodeVerifier string

	// CodeChallenge is base64url(sha256(CodeVerifier)), retained so the
	// initiation can be audited against the later exchange.
	CodeChallenge string

	// Scope is the space-separated scope string requested at initiation
	Scope string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the request is past its TTL at the given instant
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// VerifierStore is a write-once read-once association from state to the
// authorization request holding the PKCE code verifier.
//
// TakeAuthorizationRequest MUST be an atomic read-and-delete: two concurrent
// callbacks racing on the same state (duplicate browser tab) must observe
// single-use consumption, with the loser receiving ErrNotFound.
type VerifierStore interface {
	// SaveAuthorizationRequest persists a pending authorization request.
	// Failure here aborts the login attempt before any redirect is issued.
	SaveAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) error

	// TakeAuthorizationRequest atomically retrieves and deletes the request
	// for the given state. Returns ErrNotFound if the state is unknown,
	// already consumed, or expired.
	TakeAuthorizationRequest(ctx context.Context, state string) (*AuthorizationRequest, error)
}
