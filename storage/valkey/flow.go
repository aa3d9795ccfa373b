package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clonex/auth-gateway/storage"
)

// authorizationRequestJSON is the wire format for stored authorization requests
type authorizationRequestJSON struct {
	State         string    `json:"state"`
	CodeVerifier  string    `json:"code_verifier"`
	CodeChallenge string    `json:"code_challenge"`
	Scope         string    `json:"scope"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SaveAuthorizationRequest persists a pending authorization request with a
// key TTL matching the request expiry. The verifier is encrypted at rest
// when an encryptor is configured.
func (s *Store) SaveAuthorizationRequest(ctx context.Context, req *storage.AuthorizationRequest) error {
	if req == nil || req.State == "" {
		return fmt.Errorf("invalid authorization request")
	}

	ttl := time.Until(req.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization request already expired")
	}

	verifier := req.CodeVerifier
	if enc := s.getEncryptor(); enc != nil {
		encrypted, err := enc.Encrypt(verifier)
		if err != nil {
			return fmt.Errorf("failed to encrypt verifier: %w", err)
		}
		verifier = encrypted
	}

	data, err := json.Marshal(authorizationRequestJSON{
		State:         req.State,
		CodeVerifier:  verifier,
		CodeChallenge: req.CodeChallenge,
		Scope:         req.Scope,
		CreatedAt:     req.CreatedAt,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}

	key := s.requestKey(req.State)
	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save authorization request: %w", err)
	}

	s.logger.Debug("Saved authorization request",
		"state_prefix", safeTruncate(req.State, stateLogLength),
		"ttl", ttl)
	return nil
}

// TakeAuthorizationRequest atomically retrieves and deletes the request for
// the given state. GETDEL makes the read-and-invalidate a single server-side
// operation, so duplicate callbacks racing on one state cannot both succeed.
func (s *Store) TakeAuthorizationRequest(ctx context.Context, state string) (*storage.AuthorizationRequest, error) {
	key := s.requestKey(state)

	data, err := s.client.Do(ctx, s.client.B().Getdel().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take authorization request: %w", err)
	}

	var j authorizationRequestJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization request: %w", err)
	}

	verifier := j.CodeVerifier
	if enc := s.getEncryptor(); enc != nil {
		decrypted, err := enc.Decrypt(verifier)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt verifier: %w", err)
		}
		verifier = decrypted
	}

	req := &storage.AuthorizationRequest{
		State:         j.State,
		CodeVerifier:  verifier,
		CodeChallenge: j.CodeChallenge,
		Scope:         j.Scope,
		CreatedAt:     j.CreatedAt,
		ExpiresAt:     j.ExpiresAt,
	}

	// Key TTLs enforce expiry server-side; clock drift can leave a stale key
	if req.Expired(time.Now()) {
		return nil, storage.ErrNotFound
	}

	return req, nil
}
