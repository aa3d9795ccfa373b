package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCE constants (RFC 7636). Only the S256 challenge method is supported;
// the deprecated plain method is rejected unconditionally.
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
	PKCEMethodS256        = "S256"
)

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(sha256(verifier)) without padding (RFC 7636 Section 4.2).
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// validateCodeVerifier checks a verifier against RFC 7636 requirements:
// 43-128 characters drawn from [A-Za-z0-9-._~].
func validateCodeVerifier(verifier string) error {
	if verifier == "" {
		return fmt.Errorf("code_verifier is empty")
	}
	if len(verifier) < MinCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at least %d characters (RFC 7636)", MinCodeVerifierLength)
	}
	if len(verifier) > MaxCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at most %d characters (RFC 7636)", MaxCodeVerifierLength)
	}

	for _, ch := range verifier {
		isValid := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~'
		if !isValid {
			return fmt.Errorf("code_verifier contains invalid characters (must be [A-Za-z0-9-._~])")
		}
	}

	return nil
}

// verifyChallenge checks that a stored challenge matches the stored
// verifier. A mismatch means the pending request was corrupted or tampered
// with in storage; the verifier must not be sent to the provider.
// Constant-time comparison prevents timing side channels.
func verifyChallenge(challenge, verifier string) error {
	if challenge == "" {
		// Older records may predate challenge retention
		return nil
	}

	computed := DeriveChallenge(verifier)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match stored code_challenge")
	}

	return nil
}

// validateStateParameter enforces minimum state entropy before any store
// lookup. Short state values could be brute-forced via timing side
// channels; bounding the length keeps the search space infeasible.
func (s *Server) validateStateParameter(state string) error {
	if state == "" {
		return fmt.Errorf("state parameter is required for CSRF protection")
	}
	if len(state) < s.Config.MinStateLength {
		return fmt.Errorf("state parameter must be at least %d characters", s.Config.MinStateLength)
	}
	return nil
}
