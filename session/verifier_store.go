package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clonex/auth-gateway/storage"
)

type contextKey int

const carrierKey contextKey = iota

// carrier gives the cookie store access to the HTTP exchange a flow
// operation is running inside
type carrier struct {
	w http.ResponseWriter
	r *http.Request
}

// WithHTTP attaches the HTTP exchange to a context so the cookie verifier
// store can read and write cookies. The HTTP layer calls this before
// invoking flow operations when the cookie backend is configured.
func WithHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, carrierKey, &carrier{w: w, r: r})
}

func carrierFrom(ctx context.Context) (*carrier, error) {
	c, ok := ctx.Value(carrierKey).(*carrier)
	if !ok {
		return nil, fmt.Errorf("no HTTP exchange on context (cookie verifier store requires session.WithHTTP)")
	}
	return c, nil
}

// verifierCookie is the JSON payload stored in the verifier cookie.
// State and verifier travel together: the cookie itself binds the pending
// request to this browser, so a forged callback state from another origin
// finds no matching cookie.
type verifierCookie struct {
	State         string `json:"state"`
	CodeVerifier  string `json:"verifier"`
	CodeChallenge string `json:"challenge,omitempty"`
	Scope         string `json:"scope,omitempty"`
	CreatedAt     int64  `json:"iat"`
	ExpiresAt     int64  `json:"exp"`
}

// CookieVerifierStore implements storage.VerifierStore on a short-lived
// HttpOnly cookie. It needs no server-side state and is the default
// backend for single-instance deployments.
type CookieVerifierStore struct {
	config Config
}

// NewCookieVerifierStore creates a cookie-backed verifier store.
// An enabled Encryptor in the config is strongly recommended: without it
// the verifier is only base64-encoded in the browser.
func NewCookieVerifierStore(config Config) *CookieVerifierStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &CookieVerifierStore{config: config}
}

// SaveAuthorizationRequest writes the pending request into the verifier
// cookie on the response attached to ctx
func (s *CookieVerifierStore) SaveAuthorizationRequest(ctx context.Context, req *storage.AuthorizationRequest) error {
	c, err := carrierFrom(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(verifierCookie{
		State:         req.State,
		CodeVerifier:  req.CodeVerifier,
		CodeChallenge: req.CodeChallenge,
		Scope:         req.Scope,
		CreatedAt:     req.CreatedAt.Unix(),
		ExpiresAt:     req.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}

	value, err := s.seal(payload)
	if err != nil {
		return fmt.Errorf("failed to seal authorization request: %w", err)
	}

	maxAge := int(time.Until(req.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return fmt.Errorf("authorization request already expired")
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieVerifier,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})

	return nil
}

// TakeAuthorizationRequest reads and immediately clears the verifier
// cookie, enforcing single use. Returns storage.ErrNotFound when no
// cookie is present or it cannot be decoded, and storage.ErrStateMismatch
// when the cookie belongs to a different state than the one presented.
func (s *CookieVerifierStore) TakeAuthorizationRequest(ctx context.Context, state string) (*storage.AuthorizationRequest, error) {
	c, err := carrierFrom(ctx)
	if err != nil {
		return nil, err
	}

	cookie, err := c.r.Cookie(CookieVerifier)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	// Clear before validating: a malformed or mismatched cookie must not
	// survive for a second attempt.
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieVerifier,
		Value:    "",
		Path:     "/",
		Domain:   s.config.Domain,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	payload, err := s.open(cookie.Value)
	if err != nil {
		s.config.Logger.Warn("Discarding undecodable verifier cookie", "error", err)
		return nil, storage.ErrNotFound
	}

	var vc verifierCookie
	if err := json.Unmarshal(payload, &vc); err != nil {
		s.config.Logger.Warn("Discarding unparsable verifier cookie", "error", err)
		return nil, storage.ErrNotFound
	}

	if vc.State != state {
		return nil, storage.ErrStateMismatch
	}

	return &storage.AuthorizationRequest{
		State:         vc.State,
		CodeVerifier:  vc.CodeVerifier,
		CodeChallenge: vc.CodeChallenge,
		Scope:         vc.Scope,
		CreatedAt:     time.Unix(vc.CreatedAt, 0),
		ExpiresAt:     time.Unix(vc.ExpiresAt, 0),
	}, nil
}

func (s *CookieVerifierStore) seal(payload []byte) (string, error) {
	if s.config.Encryptor != nil && s.config.Encryptor.IsEnabled() {
		return s.config.Encryptor.Encrypt(string(payload))
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

func (s *CookieVerifierStore) open(value string) ([]byte, error) {
	if s.config.Encryptor != nil && s.config.Encryptor.IsEnabled() {
		plain, err := s.config.Encryptor.Decrypt(value)
		if err != nil {
			return nil, err
		}
		return []byte(plain), nil
	}
	return base64.RawURLEncoding.DecodeString(value)
}

// verify interface compliance
var _ storage.VerifierStore = (*CookieVerifierStore)(nil)
