package session

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/clonex/auth-gateway/security"
)

// Cookie names. The twitter_* names are the session contract with the
// frontend; "session" is the legacy cookie older frontend builds check
// for login state.
const (
	// CookieAccessToken holds the provider access token
	CookieAccessToken = "twitter_access_token"

	// CookieRefreshToken holds the provider refresh token. It is
	// path-scoped to the refresh endpoint so it never rides along on
	// ordinary API requests.
	CookieRefreshToken = "twitter_refresh_token"

	// CookieUserID holds the provider user ID. Not HttpOnly: the frontend
	// reads it to render the logged-in state.
	CookieUserID = "twitter_user_id"

	// CookieVerifier holds the pending authorization request between
	// initiation and callback (cookie verifier backend only)
	CookieVerifier = "clonex_verifier"

	// CookieLegacySession is kept for older frontend builds that key login
	// state off its presence. Its value is an opaque UUID.
	CookieLegacySession = "session"
)

// DefaultRefreshCookiePath is where the refresh cookie is scoped to
const DefaultRefreshCookiePath = "/api/auth/refresh"

// Config holds cookie attributes shared by all session cookies
type Config struct {
	// Secure marks cookies Secure. Enable everywhere except local
	// development over plain HTTP.
	Secure bool

	// Domain is the cookie domain; empty means host-only
	Domain string

	// RefreshCookiePath scopes the refresh token cookie.
	// Default: DefaultRefreshCookiePath.
	RefreshCookiePath string

	// Encryptor encrypts token cookie values at rest in the browser.
	// Nil or disabled means plaintext values (matching providers whose
	// tokens are already opaque bearer strings).
	Encryptor *security.Encryptor

	Logger *slog.Logger
}

// Manager writes, reads, and clears the session cookies
type Manager struct {
	config Config
}

// NewManager creates a cookie manager
func NewManager(config Config) *Manager {
	if config.RefreshCookiePath == "" {
		config.RefreshCookiePath = DefaultRefreshCookiePath
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Manager{config: config}
}

// Tokens is the session state read back from a request's cookies
type Tokens struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Write sets the session cookies for a token set.
// accessTTL and refreshTTL are lifetimes in seconds; the access token,
// user ID, and legacy session cookies share accessTTL, the refresh cookie
// gets refreshTTL.
func (m *Manager) Write(w http.ResponseWriter, userID string, token *oauth2.Token, accessTTL, refreshTTL int64) error {
	accessValue, err := m.seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}

	m.setCookie(w, CookieAccessToken, accessValue, "/", int(accessTTL), true)
	m.setCookie(w, CookieUserID, userID, "/", int(accessTTL), false)
	m.setCookie(w, CookieLegacySession, uuid.NewString(), "/", int(accessTTL), true)

	if token.RefreshToken != "" {
		refreshValue, err := m.seal(token.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to seal refresh token: %w", err)
		}
		m.setCookie(w, CookieRefreshToken, refreshValue, m.config.RefreshCookiePath, int(refreshTTL), true)
	}

	return nil
}

// Read extracts the session tokens from a request's cookies.
// Missing cookies yield empty fields, not errors; whether an empty token
// is fatal depends on the endpoint.
func (m *Manager) Read(r *http.Request) Tokens {
	var t Tokens

	if c, err := r.Cookie(CookieAccessToken); err == nil {
		if v, err := m.open(c.Value); err == nil {
			t.AccessToken = v
		} else {
			m.config.Logger.Warn("Discarding undecryptable access token cookie", "error", err)
		}
	}
	if c, err := r.Cookie(CookieRefreshToken); err == nil {
		if v, err := m.open(c.Value); err == nil {
			t.RefreshToken = v
		} else {
			m.config.Logger.Warn("Discarding undecryptable refresh token cookie", "error", err)
		}
	}
	if c, err := r.Cookie(CookieUserID); err == nil {
		t.UserID = c.Value
	}

	return t
}

// Clear expires every session cookie, including the verifier and legacy
// cookies. Used on logout and whenever the backend reports the session
// expired.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.setCookie(w, CookieAccessToken, "", "/", -1, true)
	m.setCookie(w, CookieUserID, "", "/", -1, false)
	m.setCookie(w, CookieLegacySession, "", "/", -1, true)
	m.setCookie(w, CookieVerifier, "", "/", -1, true)
	m.setCookie(w, CookieRefreshToken, "", m.config.RefreshCookiePath, -1, true)
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value, path string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   m.config.Domain,
		HttpOnly: httpOnly,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (m *Manager) seal(value string) (string, error) {
	if m.config.Encryptor == nil {
		return value, nil
	}
	return m.config.Encryptor.Encrypt(value)
}

func (m *Manager) open(value string) (string, error) {
	if m.config.Encryptor == nil {
		return value, nil
	}
	return m.config.Encryptor.Decrypt(value)
}
