package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/clonex/auth-gateway/security"
	"github.com/clonex/auth-gateway/storage"
)

func newTestRequest(verifier string) *storage.AuthorizationRequest {
	now := time.Now()
	return &storage.AuthorizationRequest{
		State:         "state-" + oauth2.GenerateVerifier(),
		CodeVerifier:  verifier,
		CodeChallenge: "challenge-value",
		Scope:         "tweet.read users.read",
		CreatedAt:     now,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}

// saveToCookie runs a save and returns the cookies it produced
func saveToCookie(t *testing.T, store *CookieVerifierStore, req *storage.AuthorizationRequest) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/auth/twitter", nil)
	ctx := WithHTTP(context.Background(), rec, r)

	require.NoError(t, store.SaveAuthorizationRequest(ctx, req))
	return rec.Result().Cookies()
}

func TestCookieStoreSave(t *testing.T) {
	store := NewCookieVerifierStore(Config{Secure: true})
	req := newTestRequest(oauth2.GenerateVerifier())

	cookies := saveToCookie(t, store, req)
	c := cookieByName(t, cookies, CookieVerifier)
	require.NotNil(t, c, "verifier cookie not set")
	assert.True(t, c.HttpOnly, "verifier cookie must be HttpOnly")
	assert.True(t, c.Secure)
	assert.Greater(t, c.MaxAge, 0)
	assert.LessOrEqual(t, c.MaxAge, 600)
	assert.NotContains(t, c.Value, req.CodeVerifier,
		"raw verifier must not appear in the cookie value")
}

func TestCookieStoreRoundTrip(t *testing.T) {
	store := NewCookieVerifierStore(Config{})
	verifier := oauth2.GenerateVerifier()
	req := newTestRequest(verifier)

	cookies := saveToCookie(t, store, req)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/auth/callback", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	ctx := WithHTTP(context.Background(), rec, r)

	got, err := store.TakeAuthorizationRequest(ctx, req.State)
	require.NoError(t, err)
	assert.Equal(t, verifier, got.CodeVerifier)
	assert.Equal(t, req.State, got.State)
	assert.Equal(t, req.Scope, got.Scope)

	// Take must clear the cookie
	cleared := cookieByName(t, rec.Result().Cookies(), CookieVerifier)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestCookieStoreEncryptedRoundTrip(t *testing.T) {
	enc, err := security.NewEncryptorFromSecret("verifier-secret")
	require.NoError(t, err)
	store := NewCookieVerifierStore(Config{Encryptor: enc})

	verifier := oauth2.GenerateVerifier()
	req := newTestRequest(verifier)
	cookies := saveToCookie(t, store, req)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/auth/callback", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}

	got, err := store.TakeAuthorizationRequest(WithHTTP(context.Background(), rec, r), req.State)
	require.NoError(t, err)
	assert.Equal(t, verifier, got.CodeVerifier)
}

func TestCookieStoreStateMismatch(t *testing.T) {
	store := NewCookieVerifierStore(Config{})
	req := newTestRequest(oauth2.GenerateVerifier())
	cookies := saveToCookie(t, store, req)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/auth/callback", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}

	_, err := store.TakeAuthorizationRequest(WithHTTP(context.Background(), rec, r), "different-state")
	assert.ErrorIs(t, err, storage.ErrStateMismatch)

	// Even a mismatched take consumes the cookie
	cleared := cookieByName(t, rec.Result().Cookies(), CookieVerifier)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestCookieStoreMissingCookie(t *testing.T) {
	store := NewCookieVerifierStore(Config{})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/auth/callback", nil)

	_, err := store.TakeAuthorizationRequest(WithHTTP(context.Background(), rec, r), "some-state")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCookieStoreGarbageCookie(t *testing.T) {
	store := NewCookieVerifierStore(Config{})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/auth/callback", nil)
	r.AddCookie(&http.Cookie{Name: CookieVerifier, Value: "%%%garbage%%%"})

	_, err := store.TakeAuthorizationRequest(WithHTTP(context.Background(), rec, r), "some-state")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCookieStoreRequiresHTTPContext(t *testing.T) {
	store := NewCookieVerifierStore(Config{})

	err := store.SaveAuthorizationRequest(context.Background(), newTestRequest(oauth2.GenerateVerifier()))
	assert.Error(t, err)

	_, err = store.TakeAuthorizationRequest(context.Background(), "state")
	assert.Error(t, err)
}
