package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/clonex/auth-gateway/providers"
	flow "github.com/clonex/auth-gateway/server"
	"github.com/clonex/auth-gateway/storage/memory"
)

// rewriteTransport redirects Twitter API requests to the test server
type rewriteTransport struct {
	server *httptest.Server
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Host, "twitter.com") {
		testURL, _ := url.Parse(t.server.URL + req.URL.Path)
		req.URL = testURL
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newTestProvider(t *testing.T, server *httptest.Server) *Provider {
	t.Helper()

	cfg := &Config{
		ClientID:    "test-client-id",
		RedirectURL: "https://app.example.com/auth/callback",
	}
	if server != nil {
		cfg.HTTPClient = &http.Client{Transport: &rewriteTransport{server: server}}
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	return provider
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(&Config{RedirectURL: "https://example.com/cb"}); err == nil {
		t.Error("expected error for missing client ID")
	}
	if _, err := NewProvider(&Config{ClientID: "id"}); err == nil {
		t.Error("expected error for missing redirect URL")
	}
}

func TestAuthorizationURL(t *testing.T) {
	provider := newTestProvider(t, nil)

	authURL := provider.AuthorizationURL("test-state", "test-challenge", "S256")

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("failed to parse authorization URL: %v", err)
	}
	if u.Host != "twitter.com" {
		t.Errorf("host = %q, want twitter.com", u.Host)
	}

	q := u.Query()
	checks := map[string]string{
		"state":                 "test-state",
		"code_challenge":        "test-challenge",
		"code_challenge_method": "S256",
		"client_id":             "test-client-id",
		"redirect_uri":          "https://app.example.com/auth/callback",
		"response_type":         "code",
	}
	for param, want := range checks {
		if got := q.Get(param); got != want {
			t.Errorf("%s = %q, want %q", param, got, want)
		}
	}
	if !strings.Contains(q.Get("scope"), "tweet.read") {
		t.Errorf("scope = %q, want default scopes", q.Get("scope"))
	}
}

func TestAuthorizationURLWithoutChallenge(t *testing.T) {
	provider := newTestProvider(t, nil)

	authURL := provider.AuthorizationURL("test-state", "", "")
	if strings.Contains(authURL, "code_challenge") {
		t.Error("URL should not carry an empty code_challenge")
	}
}

func TestExchangeCode(t *testing.T) {
	var gotVerifier, gotCode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		gotCode = r.FormValue("code")
		gotVerifier = r.FormValue("code_verifier")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "issued-access-token",
			"refresh_token": "issued-refresh-token",
			"token_type":    "bearer",
			"expires_in":    7200,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	token, err := provider.ExchangeCode(context.Background(), "auth-code", "the-verifier")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if token.AccessToken != "issued-access-token" {
		t.Errorf("AccessToken = %q, want issued-access-token", token.AccessToken)
	}
	if token.RefreshToken != "issued-refresh-token" {
		t.Errorf("RefreshToken = %q, want issued-refresh-token", token.RefreshToken)
	}
	if gotCode != "auth-code" {
		t.Errorf("code sent = %q, want auth-code", gotCode)
	}
	if gotVerifier != "the-verifier" {
		t.Errorf("code_verifier sent = %q, want the-verifier", gotVerifier)
	}
}

func TestExchangeCodeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	if _, err := provider.ExchangeCode(context.Background(), "bad-code", "verifier"); err == nil {
		t.Error("expected error for rejected exchange")
	}
}

func TestRefreshToken(t *testing.T) {
	var gotGrantType, gotRefreshToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		gotGrantType = r.FormValue("grant_type")
		gotRefreshToken = r.FormValue("refresh_token")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "refreshed-access-token",
			"refresh_token": "rotated-refresh-token",
			"token_type":    "bearer",
			"expires_in":    7200,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	token, err := provider.RefreshToken(context.Background(), "old-refresh-token")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	if gotGrantType != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", gotGrantType)
	}
	if gotRefreshToken != "old-refresh-token" {
		t.Errorf("refresh_token sent = %q, want old-refresh-token", gotRefreshToken)
	}
	if token.AccessToken != "refreshed-access-token" {
		t.Errorf("AccessToken = %q, want refreshed-access-token", token.AccessToken)
	}
	if token.RefreshToken != "rotated-refresh-token" {
		t.Errorf("RefreshToken = %q, want rotated-refresh-token", token.RefreshToken)
	}
}

func TestValidateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer valid-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"id":       "2244994945",
				"name":     "X Dev",
				"username": "XDevelopers",
			},
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	userInfo, err := provider.ValidateToken(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if userInfo.ID != "2244994945" {
		t.Errorf("ID = %q, want 2244994945", userInfo.ID)
	}
	if userInfo.Username != "XDevelopers" {
		t.Errorf("Username = %q, want XDevelopers", userInfo.Username)
	}
	if userInfo.Name != "X Dev" {
		t.Errorf("Name = %q, want X Dev", userInfo.Name)
	}
}

func TestValidateTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	_, err := provider.ValidateToken(context.Background(), "stale-token")
	if err == nil {
		t.Fatal("expected error for rejected token")
	}

	// The rejection must be typed so the flow layer can tell an expired
	// token apart from a garbled response
	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %T, want *providers.StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnauthorized)
	}
}

func TestValidateSessionExpiredToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401}`))
	}))
	defer upstream.Close()

	provider := newTestProvider(t, upstream)
	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := flow.New(provider, store, &flow.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = srv.ValidateSession(context.Background(), "expired-access-token")
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if got := flow.ReasonOf(err); got != flow.ReasonSessionExpired {
		t.Errorf("reason = %q, want %q", got, flow.ReasonSessionExpired)
	}
}

func TestValidateTokenMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	if _, err := provider.ValidateToken(context.Background(), "valid-token"); err == nil {
		t.Error("expected error for response without user id")
	}
}

func TestRevokeToken(t *testing.T) {
	var gotToken, gotClientID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/oauth2/revoke" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		gotToken = r.FormValue("token")
		gotClientID = r.FormValue("client_id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	if err := provider.RevokeToken(context.Background(), "doomed-token"); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if gotToken != "doomed-token" {
		t.Errorf("token sent = %q, want doomed-token", gotToken)
	}
	if gotClientID != "test-client-id" {
		t.Errorf("client_id sent = %q, want test-client-id", gotClientID)
	}
}

func TestRevokeTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	provider := newTestProvider(t, server)

	if err := provider.RevokeToken(context.Background(), "token"); err == nil {
		t.Error("expected error for failed revocation")
	}
}
