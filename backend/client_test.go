package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

var testCreds = Credentials{AccessToken: "access-abc", UserID: "12345"}

func TestClientAttachesCredentials(t *testing.T) {
	var gotAuth, gotUserID, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUserID = r.Header.Get("X-Twitter-User-Id")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	body, err := client.Timeline(context.Background(), testCreds, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, "Bearer access-abc", gotAuth)
	assert.Equal(t, "12345", gotUserID)
	assert.Equal(t, "/api/timeline", gotPath)
}

func TestClientPagination(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Timeline(context.Background(), testCreds, "page-2")
	require.NoError(t, err)
	assert.Equal(t, "next_token=page-2", gotQuery)

	_, err = client.Posts(context.Background(), testCreds, "67890", "page-3")
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "user_id=67890")
	assert.Contains(t, gotQuery, "next_token=page-3")
}

func TestClientPostEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		call     func(c *Client) (json.RawMessage, error)
		wantPath string
	}{
		{
			name: "create analysis",
			call: func(c *Client) (json.RawMessage, error) {
				return c.CreateAnalysis(context.Background(), testCreds, json.RawMessage(`{"depth":"full"}`))
			},
			wantPath: "/api/analysis/create",
		},
		{
			name: "generate tweets",
			call: func(c *Client) (json.RawMessage, error) {
				return c.GenerateTweets(context.Background(), testCreds, json.RawMessage(`{"topic":"go"}`))
			},
			wantPath: "/api/generate",
		},
		{
			name: "create checkout session",
			call: func(c *Client) (json.RawMessage, error) {
				return c.CreateCheckoutSession(context.Background(), testCreds, json.RawMessage(`{"plan":"pro"}`))
			},
			wantPath: "/api/stripe/create-checkout-session",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotMethod, gotContentType string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotMethod = r.Method
				gotContentType = r.Header.Get("Content-Type")
				_, _ = w.Write([]byte(`{"ok":true}`))
			})

			body, err := tt.call(client)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(body))
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, http.MethodPost, gotMethod)
			assert.Equal(t, "application/json", gotContentType)
		})
	}
}

func TestClientSessionExpired(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Timeline(context.Background(), testCreds, "")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestClientEmptyAccessToken(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Timeline(context.Background(), Credentials{}, "")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, called, "empty token must not reach the backend")
}

func TestClientAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	})

	_, err := client.Timeline(context.Background(), testCreds, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "/api/timeline", apiErr.Endpoint)
	assert.JSONEq(t, `{"error":"upstream down"}`, string(apiErr.Body))
}

func TestClientNetworkError(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Timeline(context.Background(), testCreds, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "base URL is required")
}
