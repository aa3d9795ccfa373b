// Package mock provides a mock implementation of the Provider interface for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/clonex/auth-gateway/providers"
)

// Provider is a mock implementation of the providers.Provider interface.
// Each method delegates to a corresponding Func field so tests can substitute
// behavior without monkey-patching shared state.
type Provider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// AuthorizationURLFunc is called when AuthorizationURL() is invoked
	AuthorizationURLFunc func(state, codeChallenge, codeChallengeMethod string) string

	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// RefreshTokenFunc is called when RefreshToken() is invoked
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// ValidateTokenFunc is called when ValidateToken() is invoked
	ValidateTokenFunc func(ctx context.Context, accessToken string) (*providers.UserInfo, error)

	// RevokeTokenFunc is called when RevokeToken() is invoked
	RevokeTokenFunc func(ctx context.Context, token string) error

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewProvider creates a new mock provider with default implementations
func NewProvider() *Provider {
	return &Provider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		AuthorizationURLFunc: func(state, codeChallenge, codeChallengeMethod string) string {
			return fmt.Sprintf("https://mock.example.com/authorize?state=%s&code_challenge=%s&code_challenge_method=%s",
				state, codeChallenge, codeChallengeMethod)
		},
		ExchangeCodeFunc: func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken:  "mock-access-token",
				RefreshToken: "mock-refresh-token",
				TokenType:    "Bearer",
			}, nil
		},
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken:  "mock-refreshed-access-token",
				RefreshToken: "mock-rotated-refresh-token",
				TokenType:    "Bearer",
			}, nil
		},
		ValidateTokenFunc: func(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
			return &providers.UserInfo{
				ID:       "mock-user-id",
				Username: "mockuser",
				Name:     "Mock User",
			}, nil
		},
		RevokeTokenFunc: func(ctx context.Context, token string) error {
			return nil
		},
	}
}

func (m *Provider) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CallCounts == nil {
		m.CallCounts = make(map[string]int)
	}
	m.CallCounts[method]++
}

// Calls returns how many times the given method was invoked
func (m *Provider) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

// Name implements providers.Provider
func (m *Provider) Name() string {
	m.recordCall("Name")
	return m.NameFunc()
}

// AuthorizationURL implements providers.Provider
func (m *Provider) AuthorizationURL(state, codeChallenge, codeChallengeMethod string) string {
	m.recordCall("AuthorizationURL")
	return m.AuthorizationURLFunc(state, codeChallenge, codeChallengeMethod)
}

// ExchangeCode implements providers.Provider
func (m *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	m.recordCall("ExchangeCode")
	return m.ExchangeCodeFunc(ctx, code, codeVerifier)
}

// RefreshToken implements providers.Provider
func (m *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.recordCall("RefreshToken")
	return m.RefreshTokenFunc(ctx, refreshToken)
}

// ValidateToken implements providers.Provider
func (m *Provider) ValidateToken(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	m.recordCall("ValidateToken")
	return m.ValidateTokenFunc(ctx, accessToken)
}

// RevokeToken implements providers.Provider
func (m *Provider) RevokeToken(ctx context.Context, token string) error {
	m.recordCall("RevokeToken")
	return m.RevokeTokenFunc(ctx, token)
}

// verify interface compliance
var _ providers.Provider = (*Provider)(nil)
