// Package providers defines the interface for OAuth identity providers and
// implements provider-specific logic for Twitter/X and test doubles.
package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider defines the interface for OAuth identity providers.
// The gateway is a relying party: it redirects users to the provider,
// exchanges authorization codes, and refreshes or revokes the resulting
// tokens. All token types are golang.org/x/oauth2.Token.
type Provider interface {
	// Name returns the provider name (e.g., "twitter")
	Name() string

	// AuthorizationURL generates the URL to redirect users for authentication.
	// codeChallenge and codeChallengeMethod carry the PKCE parameters.
	AuthorizationURL(state string, codeChallenge string, codeChallengeMethod string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// codeVerifier is the PKCE verifier generated at initiation time.
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error)

	// RefreshToken mints a new token set from a refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// ValidateToken validates an access token and returns user information
	ValidateToken(ctx context.Context, accessToken string) (*UserInfo, error)

	// RevokeToken revokes a token at the provider
	RevokeToken(ctx context.Context, token string) error
}

// UserInfo represents user information from a provider
type UserInfo struct {
	// ID is the unique user identifier from the provider
	ID string

	// Username is the user's handle (e.g., Twitter screen name)
	Username string

	// Name is the user's display name
	Name string
}
