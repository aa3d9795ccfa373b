// Package twitter implements the providers.Provider interface against the
// Twitter/X v2 API (OAuth2 Authorization Code + PKCE, users/me lookup,
// token revocation).
package twitter
