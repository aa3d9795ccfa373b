package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/clonex/auth-gateway/providers"
	"github.com/clonex/auth-gateway/security"
	"github.com/clonex/auth-gateway/storage"
)

// AuthorizationRedirect is the result of starting an authorization flow
type AuthorizationRedirect struct {
	// URL is the provider authorization URL the browser is sent to
	URL string

	// State is the anti-forgery token embedded in the URL
	State string
}

// CallbackParams carries the query parameters of a provider callback
type CallbackParams struct {
	Code             string
	State            string
	ErrorCode        string // provider "error" parameter (e.g. access_denied)
	ErrorDescription string
}

// Session is an authenticated session produced by a completed exchange
// or refresh. The HTTP layer turns it into cookies.
type Session struct {
	User  providers.UserInfo
	Token *oauth2.Token

	// Rotated reports whether the refresh token changed (refresh grants only)
	Rotated bool
}

// AccessTokenTTL returns the session lifetime in seconds, falling back to
// the configured default when the provider response carried no expiry or
// the token is already within the clock-skew grace period of expiring
func (s *Server) AccessTokenTTL(token *oauth2.Token) int64 {
	if token.Expiry.IsZero() {
		return s.Config.AccessTokenTTL
	}
	grace := time.Duration(s.Config.ClockSkewGracePeriod) * time.Second
	if security.IsTokenExpiredWithGracePeriod(token.Expiry, grace) {
		return s.Config.AccessTokenTTL
	}
	// Round up so a provider expires_in survives the time.Time round trip
	return int64((time.Until(token.Expiry) + time.Second - 1) / time.Second)
}

// StartAuthorizationFlow begins a new PKCE authorization flow.
// It generates the code verifier, derives the S256 challenge, saves the
// pending request under a fresh state token, and returns the provider
// authorization URL to redirect the browser to.
//
// scope is the space-separated scope string, recorded for auditing; the
// provider applies its own configured scopes to the authorization URL.
func (s *Server) StartAuthorizationFlow(ctx context.Context, scope, clientIP string) (*AuthorizationRedirect, error) {
	verifier := oauth2.GenerateVerifier()
	challenge := DeriveChallenge(verifier)
	state := generateRandomToken()

	now := time.Now()
	req := &storage.AuthorizationRequest{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
		Scope:         scope,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(s.Config.VerifierTTL) * time.Second),
	}
	if err := s.store.SaveAuthorizationRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save authorization request: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogFlowStarted(clientIP, scope)
	}
	if m := s.metrics(); m != nil {
		m.RecordFlowStarted(ctx)
	}

	s.Logger.Debug("Authorization flow started",
		"state_prefix", safeTruncate(state, 8),
		"scope", scope)

	return &AuthorizationRedirect{
		URL:   s.provider.AuthorizationURL(state, challenge, PKCEMethodS256),
		State: state,
	}, nil
}

// CompleteAuthorization processes the provider callback: it validates the
// callback parameters, atomically consumes the pending authorization
// request, exchanges the code with the verifier, and fetches the user
// identity. Every failure carries a FlowError reason code.
//
// The pending request is consumed before the exchange regardless of
// outcome: a failed exchange never leaves a reusable verifier behind.
func (s *Server) CompleteAuthorization(ctx context.Context, cb CallbackParams, clientIP string) (*Session, error) {
	session, err := s.completeAuthorization(ctx, cb, clientIP)
	if err != nil {
		reason := ReasonOf(err)
		if s.Auditor != nil {
			s.Auditor.LogCallbackFailure(clientIP, reason)
		}
		if m := s.metrics(); m != nil {
			m.RecordCallbackProcessed(ctx, reason)
		}
		s.Logger.Warn("Authorization callback failed",
			"reason", reason,
			"state_prefix", safeTruncate(cb.State, 8),
			"error", err)
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogSessionIssued(session.User.ID, clientIP)
	}
	if m := s.metrics(); m != nil {
		m.RecordCallbackProcessed(ctx, "success")
	}

	s.Logger.Info("Session issued",
		"username", session.User.Username,
		"token_prefix", safeTruncate(session.Token.AccessToken, 8))

	return session, nil
}

func (s *Server) completeAuthorization(ctx context.Context, cb CallbackParams, clientIP string) (*Session, error) {
	// A provider error parameter takes precedence: the user denied consent
	// or the provider refused the request before issuing a code.
	if cb.ErrorCode != "" {
		return nil, NewFlowError(ReasonProviderRejected,
			fmt.Errorf("provider returned error %q: %s", cb.ErrorCode, cb.ErrorDescription))
	}

	if cb.Code == "" {
		return nil, NewFlowError(ReasonMissingCode, fmt.Errorf("callback has no code parameter"))
	}
	if cb.State == "" {
		return nil, NewFlowError(ReasonMissingState, fmt.Errorf("callback has no state parameter"))
	}
	if err := s.validateStateParameter(cb.State); err != nil {
		return nil, NewFlowError(ReasonStateMismatch, err)
	}

	// Single-use: the request is atomically consumed here. A replayed
	// callback with the same state finds nothing and never reaches the
	// provider.
	req, err := s.store.TakeAuthorizationRequest(ctx, cb.State)
	if err != nil {
		if errors.Is(err, storage.ErrStateMismatch) {
			return nil, NewFlowError(ReasonStateMismatch, err)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewFlowError(ReasonMissingVerifier, err)
		}
		return nil, fmt.Errorf("failed to load authorization request: %w", err)
	}

	// Constant-time state check on top of the keyed lookup, covering
	// backends whose lookup is not exact-match (the cookie store).
	if subtle.ConstantTimeCompare([]byte(req.State), []byte(cb.State)) != 1 {
		return nil, NewFlowError(ReasonStateMismatch, fmt.Errorf("stored state does not match callback state"))
	}

	if req.Expired(time.Now()) {
		return nil, NewFlowError(ReasonMissingVerifier, fmt.Errorf("authorization request expired"))
	}
	if err := validateCodeVerifier(req.CodeVerifier); err != nil {
		return nil, NewFlowError(ReasonMissingVerifier, err)
	}
	if err := verifyChallenge(req.CodeChallenge, req.CodeVerifier); err != nil {
		return nil, NewFlowError(ReasonMissingVerifier, err)
	}

	exchangeStart := time.Now()
	token, err := s.provider.ExchangeCode(ctx, cb.Code, req.CodeVerifier)
	exchangeMs := float64(time.Since(exchangeStart).Milliseconds())
	if err != nil {
		flowErr := classifyProviderError(err)
		if s.Auditor != nil {
			s.Auditor.LogExchangeFailed(clientIP, flowErr.Reason)
		}
		if m := s.metrics(); m != nil {
			m.RecordCodeExchange(ctx, flowErr.Reason, exchangeMs)
		}
		return nil, flowErr
	}
	if m := s.metrics(); m != nil {
		m.RecordCodeExchange(ctx, "success", exchangeMs)
	}

	if token.AccessToken == "" {
		return nil, NewFlowError(ReasonMalformedResponse, fmt.Errorf("token response has no access_token"))
	}
	if security.IsTokenExpired(token.Expiry) {
		return nil, NewFlowError(ReasonMalformedResponse, fmt.Errorf("token response is already expired"))
	}

	userInfo, err := s.provider.ValidateToken(ctx, token.AccessToken)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if userInfo.ID == "" {
		return nil, NewFlowError(ReasonMalformedResponse, fmt.Errorf("user info response has no id"))
	}

	return &Session{User: *userInfo, Token: token}, nil
}

// RefreshSession exchanges a refresh token for a new session.
// When the provider rotates the refresh token, Session.Rotated is true and
// the caller must replace the stored refresh token.
func (s *Server) RefreshSession(ctx context.Context, refreshToken, clientIP string) (*Session, error) {
	if refreshToken == "" {
		return nil, NewFlowError(ReasonSessionExpired, fmt.Errorf("no refresh token"))
	}

	token, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		flowErr := classifyProviderError(err)
		// A structured rejection of a refresh grant means the session is
		// gone (revoked, expired, or rotated away), not a flow bug.
		if flowErr.Reason == ReasonProviderRejected {
			flowErr = NewFlowError(ReasonSessionExpired, err)
		}
		s.Logger.Warn("Session refresh failed",
			"reason", flowErr.Reason,
			"refresh_prefix", safeTruncate(refreshToken, 8))
		return nil, flowErr
	}

	if token.AccessToken == "" {
		return nil, NewFlowError(ReasonMalformedResponse, fmt.Errorf("refresh response has no access_token"))
	}
	if security.IsTokenExpired(token.Expiry) {
		return nil, NewFlowError(ReasonMalformedResponse, fmt.Errorf("refresh response is already expired"))
	}

	rotated := token.RefreshToken != "" && token.RefreshToken != refreshToken

	userInfo, err := s.provider.ValidateToken(ctx, token.AccessToken)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	if s.Auditor != nil {
		s.Auditor.LogSessionRefreshed(userInfo.ID, clientIP, rotated)
	}
	if m := s.metrics(); m != nil {
		m.RecordSessionRefreshed(ctx, rotated)
	}

	return &Session{User: *userInfo, Token: token, Rotated: rotated}, nil
}

// ValidateSession resolves the user identity for an access token.
// A structured provider rejection maps to session_expired so the HTTP
// layer clears cookies and answers 401.
func (s *Server) ValidateSession(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	if accessToken == "" {
		return nil, NewFlowError(ReasonSessionExpired, fmt.Errorf("no access token"))
	}

	userInfo, err := s.provider.ValidateToken(ctx, accessToken)
	if err != nil {
		flowErr := classifyProviderError(err)
		if flowErr.Reason == ReasonProviderRejected {
			flowErr = NewFlowError(ReasonSessionExpired, err)
		}
		return nil, flowErr
	}

	return userInfo, nil
}

// Logout revokes the session tokens with the provider on a best-effort
// basis. Revocation failures are logged but never surfaced: the cookies
// are cleared regardless, which is what ends the session locally.
func (s *Server) Logout(ctx context.Context, userID, accessToken, refreshToken, clientIP string) {
	for _, token := range []string{accessToken, refreshToken} {
		if token == "" {
			continue
		}
		if err := s.provider.RevokeToken(ctx, token); err != nil {
			s.Logger.Warn("Token revocation failed",
				"provider", s.provider.Name(),
				"token_prefix", safeTruncate(token, 8),
				"error", err)
		}
	}

	if s.Auditor != nil {
		s.Auditor.LogSessionRevoked(userID, clientIP)
	}
	if m := s.metrics(); m != nil {
		m.RecordSessionRevoked(ctx)
	}
}

// classifyProviderError maps a provider interaction failure to a FlowError:
//   - *oauth2.RetrieveError: the provider answered with a structured OAuth
//     error (provider_rejected)
//   - *providers.StatusError: the provider rejected an API request outside
//     the token flow; 4xx is provider_rejected, 5xx provider_unreachable
//   - network-level failures (url.Error, net.Error, DNS, timeouts):
//     provider_unreachable
//   - anything else, including JSON decode failures: malformed_response
func classifyProviderError(err error) *FlowError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return NewFlowError(ReasonProviderRejected, err)
	}
	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 {
			return NewFlowError(ReasonProviderUnreachable, err)
		}
		return NewFlowError(ReasonProviderRejected, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewFlowError(ReasonProviderUnreachable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewFlowError(ReasonProviderUnreachable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewFlowError(ReasonProviderUnreachable, err)
	}
	// oauth2 wraps transport failures with a "cannot fetch token" prefix
	// and no typed error when the response never arrived.
	if strings.Contains(err.Error(), "cannot fetch token") && strings.Contains(err.Error(), "connection refused") {
		return NewFlowError(ReasonProviderUnreachable, err)
	}

	return NewFlowError(ReasonMalformedResponse, err)
}
