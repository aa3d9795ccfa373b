package server

import (
	"log/slog"
)

// Config holds flow configuration
type Config struct {
	// VerifierTTL is how long a pending authorization request stays valid
	// between initiation and callback
	VerifierTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is the session cookie lifetime used when the provider
	// response carries no expires_in
	AccessTokenTTL int64 // seconds, default: 7200 (2 hours)

	// RefreshTokenTTL is the refresh cookie lifetime
	RefreshTokenTTL int64 // seconds, default: 2592000 (30 days)

	// SuccessRedirectURL is where the browser lands after a completed login
	SuccessRedirectURL string // default: "/dashboard"

	// ErrorRedirectURL is the base URL for failure redirects; the failure
	// reason is appended as ?error={reason}
	ErrorRedirectURL string // default: "/"

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// WARNING: Only enable behind a trusted reverse proxy. When false, the
	// direct connection IP is used (secure by default).
	TrustProxy bool // default: false

	// ClockSkewGracePeriod is the grace period for token expiration checks
	// (in seconds), preventing false expirations from clock drift
	ClockSkewGracePeriod int64 // seconds, default: 30

	// MinStateLength is the minimum accepted length for callback state
	// parameters. States shorter than this are rejected before any store
	// lookup to keep the brute-force search space large.
	MinStateLength int // default: 16
}

// applySecureDefaults applies secure-by-default configuration values
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	if config.VerifierTTL == 0 {
		config.VerifierTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 7200 // 2 hours
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 2592000 // 30 days
	}
	if config.SuccessRedirectURL == "" {
		config.SuccessRedirectURL = "/dashboard"
	}
	if config.ErrorRedirectURL == "" {
		config.ErrorRedirectURL = "/"
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 30
	}
	if config.MinStateLength == 0 {
		config.MinStateLength = 16
	}

	if config.TrustProxy {
		logger.Warn("Trusting proxy headers for client IP extraction",
			"risk", "IP spoofing if no trusted reverse proxy is in front",
			"recommendation", "Only enable behind nginx, HAProxy, or a cloud load balancer")
	}

	return config
}
