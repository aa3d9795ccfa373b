package authgateway

// defaultCORSMaxAge is the preflight cache duration in seconds
const defaultCORSMaxAge = 3600

// CORSConfig controls cross-origin access to the JSON endpoints.
// The redirect endpoints (login, callback) are top-level navigations and
// never need CORS; the session and proxy endpoints do when the frontend
// is served from a different origin.
type CORSConfig struct {
	// AllowedOrigins is the exact-match origin allowlist. Empty disables
	// CORS headers entirely.
	AllowedOrigins []string

	// AllowCredentials sets Access-Control-Allow-Credentials. Required
	// for cookie-based sessions across origins.
	AllowCredentials bool

	// MaxAge is the preflight cache duration in seconds.
	// Default: defaultCORSMaxAge.
	MaxAge int
}

// Config holds HTTP-layer configuration for the Handler
type Config struct {
	CORS CORSConfig

	// Scope is the space-separated scope string recorded with each
	// started authorization flow. The provider applies its own configured
	// scopes to the authorization URL.
	Scope string

	// MaxRequestBodySize caps the bodies forwarded to the backend API.
	// Default: 1 MiB.
	MaxRequestBodySize int64
}

func (c *Config) applyDefaults() {
	if c.CORS.MaxAge == 0 {
		c.CORS.MaxAge = defaultCORSMaxAge
	}
	if c.MaxRequestBodySize == 0 {
		c.MaxRequestBodySize = 1 << 20
	}
}
