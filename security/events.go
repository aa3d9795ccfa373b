package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Authorization flow events

	// EventFlowStarted is logged when an authorization flow is initiated
	EventFlowStarted = "authorization_flow_started"

	// EventCallbackRejected is logged when a provider callback fails validation
	// (missing code/state, state mismatch, missing verifier)
	EventCallbackRejected = "callback_rejected"

	// EventExchangeFailed is logged when the token exchange with the provider fails
	EventExchangeFailed = "token_exchange_failed"

	// Session lifecycle events

	// EventSessionIssued is logged when a code exchange succeeds and session cookies are set
	EventSessionIssued = "session_issued"

	// EventSessionRefreshed is logged when a refresh grant replaces the session tokens
	EventSessionRefreshed = "session_refreshed"

	// EventSessionRevoked is logged on logout
	EventSessionRevoked = "session_revoked"

	// EventSessionExpired is logged when the backend rejects a session token with 401
	EventSessionExpired = "session_expired"

	// Security violation events

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
