package server

import (
	"errors"
	"fmt"
)

// Flow failure reason codes. These are stable identifiers surfaced to the
// frontend in error redirects (/?error={reason}) and audit logs.
// Note: These are intentionally duplicated in the root package's error
// aliases to avoid circular imports (root imports server for type aliases,
// server can't import root). Keep these in sync with errors.go at the root.
const (
	// ReasonMissingCode means the provider callback carried no code parameter
	ReasonMissingCode = "missing_code"

	// ReasonMissingState means the provider callback carried no state parameter
	ReasonMissingState = "missing_state"

	// ReasonStateMismatch means the callback state did not match the stored state
	ReasonStateMismatch = "state_mismatch"

	// ReasonMissingVerifier means no pending authorization request exists for
	// the callback state (never started, expired, or already consumed)
	ReasonMissingVerifier = "missing_verifier"

	// ReasonProviderRejected means the provider returned a structured OAuth
	// error during exchange or refresh (invalid code, denied consent)
	ReasonProviderRejected = "provider_rejected"

	// ReasonProviderUnreachable means the provider could not be reached
	// (network error, timeout, DNS failure)
	ReasonProviderUnreachable = "provider_unreachable"

	// ReasonMalformedResponse means the provider responded with a payload
	// that could not be parsed or was missing required fields
	ReasonMalformedResponse = "malformed_response"

	// ReasonSessionExpired means the session tokens are no longer accepted
	// (refresh grant rejected, or backend returned 401)
	ReasonSessionExpired = "session_expired"
)

// FlowError is a flow failure with a stable reason code.
// The wrapped error carries the internal detail for logging; the reason
// code is the only part safe to surface to the client.
type FlowError struct {
	Reason string
	Err    error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// NewFlowError creates a FlowError with the given reason code
func NewFlowError(reason string, err error) *FlowError {
	return &FlowError{Reason: reason, Err: err}
}

// ReasonOf extracts the reason code from an error chain.
// Returns ReasonMalformedResponse for errors that carry no FlowError,
// since an unclassified failure during the flow means the provider
// interaction did not complete as expected.
func ReasonOf(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonMalformedResponse
}
