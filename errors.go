package authgateway

import (
	"net/http"

	"github.com/clonex/auth-gateway/server"
)

// Flow failure reason codes, re-exported for callers that only import the
// root package. Keep these in sync with errors.go in the server package.
const (
	ReasonMissingCode         = server.ReasonMissingCode
	ReasonMissingState        = server.ReasonMissingState
	ReasonStateMismatch       = server.ReasonStateMismatch
	ReasonMissingVerifier     = server.ReasonMissingVerifier
	ReasonProviderRejected    = server.ReasonProviderRejected
	ReasonProviderUnreachable = server.ReasonProviderUnreachable
	ReasonMalformedResponse   = server.ReasonMalformedResponse
	ReasonSessionExpired      = server.ReasonSessionExpired
)

// httpStatusForReason maps a flow failure reason to the status code for
// JSON endpoints. The callback endpoint never uses this: its failures are
// reported by redirect, not status code.
func httpStatusForReason(reason string) int {
	switch reason {
	case ReasonSessionExpired, ReasonProviderRejected:
		return http.StatusUnauthorized
	case ReasonMissingCode, ReasonMissingState, ReasonStateMismatch, ReasonMissingVerifier:
		return http.StatusBadRequest
	case ReasonProviderUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
