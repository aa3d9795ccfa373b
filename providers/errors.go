package providers

import "fmt"

// StatusError reports a non-2xx answer from a provider API endpoint that
// sits outside the oauth2 token grant flow (userinfo, revocation). The
// flow layer classifies it by status code, so implementations must return
// it instead of an untyped error for rejected requests.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}
