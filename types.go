package authgateway

// ErrorResponse is the JSON error body for the session and proxy
// endpoints
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// UserResponse is the body of GET /api/auth/me
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// RefreshResponse is the body of a successful POST /api/auth/refresh
type RefreshResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`

	// Rotated reports whether the provider issued a new refresh token
	Rotated bool `json:"rotated"`
}

// LogoutResponse is the body of POST /api/auth/logout
type LogoutResponse struct {
	Success bool `json:"success"`
}
