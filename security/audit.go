// Package security provides security features for the auth gateway:
// cookie encryption, per-IP rate limiting, audit logging, request IDs,
// and secure header management.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogFlowStarted logs the start of an authorization flow
func (a *Auditor) LogFlowStarted(ipAddress, scope string) {
	a.LogEvent(Event{
		Type:      EventFlowStarted,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogCallbackFailure logs a rejected provider callback with its precise cause
func (a *Auditor) LogCallbackFailure(ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventCallbackRejected,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogExchangeFailed logs a failed token exchange with the provider
func (a *Auditor) LogExchangeFailed(ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventExchangeFailed,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogSessionIssued logs a successful code exchange and session creation
func (a *Auditor) LogSessionIssued(userID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventSessionIssued,
		UserID:    userID,
		IPAddress: ipAddress,
	})
}

// LogSessionRefreshed logs a refresh-grant session update
func (a *Auditor) LogSessionRefreshed(userID, ipAddress string, rotated bool) {
	a.LogEvent(Event{
		Type:      EventSessionRefreshed,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogSessionRevoked logs a logout
func (a *Auditor) LogSessionRevoked(userID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventSessionRevoked,
		UserID:    userID,
		IPAddress: ipAddress,
	})
}

// LogSessionExpired logs a backend-reported expired session
func (a *Auditor) LogSessionExpired(userID, ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventSessionExpired,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
