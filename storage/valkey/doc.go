// Package valkey provides a Valkey/Redis-backed implementation of the
// verifier store for multi-instance deployments. Key TTLs enforce the
// login-attempt expiry and GETDEL provides single-use consumption.
package valkey
