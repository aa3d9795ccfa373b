// Package storage defines the verifier-store contract shared by all
// authorization-request backends: in-memory, Valkey, and the cookie
// backend provided by the session package.
//
// The gateway keeps no other server-side state: sessions live entirely in
// HttpOnly cookies, so the only shared mutable resource is the single-use
// {state -> code_verifier} association created per login attempt.
package storage
