// Package server implements the authorization flow logic of the auth
// gateway, independent of the HTTP layer.
//
// It coordinates the PKCE-protected authorization code flow against a
// Provider, persisting pending flow state in a storage.VerifierStore:
// flow initiation, callback completion, code exchange, session refresh,
// and logout with best-effort revocation.
//
// The HTTP surface (cookie handling, redirects, JSON responses) lives in
// the root package; this package deals only in flow semantics and
// returns typed FlowError values naming the precise failure cause.
package server
