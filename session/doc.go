// Package session manages the cookie-based session surface of the auth
// gateway.
//
// Sessions are held entirely in browser cookies; the gateway keeps no
// server-side session table. The Manager writes and clears the token
// cookies produced by a completed authorization flow, and the
// CookieVerifierStore implements storage.VerifierStore on top of a
// short-lived HttpOnly cookie, binding the pending authorization request
// to the browser that started it.
package session
