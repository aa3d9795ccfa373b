// Package backend is the authenticated client for the CloneX backend API.
//
// Every call attaches the session's bearer token and Twitter user ID; a
// 401 from the backend surfaces as ErrSessionExpired so the HTTP layer
// can clear the session cookies and tell the frontend to re-authenticate.
package backend
