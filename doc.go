// Package authgateway exposes the HTTP surface of the authentication
// gateway: the login and callback endpoints that drive the PKCE flow, the
// session endpoints (refresh, logout, me) that manage the cookie
// lifecycle, and the proxy endpoints that forward authenticated requests
// to the backend API.
//
// The flow logic itself lives in the server package; this package only
// translates between HTTP (query parameters, cookies, status codes) and
// flow operations.
package authgateway
