// Package providers contains OAuth provider implementations.
//
// The Provider interface abstracts the identity provider the gateway talks
// to. The twitter subpackage implements it against the Twitter/X v2 API;
// the mock subpackage provides a configurable test double.
package providers
