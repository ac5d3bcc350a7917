// Package csrf issues and validates single-use anti-forgery tokens for the
// passwordless login handshake.
//
// A [Manager] owns exactly one token slot. Validate always empties the slot,
// so a token is good for exactly one validation call whether it matched or not.
package csrf
