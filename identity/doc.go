// Package identity wraps the custodial passwordless login flow.
//
// A [Client] drives a [Provider] (the magic-link SDK) through send link,
// server-side token validation and metadata fetch, and produces the
// [Identity] the engine stores in its email slot. The token is checked by a
// [Validator] before any identity is returned, so a failed validation never
// yields a half-committed login.
package identity
