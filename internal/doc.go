// Package internal contains helpers that are private to hybridAuth.
//
// # Sub-packages
//
//   - csrf: single-use anti-forgery token manager and its storage slots
//   - rate: login attempt limiter (in-memory and Redis)
//
// # What this package must NOT do
//
//   - Export types that appear in the public hybridAuth API.
//   - Be imported by any package outside the hybridAuth module.
package internal
