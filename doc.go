// Package hybridAuth merges a custodial email-link identity and a
// non-custodial wallet identity into one access state for a storefront.
//
// The [Engine] owns two slots, email and wallet. Every change to either slot
// republishes a [Snapshot] holding the derived [AuthState] and [UserProfile],
// so readers never see a state that disagrees with its profile. Logins are
// throttled per email and guarded by a single-use CSRF token. Access checks
// go through an [AccessPolicy] that maps each state to a permission mask.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// hybridAuth is the public surface. Wallet RPC lives in package wallet, the
// custodial provider in package identity, server calls in package backend and
// intent counters in package conversion. Limiter and CSRF storage live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Persist profiles. They are derived on every change.
//   - Hold the engine lock while calling a provider or the backend.
//   - Import any sub-package that re-imports hybridAuth.
package hybridAuth
