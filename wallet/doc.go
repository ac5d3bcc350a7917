// Package wallet wraps a browser-injected, EIP-1193 shaped chain provider and
// tracks the non-custodial wallet identity reachable through it.
//
// # Lifecycle
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// [Connector] owns the provider event stream: it subscribes once on the first
// Connect, drains accountsChanged/chainChanged events on one goroutine, and
// closes the subscription on Disconnect or when the provider reports zero
// accounts. Repeated Connect calls never add a second subscription.
//
// # What this package must NOT do
//
//   - Sign or verify messages (the provider and the backend own that).
//   - Import hybridAuth; state derivation happens in the engine.
package wallet
