// Package permission provides a 64-bit permission mask, a name-to-bit
// registry, and a role manager that composes named permissions into masks.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Registries and
// role managers are populated once, frozen, and then only read.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import hybridAuth, wallet, or identity.
//   - Reassign bits after a registry is frozen.
package permission
