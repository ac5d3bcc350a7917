// Package rate implements the login attempt limiter used by the hybridAuth engine.
//
// # Window semantics
//
// Each identifier owns one window that starts at its first attempt. Attempts
// inside the window are counted until the configured maximum is reached; the
// next attempt locks the identifier and every further attempt is denied without
// incrementing until the window elapses. The first attempt after expiry opens a
// fresh window with count 1. Clear removes the record after a successful login.
//
// Two implementations share these semantics:
//   - [MemoryLimiter]: mutex-guarded map, scoped to one engine instance.
//   - [RedisLimiter]: one Lua script per attempt, key prefix "hal:".
//
// # What this package must NOT do
//
//   - Decide what a denial means for the caller (the engine maps it to LOGIN_ERROR).
//   - Be imported outside the hybridAuth module.
package rate
