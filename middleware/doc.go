// Package middleware holds the HTTP guard placed in front of the backend's
// bearer-protected endpoints.
//
// [RequireBearer] reads the Authorization header, rejects a missing or
// malformed bearer with 401, optionally verifies the token through a
// [Verifier], and stores the token and claims in the request context.
//
// The package makes no authorization decisions beyond pass or reject. Whether
// a caller may claim or mint is decided by the handlers.
package middleware
