// Package jwt issues and verifies the identity tokens exchanged between the
// custodial login flow and the backend. Tokens carry the issuer DID as subject
// plus the verified email, and are signed with ed25519 or HS256.
package jwt
