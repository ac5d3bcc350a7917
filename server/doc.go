// Package server is a reference implementation of the backend endpoints the
// hybridAuth engine calls: identity token validation, wallet linking, custodial
// NFT claims and certificate minting.
//
// Routing uses gorilla/mux. Bearer-protected routes sit behind
// middleware.RequireBearer, the validate route behind a per-IP tollbooth
// limiter, and wallet links, claims and certificates are kept in Redis.
package server
