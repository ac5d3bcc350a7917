// Package backend is the HTTP client for the server endpoints the auth core
// depends on: DID token validation, wallet linking and the NFT actions.
//
// Every call is a JSON POST. A non-2xx answer is returned as a *StatusError;
// transport failures wrap ErrUnavailable.
package backend
