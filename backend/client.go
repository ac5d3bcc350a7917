package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths.
const (
	PathValidate        = "/api/auth/validate"
	PathLinkWallet      = "/api/auth/link-wallet"
	PathUnlinkWallet    = "/api/auth/unlink-wallet"
	PathClaimCustodial  = "/api/nft/claim-custodial"
	PathMintCertificate = "/api/nft/mint-certificate"
)

const maxErrorBody = 4 << 10

var (
	// ErrUnavailable wraps transport-level failures.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrMissingBearer is returned when an authenticated call has no token.
	ErrMissingBearer = errors.New("bearer token required")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// ValidateRequest is the body of PathValidate.
type ValidateRequest struct {
	DIDToken string `json:"didToken" validate:"required"`
}

// ValidateResponse is the 200 body of PathValidate.
type ValidateResponse struct {
	Issuer string `json:"issuer"`
	Email  string `json:"email"`
}

// LinkWalletRequest is the body of PathLinkWallet.
type LinkWalletRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
	ChainID       int64  `json:"chainId" validate:"required,gt=0"`
}

// ClaimRequest is the body of PathClaimCustodial.
type ClaimRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required,eth_addr"`
}

// ClaimResponse is the 200 body of PathClaimCustodial.
type ClaimResponse struct {
	ClaimID       string `json:"claimId"`
	WalletAddress string `json:"walletAddress"`
}

// MintRequest is the body of PathMintCertificate.
type MintRequest struct {
	ArtworkID     string `json:"artworkId" validate:"required,max=128"`
	WalletAddress string `json:"walletAddress,omitempty" validate:"omitempty,eth_addr"`
}

// MintResponse is the 202 body of PathMintCertificate.
type MintResponse struct {
	CertificateID string `json:"certificateId"`
	WalletAddress string `json:"walletAddress"`
}

// ErrorResponse is the JSON error envelope returned by the server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config configures a [Client].
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for cfg.BaseURL. When httpClient is nil a client
// with cfg.Timeout is created.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

// ValidateDIDToken asks the server to verify a DID token. It satisfies
// identity.Validator.
func (c *Client) ValidateDIDToken(ctx context.Context, didToken string) error {
	_, err := c.Validate(ctx, didToken)
	return err
}

// Validate is ValidateDIDToken returning the identity the server saw.
func (c *Client) Validate(ctx context.Context, didToken string) (*ValidateResponse, error) {
	var out ValidateResponse
	if err := c.post(ctx, PathValidate, "", ValidateRequest{DIDToken: didToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkWallet links address to the bearer's account.
func (c *Client) LinkWallet(ctx context.Context, bearer, address string, chainID int64) error {
	if bearer == "" {
		return ErrMissingBearer
	}
	return c.post(ctx, PathLinkWallet, bearer, LinkWalletRequest{WalletAddress: address, ChainID: chainID}, nil)
}

// UnlinkWallet removes the bearer's wallet link.
func (c *Client) UnlinkWallet(ctx context.Context, bearer string) error {
	if bearer == "" {
		return ErrMissingBearer
	}
	return c.post(ctx, PathUnlinkWallet, bearer, struct{}{}, nil)
}

// ClaimCustodial claims the custodial NFT into address.
func (c *Client) ClaimCustodial(ctx context.Context, bearer, address string) (*ClaimResponse, error) {
	if bearer == "" {
		return nil, ErrMissingBearer
	}
	var out ClaimResponse
	if err := c.post(ctx, PathClaimCustodial, bearer, ClaimRequest{WalletAddress: address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintCertificate requests a certificate for artworkID. address may be empty,
// in which case the server uses the linked wallet.
func (c *Client) MintCertificate(ctx context.Context, bearer, artworkID, address string) (*MintResponse, error) {
	if bearer == "" {
		return nil, ErrMissingBearer
	}
	var out MintResponse
	req := MintRequest{ArtworkID: artworkID, WalletAddress: address}
	if err := c.post(ctx, PathMintCertificate, bearer, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func statusError(path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var env ErrorResponse
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	return &StatusError{
		Endpoint:   path,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}
