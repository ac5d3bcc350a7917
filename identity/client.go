package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNoProvider is returned when the client has no custodial provider.
	ErrNoProvider = errors.New("identity provider not configured")
	// ErrNoValidator is returned by Login when no token validator is configured.
	ErrNoValidator = errors.New("identity token validator not configured")
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEmptyToken is returned when the provider completes a login without a token.
	ErrEmptyToken = errors.New("identity provider returned empty token")
	// ErrTokenRejected wraps a validator failure.
	ErrTokenRejected = errors.New("identity token rejected")
	// ErrNotLoggedIn is returned when the provider holds no session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrIncompleteMetadata is returned when metadata lacks an issuer or email.
	ErrIncompleteMetadata = errors.New("identity metadata incomplete")
)

// Identity is the custodial email identity.
type Identity struct {
	Issuer            string
	Email             string
	WalletAddressHint string
}

// Metadata is the user record exposed by the provider.
type Metadata struct {
	Issuer        string
	Email         string
	PublicAddress string
}

// Provider is the custodial passwordless SDK.
type Provider interface {
	// LoginWithMagicLink sends the link and blocks until the user completes
	// it, returning the provider's decentralized identity token.
	LoginWithMagicLink(ctx context.Context, email string) (string, error)
	IsLoggedIn(ctx context.Context) (bool, error)
	Metadata(ctx context.Context) (Metadata, error)
	// IDToken returns a fresh bearer token for the current session.
	IDToken(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// Validator checks a token server-side before a login is committed.
type Validator interface {
	ValidateDIDToken(ctx context.Context, didToken string) error
}

// Client is the identity provider client.
type Client struct {
	provider  Provider
	validator Validator
	validate  *validator.Validate
}

// NewClient returns a client over provider and validator.
func NewClient(provider Provider, v Validator) *Client {
	return &Client{
		provider:  provider,
		validator: v,
		validate:  validator.New(),
	}
}

// ValidateEmail normalizes email and checks its syntax.
func (c *Client) ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := c.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// Login sends a magic link to email, validates the resulting token and
// returns the identity described by the provider metadata.
func (c *Client) Login(ctx context.Context, email string) (*Identity, error) {
	if c == nil || c.provider == nil {
		return nil, ErrNoProvider
	}
	if c.validator == nil {
		return nil, ErrNoValidator
	}
	email, err := c.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	didToken, err := c.provider.LoginWithMagicLink(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("send magic link: %w", err)
	}
	if didToken == "" {
		return nil, ErrEmptyToken
	}

	if err := c.validator.ValidateDIDToken(ctx, didToken); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRejected, err)
	}

	return c.fetchIdentity(ctx)
}

// Restore returns the identity of an existing provider session, or (nil, nil)
// when there is none.
func (c *Client) Restore(ctx context.Context) (*Identity, error) {
	if c == nil || c.provider == nil {
		return nil, ErrNoProvider
	}
	ok, err := c.provider.IsLoggedIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return c.fetchIdentity(ctx)
}

// StillValid reports whether the provider session is alive.
func (c *Client) StillValid(ctx context.Context) (bool, error) {
	if c == nil || c.provider == nil {
		return false, ErrNoProvider
	}
	return c.provider.IsLoggedIn(ctx)
}

// BearerToken returns a token suitable for an Authorization header.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	if c == nil || c.provider == nil {
		return "", ErrNoProvider
	}
	tok, err := c.provider.IDToken(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch id token: %w", err)
	}
	if tok == "" {
		return "", ErrNotLoggedIn
	}
	return tok, nil
}

// Logout ends the provider session.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.provider == nil {
		return ErrNoProvider
	}
	return c.provider.Logout(ctx)
}

func (c *Client) fetchIdentity(ctx context.Context) (*Identity, error) {
	md, err := c.provider.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	if md.Issuer == "" || md.Email == "" {
		return nil, ErrIncompleteMetadata
	}
	return &Identity{
		Issuer:            md.Issuer,
		Email:             md.Email,
		WalletAddressHint: md.PublicAddress,
	}, nil
}
