// Package identitytest provides an in-memory identity.Provider and Validator.
package identitytest

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/hybridAuth/identity"
)

// Provider simulates the custodial magic-link SDK. Every email completes its
// link immediately unless a failure is scripted.
type Provider struct {
	mu sync.Mutex

	loggedIn bool
	email    string
	address  string

	loginErr    error
	metadataErr error
	logoutErr   error
	sessionErr  error
	block       chan struct{}
	issue       func(subject, email, address string) (string, error)

	logins  int
	logouts int
}

// New returns a provider with no session.
func New() *Provider {
	return &Provider{}
}

// StartSession pretends a previous page load left a session behind.
func (p *Provider) StartSession(email string) {
	p.mu.Lock()
	p.loggedIn = true
	p.email = email
	p.mu.Unlock()
}

// ExpireSession drops the session as the provider would after revocation.
func (p *Provider) ExpireSession() {
	p.mu.Lock()
	p.loggedIn = false
	p.mu.Unlock()
}

// SetPublicAddress sets the wallet hint reported in metadata.
func (p *Provider) SetPublicAddress(addr string) {
	p.mu.Lock()
	p.address = addr
	p.mu.Unlock()
}

// SignTokens makes the provider hand out tokens produced by issue instead of
// the opaque [TokenFor] strings. *jwt.Manager.Issue fits.
func (p *Provider) SignTokens(issue func(subject, email, address string) (string, error)) {
	p.mu.Lock()
	p.issue = issue
	p.mu.Unlock()
}

// FailLogin makes LoginWithMagicLink fail with err.
func (p *Provider) FailLogin(err error) {
	p.mu.Lock()
	p.loginErr = err
	p.mu.Unlock()
}

// FailMetadata makes Metadata fail with err.
func (p *Provider) FailMetadata(err error) {
	p.mu.Lock()
	p.metadataErr = err
	p.mu.Unlock()
}

// FailLogout makes Logout fail with err. The local session is still dropped.
func (p *Provider) FailLogout(err error) {
	p.mu.Lock()
	p.logoutErr = err
	p.mu.Unlock()
}

// FailSessionCheck makes IsLoggedIn fail with err.
func (p *Provider) FailSessionCheck(err error) {
	p.mu.Lock()
	p.sessionErr = err
	p.mu.Unlock()
}

// BlockLogins makes LoginWithMagicLink wait until release is closed or the
// context ends, as a user who has not clicked the link yet.
func (p *Provider) BlockLogins(release chan struct{}) {
	p.mu.Lock()
	p.block = release
	p.mu.Unlock()
}

// Logins returns the number of completed magic-link logins.
func (p *Provider) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// Logouts returns the number of Logout calls.
func (p *Provider) Logouts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logouts
}

// LoginWithMagicLink implements identity.Provider.
func (p *Provider) LoginWithMagicLink(ctx context.Context, email string) (string, error) {
	p.mu.Lock()
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loginErr != nil {
		return "", p.loginErr
	}
	p.loggedIn = true
	p.email = email
	p.logins++
	return p.tokenLocked()
}

// IsLoggedIn implements identity.Provider.
func (p *Provider) IsLoggedIn(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionErr != nil {
		return false, p.sessionErr
	}
	return p.loggedIn, nil
}

// Metadata implements identity.Provider.
func (p *Provider) Metadata(ctx context.Context) (identity.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.metadataErr != nil {
		return identity.Metadata{}, p.metadataErr
	}
	if !p.loggedIn {
		return identity.Metadata{}, identity.ErrNotLoggedIn
	}
	return identity.Metadata{
		Issuer:        IssuerFor(p.email),
		Email:         p.email,
		PublicAddress: p.address,
	}, nil
}

// IDToken implements identity.Provider.
func (p *Provider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loggedIn {
		return "", nil
	}
	return p.tokenLocked()
}

func (p *Provider) tokenLocked() (string, error) {
	if p.issue != nil {
		return p.issue(IssuerFor(p.email), p.email, p.address)
	}
	return TokenFor(p.email), nil
}

// Logout implements identity.Provider.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	p.loggedIn = false
	return p.logoutErr
}

// IssuerFor returns the issuer the fake assigns to email.
func IssuerFor(email string) string {
	return "did:ethr:" + strings.ToLower(email)
}

// TokenFor returns the token the fake issues for email.
func TokenFor(email string) string {
	return "did-token:" + strings.ToLower(email)
}

// Validator accepts tokens issued by [Provider] unless told otherwise.
type Validator struct {
	mu     sync.Mutex
	err    error
	tokens []string
}

// Reject makes every validation fail with err.
func (v *Validator) Reject(err error) {
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
}

// Tokens returns the tokens validated so far.
func (v *Validator) Tokens() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.tokens...)
}

// ValidateDIDToken implements identity.Validator.
func (v *Validator) ValidateDIDToken(ctx context.Context, didToken string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens = append(v.tokens, didToken)
	return v.err
}
