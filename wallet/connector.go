package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Status is the connector lifecycle state.
type Status uint8

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ChangeHandler receives the wallet identity after every change; nil means
// the wallet is gone. Calls are serialized and always carry the identity that
// was current when the call was made, so the last call matches the connector.
// It is called without the connector lock held and must not call Connect,
// Restore or Disconnect.
type ChangeHandler func(*Identity)

// ErrorHandler receives provider events the connector could not apply.
type ErrorHandler func(error)

// WithErrorHandler installs the callback for unusable provider events.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *Connector) {
		c.onError = fn
	}
}

// Option configures a [Connector].
type Option func(*Connector)

// WithChangeHandler installs the change callback.
func WithChangeHandler(fn ChangeHandler) Option {
	return func(c *Connector) {
		c.onChange = fn
	}
}

// pendingEvents holds the latest events seen while a Connect is in flight.
type pendingEvents struct {
	accounts    []string
	hasAccounts bool
	chainID     int64
	hasChain    bool
}

// Connector manages one wallet connection over one provider.
type Connector struct {
	provider Provider
	onChange ChangeHandler
	onError  ErrorHandler

	mu         sync.Mutex
	status     Status
	identity   *Identity
	version    uint64 // bumped on every identity commit
	sub        Subscription
	connecting bool
	pending    pendingEvents

	notifyMu  sync.Mutex
	delivered uint64 // guarded by notifyMu
}

// NewConnector creates a connector. provider may be nil, in which case every
// operation that needs it fails with [ErrNoProviderDetected].
func NewConnector(provider Provider, opts ...Option) *Connector {
	c := &Connector{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderDetected reports whether a provider was injected.
func (c *Connector) ProviderDetected() bool {
	return c != nil && c.provider != nil
}

// Status returns the lifecycle state.
func (c *Connector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Identity returns a copy of the connected identity, nil when disconnected.
func (c *Connector) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.identity)
}

// Listening reports whether the connector currently holds a provider subscription.
func (c *Connector) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Connect prompts the provider for account access and reads chain id and
// balance. Calling Connect while already connected re-reads the provider and
// keeps the existing subscription.
func (c *Connector) Connect(ctx context.Context, kind ConnectorKind) (*Identity, error) {
	if kind == "" {
		kind = KindInjected
	}
	return c.connect(ctx, kind, MethodRequestAccounts, false)
}

// Restore picks up an already-authorized account without prompting. It
// returns (nil, nil) when the provider has no authorized accounts.
func (c *Connector) Restore(ctx context.Context) (*Identity, error) {
	return c.connect(ctx, KindInjected, MethodAccounts, true)
}

func (c *Connector) connect(ctx context.Context, kind ConnectorKind, method string, allowEmpty bool) (*Identity, error) {
	if !c.ProviderDetected() {
		return nil, ErrNoProviderDetected
	}

	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return nil, ErrConnectInProgress
	}
	wasConnected := c.status == StatusConnected
	c.connecting = true
	c.pending = pendingEvents{}
	if !wasConnected {
		c.status = StatusConnecting
	}
	if err := c.subscribeLocked(); err != nil {
		c.connecting = false
		if !wasConnected {
			c.status = StatusDisconnected
		}
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	ident, err := c.fetchIdentity(ctx, kind, method)
	if err == nil && ident == nil && !allowEmpty {
		err = ErrNoAccounts
	}

	c.mu.Lock()
	c.connecting = false
	pending := c.pending
	c.pending = pendingEvents{}

	if err != nil || ident == nil {
		if !wasConnected {
			c.teardownLocked()
		}
		c.mu.Unlock()
		return nil, err
	}

	if c.sub == nil {
		// Disconnect ran while the provider calls were in flight.
		c.teardownLocked()
		c.mu.Unlock()
		return nil, ErrConnectCancelled
	}

	var pendingErr error
	if pending.hasAccounts {
		if len(pending.accounts) == 0 {
			c.teardownLocked()
			c.mu.Unlock()
			c.notify()
			return nil, ErrAccountsRevoked
		}
		addr, aerr := ChecksumAddress(pending.accounts[0])
		if aerr != nil {
			pendingErr = fmt.Errorf("%w: accountsChanged %q: %v", ErrMalformedEvent, pending.accounts[0], aerr)
		} else {
			ident.Address = addr
		}
	}
	if pending.hasChain {
		ident.ChainID = pending.chainID
	}

	c.setIdentityLocked(ident)
	c.status = StatusConnected
	out := copyIdentity(ident)
	c.mu.Unlock()

	if pendingErr != nil {
		c.reportError(pendingErr)
	}
	c.notify()
	return out, nil
}

// Disconnect forgets the wallet and closes the provider subscription. It is a
// no-op when already disconnected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	if c.status == StatusDisconnected && c.sub == nil && c.identity == nil {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()

	c.notify()
}

// SwitchChain asks the provider to change network. Local state is untouched
// until the provider confirms through a chainChanged event.
func (c *Connector) SwitchChain(ctx context.Context, chainID int64) error {
	if !c.ProviderDetected() {
		return ErrNoProviderDetected
	}
	if c.Status() != StatusConnected {
		return ErrNotConnected
	}

	_, err := c.provider.Request(ctx, MethodSwitchChain, map[string]string{
		"chainId": FormatChainID(chainID),
	})
	if err != nil {
		return fmt.Errorf("switch chain %d: %w", chainID, err)
	}
	return nil
}

func (c *Connector) fetchIdentity(ctx context.Context, kind ConnectorKind, method string) (*Identity, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, method); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	addr, err := ChecksumAddress(accounts[0])
	if err != nil {
		return nil, err
	}

	var chainHex string
	if err := c.call(ctx, &chainHex, MethodChainID); err != nil {
		return nil, err
	}
	chainID, err := ParseChainID(chainHex)
	if err != nil {
		return nil, err
	}

	ident := &Identity{
		Address:       addr,
		ChainID:       chainID,
		ConnectorKind: kind,
	}

	// Balance is optional; a failing eth_getBalance does not fail the connect.
	var balanceHex string
	if err := c.call(ctx, &balanceHex, MethodGetBalance, addr, "latest"); err == nil {
		if formatted, ferr := FormatBalance(balanceHex); ferr == nil {
			ident.Balance = formatted
		}
	}

	return ident, nil
}

func (c *Connector) call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := c.provider.Request(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
	}
	return nil
}

func (c *Connector) subscribeLocked() error {
	if c.sub != nil {
		return nil
	}
	sub, err := c.provider.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe to provider events: %w", err)
	}
	c.sub = sub
	go c.drain(sub)
	return nil
}

func (c *Connector) drain(sub Subscription) {
	for ev := range sub.Events() {
		c.handleEvent(sub, ev)
	}
}

func (c *Connector) handleEvent(sub Subscription, ev Event) {
	c.mu.Lock()
	if c.sub != sub {
		c.mu.Unlock()
		return
	}

	var chainID int64
	if ev.Kind == EventChainChanged {
		id, err := ParseChainID(ev.ChainID)
		if err != nil {
			c.mu.Unlock()
			c.reportError(fmt.Errorf("%w: chainChanged %q: %v", ErrMalformedEvent, ev.ChainID, err))
			return
		}
		chainID = id
	}

	if c.connecting {
		switch ev.Kind {
		case EventAccountsChanged:
			c.pending.accounts = append([]string(nil), ev.Accounts...)
			c.pending.hasAccounts = true
		case EventChainChanged:
			c.pending.chainID = chainID
			c.pending.hasChain = true
		}
	}

	if c.status != StatusConnected || c.identity == nil {
		c.mu.Unlock()
		return
	}

	changed := false
	switch ev.Kind {
	case EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			c.teardownLocked()
			c.mu.Unlock()
			c.notify()
			return
		}
		addr, err := ChecksumAddress(ev.Accounts[0])
		if err != nil {
			c.mu.Unlock()
			c.reportError(fmt.Errorf("%w: accountsChanged %q: %v", ErrMalformedEvent, ev.Accounts[0], err))
			return
		}
		if addr != c.identity.Address {
			next := *c.identity
			next.Address = addr
			c.setIdentityLocked(&next)
			changed = true
		}
	case EventChainChanged:
		if chainID != c.identity.ChainID {
			next := *c.identity
			next.ChainID = chainID
			c.setIdentityLocked(&next)
			changed = true
		}
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// teardownLocked clears the identity and releases the subscription. The
// drain goroutine exits once the provider closes the events channel.
func (c *Connector) teardownLocked() {
	c.setIdentityLocked(nil)
	c.status = StatusDisconnected
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}

func (c *Connector) setIdentityLocked(ident *Identity) {
	if c.identity == nil && ident == nil {
		return
	}
	c.identity = ident
	c.version++
}

// notify hands the current identity to the change handler. The snapshot is
// taken under notifyMu, so a delivery can never overtake a newer one; a
// caller whose commit was already delivered by someone else skips.
func (c *Connector) notify() {
	if c.onChange == nil {
		return
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	version := c.version
	ident := copyIdentity(c.identity)
	c.mu.Unlock()

	if version == c.delivered {
		return
	}
	c.delivered = version
	c.onChange(ident)
}

func (c *Connector) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func copyIdentity(in *Identity) *Identity {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
