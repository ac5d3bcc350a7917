// Package wallettest provides a scriptable in-memory wallet.Provider.
package wallettest

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/MrEthical07/hybridAuth/wallet"
)

// Provider simulates an injected EIP-1193 provider.
type Provider struct {
	mu sync.Mutex

	accounts   []string
	authorized bool
	chainID    int64
	balanceWei *big.Int

	requestErr   error
	switchErr    error
	balanceErr   error
	subscribeErr error

	confirmSwitch bool
	onRequest     func(method string)

	calls          []string
	subscribeCalls int
	subs           map[*subscription]struct{}
}

// New returns a provider holding accounts on chain 1 with a 1.5 ether balance.
// The accounts are not pre-authorized; eth_accounts returns them only after a
// successful eth_requestAccounts or [Provider.Authorize].
func New(accounts ...string) *Provider {
	bal, _ := new(big.Int).SetString("1500000000000000000", 10)
	return &Provider{
		accounts:   append([]string(nil), accounts...),
		chainID:    1,
		balanceWei: bal,
		subs:       make(map[*subscription]struct{}),
	}
}

// Authorize marks the accounts as already connected to the site.
func (p *Provider) Authorize() *Provider {
	p.mu.Lock()
	p.authorized = true
	p.mu.Unlock()
	return p
}

// SetChainID changes the chain reported by eth_chainId.
func (p *Provider) SetChainID(id int64) {
	p.mu.Lock()
	p.chainID = id
	p.mu.Unlock()
}

// RejectRequests makes eth_requestAccounts fail with err.
func (p *Provider) RejectRequests(err error) {
	p.mu.Lock()
	p.requestErr = err
	p.mu.Unlock()
}

// FailSwitch makes wallet_switchEthereumChain fail with err.
func (p *Provider) FailSwitch(err error) {
	p.mu.Lock()
	p.switchErr = err
	p.mu.Unlock()
}

// FailBalance makes eth_getBalance fail with err.
func (p *Provider) FailBalance(err error) {
	p.mu.Lock()
	p.balanceErr = err
	p.mu.Unlock()
}

// FailSubscribe makes Subscribe fail with err.
func (p *Provider) FailSubscribe(err error) {
	p.mu.Lock()
	p.subscribeErr = err
	p.mu.Unlock()
}

// ConfirmSwitches makes a successful wallet_switchEthereumChain emit
// chainChanged, as real wallets do.
func (p *Provider) ConfirmSwitches() {
	p.mu.Lock()
	p.confirmSwitch = true
	p.mu.Unlock()
}

// OnRequest installs a hook that runs inside every Request before it returns.
func (p *Provider) OnRequest(fn func(method string)) {
	p.mu.Lock()
	p.onRequest = fn
	p.mu.Unlock()
}

// Calls returns the RPC methods invoked so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// SubscribeCalls returns how many times Subscribe succeeded.
func (p *Provider) SubscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribeCalls
}

// ActiveSubscriptions returns the number of open subscriptions.
func (p *Provider) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// EmitAccountsChanged sets the account list and notifies subscribers.
func (p *Provider) EmitAccountsChanged(accounts ...string) {
	p.mu.Lock()
	p.accounts = append([]string(nil), accounts...)
	subs := p.snapshotSubsLocked()
	p.mu.Unlock()

	for _, s := range subs {
		s.send(wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: append([]string(nil), accounts...)})
	}
}

// EmitChainChanged sets the chain and notifies subscribers.
func (p *Provider) EmitChainChanged(id int64) {
	p.mu.Lock()
	p.chainID = id
	subs := p.snapshotSubsLocked()
	p.mu.Unlock()

	for _, s := range subs {
		s.send(wallet.Event{Kind: wallet.EventChainChanged, ChainID: wallet.FormatChainID(id)})
	}
}

// EmitRawChainChanged sends a chainChanged event carrying raw as the chain id
// without touching the chain reported by eth_chainId.
func (p *Provider) EmitRawChainChanged(raw string) {
	p.mu.Lock()
	subs := p.snapshotSubsLocked()
	p.mu.Unlock()

	for _, s := range subs {
		s.send(wallet.Event{Kind: wallet.EventChainChanged, ChainID: raw})
	}
}

// Request implements wallet.Provider.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, method)
	hook := p.onRequest
	p.mu.Unlock()

	if hook != nil {
		hook(method)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch method {
	case wallet.MethodRequestAccounts:
		if p.requestErr != nil {
			return nil, p.requestErr
		}
		p.authorized = true
		return json.Marshal(p.accounts)
	case wallet.MethodAccounts:
		if !p.authorized {
			return json.Marshal([]string{})
		}
		return json.Marshal(p.accounts)
	case wallet.MethodChainID:
		return json.Marshal(wallet.FormatChainID(p.chainID))
	case wallet.MethodGetBalance:
		if p.balanceErr != nil {
			return nil, p.balanceErr
		}
		return json.Marshal("0x" + p.balanceWei.Text(16))
	case wallet.MethodSwitchChain:
		if p.switchErr != nil {
			return nil, p.switchErr
		}
		id, err := switchTarget(params)
		if err != nil {
			return nil, &wallet.RPCError{Code: -32602, Message: err.Error()}
		}
		if p.confirmSwitch {
			p.chainID = id
			subs := p.snapshotSubsLocked()
			ev := wallet.Event{Kind: wallet.EventChainChanged, ChainID: wallet.FormatChainID(id)}
			for _, s := range subs {
				s.send(ev)
			}
		}
		return json.Marshal(nil)
	}

	return nil, &wallet.RPCError{Code: wallet.CodeUnsupported, Message: "unsupported method " + method}
}

// Subscribe implements wallet.Provider.
func (p *Provider) Subscribe() (wallet.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	s := &subscription{
		owner:  p,
		events: make(chan wallet.Event, 64),
	}
	p.subs[s] = struct{}{}
	p.subscribeCalls++
	return s, nil
}

func (p *Provider) snapshotSubsLocked() []*subscription {
	out := make([]*subscription, 0, len(p.subs))
	for s := range p.subs {
		out = append(out, s)
	}
	return out
}

func switchTarget(params []any) (int64, error) {
	if len(params) != 1 {
		return 0, errors.New("expected one param")
	}
	m, ok := params[0].(map[string]string)
	if !ok {
		return 0, errors.New("expected chainId object")
	}
	return wallet.ParseChainID(m["chainId"])
}

type subscription struct {
	owner  *Provider
	mu     sync.Mutex
	closed bool
	events chan wallet.Event
}

func (s *subscription) Events() <-chan wallet.Event {
	return s.events
}

func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.owner.mu.Lock()
	delete(s.owner.subs, s)
	s.owner.mu.Unlock()
}

func (s *subscription) send(ev wallet.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
