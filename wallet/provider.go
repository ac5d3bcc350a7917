package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC methods consumed from the injected provider.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodGetBalance      = "eth_getBalance"
	MethodSwitchChain     = "wallet_switchEthereumChain"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainUnavailable  = 4901
	CodeUnrecognizedChain = 4902
)

var (
	// ErrNoProviderDetected is returned when no injected provider is present.
	ErrNoProviderDetected = errors.New("no wallet provider detected")
	// ErrNotConnected is returned by operations that need a connected wallet.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrNoAccounts is returned when the provider grants access to zero accounts.
	ErrNoAccounts = errors.New("wallet returned no accounts")
	// ErrAccountsRevoked is returned when the provider drops all accounts while connecting.
	ErrAccountsRevoked = errors.New("wallet accounts revoked during connect")
	// ErrConnectCancelled is returned when Disconnect runs while Connect is in flight.
	ErrConnectCancelled = errors.New("wallet connect cancelled")
	// ErrConnectInProgress is returned when Connect is called while another Connect runs.
	ErrConnectInProgress = errors.New("wallet connect already in progress")
	// ErrMalformedResponse is returned when a provider reply cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrMalformedEvent is reported through the error handler when a provider
	// event carries an unusable chain id or account.
	ErrMalformedEvent = errors.New("malformed provider event")
)

// Provider is the injected chain provider.
type Provider interface {
	// Request performs one JSON-RPC call and returns the raw result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// Subscribe registers for accountsChanged and chainChanged events.
	Subscribe() (Subscription, error)
}

// Subscription is a registered event listener. Close unregisters it and
// closes the Events channel; it must be safe to call more than once.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// EventKind identifies a provider event.
type EventKind uint8

const (
	// EventAccountsChanged carries the new account list.
	EventAccountsChanged EventKind = iota + 1
	// EventChainChanged carries the new hex chain id.
	EventChainChanged
)

// Event is one provider notification.
type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  string
}

// RPCError is a provider-reported JSON-RPC failure.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider rpc error %d: %s", e.Code, e.Message)
}

// UserRejected reports whether the user dismissed the provider prompt.
func (e *RPCError) UserRejected() bool {
	return e != nil && e.Code == CodeUserRejected
}
