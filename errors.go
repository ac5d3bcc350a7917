package hybridAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/hybridAuth/identity"
	"github.com/MrEthical07/hybridAuth/internal/rate"
	"github.com/MrEthical07/hybridAuth/wallet"
)

// ErrorCode is the stable code carried by every engine error.
type ErrorCode string

const (
	// CodeAuth marks session-check failures. They degrade the engine to
	// Anonymous rather than failing the caller.
	CodeAuth ErrorCode = "AUTH_ERROR"
	// CodeLogin marks magic-link, token validation, CSRF and lockout failures.
	CodeLogin ErrorCode = "LOGIN_ERROR"
	// CodeLogout marks provider logout failures. Local state is cleared anyway.
	CodeLogout ErrorCode = "LOGOUT_ERROR"
	// CodeWallet marks connect, disconnect, chain switch, link and unlink failures.
	CodeWallet ErrorCode = "WALLET_ERROR"
)

// Error is the typed error returned by Engine operations.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrLoginRateLimited is matched by lockout denials.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrCSRFTokenInvalid is returned when the presented CSRF token does not match.
	ErrCSRFTokenInvalid = errors.New("invalid csrf token")
	// ErrInvalidEmail is returned for a malformed login email.
	ErrInvalidEmail = identity.ErrInvalidEmail
	// ErrNotLoggedIn is returned by operations that need an email identity.
	ErrNotLoggedIn = identity.ErrNotLoggedIn
	// ErrNoProviderDetected is returned when no wallet provider was injected.
	ErrNoProviderDetected = wallet.ErrNoProviderDetected
	// ErrWalletNotConnected is returned by operations that need a wallet.
	ErrWalletNotConnected = wallet.ErrNotConnected
	// ErrInvalidWalletAddress is returned when a wallet address fails validation.
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	// ErrEmailRequired is the upgrade path for resources gated on an email identity.
	ErrEmailRequired = errors.New("email required")
	// ErrWalletRequired is the upgrade path for resources gated on a wallet.
	ErrWalletRequired = errors.New("wallet required")
	// ErrHybridRequired is returned when both identities must be present.
	ErrHybridRequired = errors.New("email and wallet required")
	// ErrWalletNotLinked is returned when the action needs a linked wallet.
	ErrWalletNotLinked = errors.New("wallet not linked")
	// ErrChainNotAllowed is returned by SwitchChain for chains outside Config.Wallet.AllowedChains.
	ErrChainNotAllowed = errors.New("chain not allowed")
	// ErrUnknownConnector is returned for a connector kind the engine does not support.
	ErrUnknownConnector = errors.New("unknown wallet connector")
	// ErrBackendNotConfigured is returned when no backend client was supplied.
	ErrBackendNotConfigured = errors.New("backend not configured")
	// ErrUnknownResource is returned by RequestAccess for unregistered resources.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrEngineClosed is returned by operations after Close.
	ErrEngineClosed = errors.New("engine closed")
)

func newError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Message: errorMessage(err), Err: err}
}

func errorMessage(err error) string {
	var lock *rate.LockoutError
	if errors.As(err, &lock) {
		n := lock.RemainingMinutes()
		unit := "minutes"
		if n == 1 {
			unit = "minute"
		}
		return fmt.Sprintf("too many login attempts, try again in %d %s", n, unit)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// LockoutRemaining returns how long a rate-limited login stays locked.
func LockoutRemaining(err error) (time.Duration, bool) {
	var lock *rate.LockoutError
	if errors.As(err, &lock) {
		return lock.Remaining, true
	}
	return 0, false
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
