package hybridAuth

import (
	"errors"
	"time"
)

// Config holds every engine setting. Build it from [DefaultConfig] and
// override fields; the Builder clones it, so later edits have no effect.
type Config struct {
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	Session   SessionConfig
	Wallet    WalletConfig
	Backend   BackendConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the per-email login limiter.
type RateLimitConfig struct {
	MaxLoginAttempts int
	LockoutWindow    time.Duration
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig tunes the single-use login token.
type CSRFConfig struct {
	// TokenTTL bounds how long an issued token waits in Redis. The in-memory
	// slot keeps a token until it is validated or replaced.
	TokenTTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes custodial session upkeep.
type SessionConfig struct {
	// RefreshInterval is how often the custodial session is re-validated
	// after login. Zero disables the refresh timer.
	RefreshInterval time.Duration
	// RestoreOnInitialize restores existing sessions in Initialize.
	RestoreOnInitialize bool
}

/*
====================================
WALLET CONFIG
====================================
*/

// WalletConfig tunes the wallet connector.
type WalletConfig struct {
	// DefaultConnector is used when ConnectWallet is given an empty kind.
	DefaultConnector string
	// AllowedChains restricts chains accepted by SwitchChain. Empty allows all.
	AllowedChains []int64
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig points the engine at the server endpoints.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig toggles login hardening.
type SecurityConfig struct {
	// CSRFProtection requires a valid single-use token on every Login.
	CSRFProtection bool
	// ClearAttemptsOnLogin removes the limiter record after a successful login.
	ClearAttemptsOnLogin bool
}

// DefaultConfig returns the production defaults: 5 attempts per 15 minutes,
// CSRF on, session re-validation every 15 minutes.
func DefaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxLoginAttempts: 5,
			LockoutWindow:    15 * time.Minute,
		},
		CSRF: CSRFConfig{
			TokenTTL: 10 * time.Minute,
		},
		Session: SessionConfig{
			RefreshInterval:     15 * time.Minute,
			RestoreOnInitialize: true,
		},
		Wallet: WalletConfig{
			DefaultConnector: "injected",
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			CSRFProtection:       true,
			ClearAttemptsOnLogin: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Wallet.AllowedChains = cloneChains(cfg.Wallet.AllowedChains)
	return out
}

func cloneChains(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int64, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.MaxLoginAttempts <= 0 {
		return errors.New("RateLimit MaxLoginAttempts must be > 0")
	}
	if c.RateLimit.LockoutWindow <= 0 {
		return errors.New("RateLimit LockoutWindow must be > 0")
	}

	// CSRF
	if c.Security.CSRFProtection && c.CSRF.TokenTTL <= 0 {
		return errors.New("CSRF TokenTTL must be > 0 when CSRFProtection is enabled")
	}

	// Session
	if c.Session.RefreshInterval < 0 {
		return errors.New("Session RefreshInterval must be >= 0")
	}
	if c.Session.RefreshInterval > 0 && c.Session.RefreshInterval < time.Second {
		return errors.New("Session RefreshInterval must be >= 1s")
	}

	// Wallet
	if c.Wallet.DefaultConnector != "" {
		switch c.Wallet.DefaultConnector {
		case "injected", "walletconnect", "coinbase":
		default:
			return errors.New("Wallet DefaultConnector is invalid")
		}
	}
	for _, id := range c.Wallet.AllowedChains {
		if id <= 0 {
			return errors.New("Wallet AllowedChains entries must be > 0")
		}
	}

	// Backend
	if c.Backend.Timeout < 0 {
		return errors.New("Backend Timeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
