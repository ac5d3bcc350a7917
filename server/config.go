package server

import (
	"errors"
	"time"
)

// Config configures a [Server].
type Config struct {
	// ValidateRate is the per-IP request rate allowed on the validate route,
	// in requests per second.
	ValidateRate  float64
	ValidateBurst int
	// TrustForwardedFor makes the limiter key on X-Forwarded-For and
	// X-Real-IP before RemoteAddr. Enable only behind a trusted proxy.
	TrustForwardedFor bool
	MaxBodyBytes      int64
	// KeyPrefix namespaces every Redis key the server writes.
	KeyPrefix string
	// LinkTTL bounds how long a wallet link survives without being refreshed.
	// Zero keeps links until unlinked.
	LinkTTL time.Duration
}

// DefaultConfig returns the settings used by cmd/hybridauth-server.
func DefaultConfig() Config {
	return Config{
		ValidateRate:  5,
		ValidateBurst: 10,
		MaxBodyBytes:  16 << 10,
		KeyPrefix:     "hsrv",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ValidateRate <= 0 {
		return errors.New("server: ValidateRate must be > 0")
	}
	if c.ValidateBurst < 1 {
		return errors.New("server: ValidateBurst must be >= 1")
	}
	if c.MaxBodyBytes < 256 {
		return errors.New("server: MaxBodyBytes must be >= 256")
	}
	if c.KeyPrefix == "" {
		return errors.New("server: KeyPrefix must not be empty")
	}
	if c.LinkTTL < 0 {
		return errors.New("server: LinkTTL must be >= 0")
	}
	return nil
}
