package hybridAuth

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/hybridAuth/backend"
	"github.com/MrEthical07/hybridAuth/conversion"
	"github.com/MrEthical07/hybridAuth/identity"
	"github.com/MrEthical07/hybridAuth/internal"
	"github.com/MrEthical07/hybridAuth/internal/csrf"
	"github.com/MrEthical07/hybridAuth/internal/rate"
	"github.com/MrEthical07/hybridAuth/wallet"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, then call
// Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identityProvider identity.Provider
	walletProvider   wallet.Provider
	backend          *backend.Client
	tokenValidator   identity.Validator
	policy           *AccessPolicy
	auditSink        AuditSink
	now              func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis moves the login limiter and the CSRF slot into Redis. Without it
// both live in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider sets the custodial email-link provider.
func (b *Builder) WithIdentityProvider(p identity.Provider) *Builder {
	b.identityProvider = p
	return b
}

// WithWalletProvider sets the injected wallet provider. Leaving it unset is
// valid; wallet operations then fail with [ErrNoProviderDetected].
func (b *Builder) WithWalletProvider(p wallet.Provider) *Builder {
	b.walletProvider = p
	return b
}

// WithBackend sets the backend client. When unset, Build creates one from
// Config.Backend if a BaseURL is configured.
func (b *Builder) WithBackend(c *backend.Client) *Builder {
	b.backend = c
	return b
}

// WithTokenValidator overrides the backend as the validator of login tokens.
func (b *Builder) WithTokenValidator(v identity.Validator) *Builder {
	b.tokenValidator = v
	return b
}

// WithPolicy overrides [DefaultPolicy].
func (b *Builder) WithPolicy(p *AccessPolicy) *Builder {
	b.policy = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for the limiter, the tracker and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identityProvider == nil {
		return nil, errors.New("identity provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	policy := b.policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	// -------- BACKEND --------
	api := b.backend
	if api == nil && cfg.Backend.BaseURL != "" {
		api = backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		}, &http.Client{})
	}

	tokenValidator := b.tokenValidator
	if tokenValidator == nil && api != nil {
		tokenValidator = api
	}

	sessionID := internal.NewSessionID()

	// -------- LIMITER / CSRF --------
	limiterCfg := rate.Config{
		MaxAttempts: cfg.RateLimit.MaxLoginAttempts,
		Window:      cfg.RateLimit.LockoutWindow,
	}

	var limiter rate.Limiter
	var slot csrf.Slot
	if b.redis != nil {
		limiter = rate.NewRedis(b.redis, limiterCfg, now)
		slot = csrf.NewRedisSlot(b.redis, sessionID, cfg.CSRF.TokenTTL)
	} else {
		limiter = rate.NewMemory(limiterCfg, now)
		slot = csrf.NewMemorySlot()
	}

	engine := &Engine{
		config:    cfg,
		policy:    policy,
		identity:  identity.NewClient(b.identityProvider, tokenValidator),
		limiter:   limiter,
		csrf:      csrf.NewManager(slot),
		backend:   api,
		tracker:   conversion.NewTracker(now),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		validate:  validator.New(),
		sessionID: sessionID,
		now:       now,
		schedule:  scheduleAfter,
	}
	engine.wallet = wallet.NewConnector(b.walletProvider,
		wallet.WithChangeHandler(engine.onWalletChange),
		wallet.WithErrorHandler(engine.onWalletError),
	)
	engine.publishLocked()

	b.built = true

	return engine, nil
}
