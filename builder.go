package authguard

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/clock"
	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	httpClient *http.Client

	tokenStore   TokenStore
	userProvider UserProvider
	mailer       Mailer
	auditSink    AuditSink
	logger       *slog.Logger
	clock        Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// The client backs the distributed rate-limit counter (unless a REST URL is
// configured) and, when no TokenStore is supplied, the built-in
// RedisTokenStore.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for the REST counter backend.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTokenStore overrides the token storage backend.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokenStore = store
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// The provider is required: verification tokens mark the email verified
// through it, and the request flows look users up with it.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithMailer sets the collaborator that delivers raw tokens.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// Events reach the sink only when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for backend degradation and infrastructure
// failures. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source for windows and token expiry.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithMetricsEnabled toggles in-process metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the distributed counter latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, selects the distributed counter (REST
// pipeline when Counter.RESTURL is set, else Redis when a client was given,
// else none) and wires the token store. It fails when no token store can be
// resolved or no user provider was supplied.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	c := b.clock
	if c == nil {
		c = clock.System{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := b.tokenStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("token store required: call WithTokenStore or WithRedis")
		}
		store = NewRedisTokenStore(b.redis, cfg.Tokens, c)
	}

	engine := &Engine{
		config:       cfg,
		clock:        c,
		logger:       logger,
		tokenStore:   store,
		userProvider: b.userProvider,
		mailer:       b.mailer,
		metrics:      NewMetrics(cfg.Metrics),
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     engine.onAuditDrop,
	}, b.auditSink)

	// -------- RATE LIMITER --------
	var counter rate.Counter
	switch {
	case cfg.Counter.RESTURL != "":
		counter = rate.NewRESTCounter(cfg.Counter.RESTURL, cfg.Counter.RESTToken, b.httpClient, cfg.Counter.KeyPrefix)
	case b.redis != nil:
		counter = rate.NewRedisCounter(b.redis, cfg.Counter.KeyPrefix)
	}

	engine.limiter = rate.New(counter, rate.NewMemory(c, cfg.RateLimit.SweepInterval), rate.Options{
		Clock:      c,
		Logger:     logger,
		Timeout:    cfg.Counter.Timeout,
		OnFallback: engine.onCounterFallback,
		ObserveLatency: func(d time.Duration) {
			engine.metrics.Observe(MetricCounterLatency, d)
		},
	})

	b.built = true

	return engine, nil
}
