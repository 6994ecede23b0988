package rate

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/authguard/internal/clock"
)

// Backend names reported in Result.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendREST   = "rest"
)

// Result is the outcome of one limiter hit.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Backend   string
	// Fallback is set when a configured distributed counter failed and the
	// in-memory backend answered instead.
	Fallback bool
}

// Counter is a distributed fixed-window counter. Increment must atomically
// bump key, read its remaining TTL, and set the TTL to window only when the
// key has none.
type Counter interface {
	Name() string
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Options tunes a Limiter. Zero values are valid.
type Options struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Timeout time.Duration
	// OnFallback runs after a distributed failure, before the memory check.
	OnFallback func(key string, err error)
	// ObserveLatency receives the duration of every distributed call.
	ObserveLatency func(time.Duration)
}

// Limiter tries a distributed Counter first and degrades to Memory.
type Limiter struct {
	primary  Counter
	fallback *Memory
	clock    clock.Clock
	logger   *slog.Logger
	timeout  time.Duration

	onFallback     func(key string, err error)
	observeLatency func(time.Duration)
}

// New builds a Limiter. primary may be nil (memory-only). A nil fallback is
// replaced by a fresh Memory sharing the limiter clock.
func New(primary Counter, fallback *Memory, opts Options) *Limiter {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = NewMemory(c, DefaultSweepInterval)
	}

	return &Limiter{
		primary:        primary,
		fallback:       fallback,
		clock:          c,
		logger:         logger,
		timeout:        opts.Timeout,
		onFallback:     opts.OnFallback,
		observeLatency: opts.ObserveLatency,
	}
}

// Fallback exposes the in-memory backend.
func (l *Limiter) Fallback() *Memory {
	return l.fallback
}

// PrimaryName returns the distributed backend name, or "" when memory-only.
func (l *Limiter) PrimaryName() string {
	if l.primary == nil {
		return ""
	}
	return l.primary.Name()
}

// Check records one hit for key. It never fails: distributed errors are
// logged and answered by the in-memory backend. A non-positive limit or
// window denies without touching any backend.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Result {
	if limit <= 0 || window <= 0 {
		return Result{
			Allowed: false,
			ResetAt: l.clock.Now().Add(max(window, 0)),
			Backend: l.backendName(),
		}
	}

	if l.primary != nil {
		res, err := l.checkPrimary(ctx, key, limit, window)
		if err == nil {
			return res
		}

		l.logger.Warn("rate limit counter unavailable, using in-memory fallback",
			"backend", l.primary.Name(),
			"key", key,
			"error", err,
		)
		if l.onFallback != nil {
			l.onFallback(key, err)
		}

		res = l.fallback.Check(key, limit, window)
		res.Fallback = true
		return res
	}

	return l.fallback.Check(key, limit, window)
}

func (l *Limiter) checkPrimary(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	count, ttl, err := l.primary.Increment(ctx, key, window)
	if l.observeLatency != nil {
		l.observeLatency(time.Since(start))
	}
	if err != nil {
		return Result{}, err
	}

	now := l.clock.Now()
	if ttl <= 0 {
		ttl = window
	}
	resetAt := now.Add(ttl)

	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Backend: l.primary.Name()}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
		Backend:   l.primary.Name(),
	}, nil
}

func (l *Limiter) backendName() string {
	if l.primary != nil {
		return l.primary.Name()
	}
	return BackendMemory
}

// RetryAfterSeconds converts a reset instant into a Retry-After value:
// max(ceil((resetAt-now)/1s), 1).
func RetryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		return 1
	}
	return secs
}
