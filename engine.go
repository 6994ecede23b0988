package authguard

import (
	"log/slog"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/rate"
)

// Engine is the rate limiter and token lifecycle manager.
//
// Engine instances are configured through Builder and then treated as
// immutable. All methods are safe for concurrent use.
type Engine struct {
	config       Config
	clock        Clock
	logger       *slog.Logger
	limiter      *rate.Limiter
	tokenStore   TokenStore
	userProvider UserProvider
	mailer       Mailer
	audit        *audit.Dispatcher
	metrics      *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close flushes pending audit events and stops the audit dispatcher. It is
// safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns an empty snapshot when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the validated configuration the engine runs with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// FallbackEntries reports how many keys the in-memory rate-limit fallback
// currently tracks, including ones not yet swept.
func (e *Engine) FallbackEntries() int {
	if e == nil || e.limiter == nil {
		return 0
	}
	return e.limiter.Fallback().Len()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
