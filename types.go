package authguard

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/clock"
	"github.com/MrEthical07/authguard/internal/metrics"
)

// TokenPurpose tags what a token authorizes.
type TokenPurpose string

const (
	// PurposeVerify tokens confirm ownership of an email address.
	PurposeVerify TokenPurpose = "verify"
	// PurposeReset tokens authorize a password change.
	PurposeReset TokenPurpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == PurposeVerify || p == PurposeReset
}

// ConsumeStatus is the security outcome of ConsumeToken. The zero value is
// ConsumeInvalid.
type ConsumeStatus uint8

const (
	// ConsumeInvalid covers never issued, already consumed, superseded, wrong
	// token and wrong email.
	ConsumeInvalid ConsumeStatus = iota
	// ConsumeSuccess means the token was live and has now been deleted.
	ConsumeSuccess
	// ConsumeExpired means the token was found past its expiry and has now
	// been deleted.
	ConsumeExpired
)

func (s ConsumeStatus) String() string {
	switch s {
	case ConsumeSuccess:
		return "success"
	case ConsumeExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// RateLimitResult is returned by every rate-limit check.
//
// RetryAfter is max(ceil((ResetAt-now)/1s), 1) and is meaningful only when
// Allowed is false. Backend names the counter that answered ("redis",
// "rest" or "memory"); Fallback is set when a configured distributed
// counter failed and the in-memory backend answered instead.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
	Backend    string
	Fallback   bool
}

// AuthAction names a rate-limited authentication endpoint.
type AuthAction string

const (
	ActionLogin              AuthAction = "login"
	ActionRegister           AuthAction = "register"
	ActionForgotPassword     AuthAction = "forgot"
	ActionResetPassword      AuthAction = "reset"
	ActionResendVerification AuthAction = "resend-verification"
)

// RateLimitDimension is the attribute a rate-limit key is scoped by.
type RateLimitDimension string

const (
	DimensionIP    RateLimitDimension = "ip"
	DimensionEmail RateLimitDimension = "email"
)

// TokenRecord is the persisted form of an issued token. TokenHash is the
// lowercase hex SHA-256 of the raw token.
type TokenRecord struct {
	ID        string
	Purpose   TokenPurpose
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenStore persists token records. Implementations must be safe for
// concurrent use.
//
// Replace removes any record for (record.Purpose, record.Email) and purges
// expired records of the same purpose before inserting record, so that at
// most one record per (purpose, email) exists afterwards.
//
// FindByHash returns ErrTokenNotFound when no record matches all three keys.
//
// Delete removes the record by ID and reports whether this call removed it.
// Exactly one of several concurrent callers may observe true.
type TokenStore interface {
	Replace(ctx context.Context, record TokenRecord) error
	FindByHash(ctx context.Context, purpose TokenPurpose, email, tokenHash string) (*TokenRecord, error)
	Delete(ctx context.Context, record TokenRecord) (bool, error)
}

// UserRecord is the subset of user state the token flows need.
type UserRecord struct {
	Email         string
	EmailVerified bool
}

// UserProvider is implemented by the application's user storage.
// GetUserByEmail returns ErrUserNotFound for unknown addresses. Emails are
// passed normalized (trimmed, lowercase).
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	MarkEmailVerified(ctx context.Context, email string) error
}

// Mailer delivers raw tokens. It builds the message content; the engine only
// supplies the destination and the token.
type Mailer interface {
	SendEmailVerification(ctx context.Context, email, rawToken string) error
	SendPasswordReset(ctx context.Context, email, rawToken string) error
}

// Clock supplies the current time. Tests inject a manual clock so window
// and expiry behavior never depends on real sleeps.
type Clock = clock.Clock

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = audit.JSONWriterSink

// SlogSink is an [AuditSink] that writes each event as a structured log record.
type SlogSink = audit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink]. A nil logger selects slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = metrics.MetricID

const (
	MetricRateLimitAllowed         = metrics.MetricRateLimitAllowed
	MetricRateLimitDenied          = metrics.MetricRateLimitDenied
	MetricRateLimitFallback        = metrics.MetricRateLimitFallback
	MetricTokenIssued              = metrics.MetricTokenIssued
	MetricTokenConsumeSuccess      = metrics.MetricTokenConsumeSuccess
	MetricTokenConsumeInvalid      = metrics.MetricTokenConsumeInvalid
	MetricTokenConsumeExpired      = metrics.MetricTokenConsumeExpired
	MetricTokenStoreFailure        = metrics.MetricTokenStoreFailure
	MetricEmailVerificationRequest = metrics.MetricEmailVerificationRequest
	MetricEmailVerified            = metrics.MetricEmailVerified
	MetricPasswordResetRequest     = metrics.MetricPasswordResetRequest
	MetricMailFailure              = metrics.MetricMailFailure
	// MetricCounterLatency is the distributed counter round-trip histogram.
	MetricCounterLatency = metrics.MetricCounterLatency
)

// HistogramBucketCount is the number of latency buckets in a snapshot
// histogram (<=5ms, <=10ms, <=25ms, <=50ms, <=100ms, <=250ms, <=500ms, +Inf).
const HistogramBucketCount = metrics.HistogramBucketCount

// Metrics holds atomic counters and optional latency histograms.
type Metrics = metrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = metrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return metrics.New(metrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
