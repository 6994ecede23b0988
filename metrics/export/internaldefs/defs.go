package internaldefs

import (
	"github.com/MrEthical07/authguard"
)

// CounterDef maps one engine counter onto an exported series. Defs sharing
// a Name form one metric family and are told apart by LabelKey/LabelValue.
type CounterDef struct {
	ID         authguard.MetricID
	Name       string
	Help       string
	LabelKey   string
	LabelValue string
}

// HistogramDef maps an engine histogram onto an exported series.
type HistogramDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Members of a family are
// contiguous.
var CounterDefs = []CounterDef{
	{ID: authguard.MetricRateLimitAllowed, Name: "authguard_rate_limit_checks_total", Help: "Rate-limit checks by result.", LabelKey: "result", LabelValue: "allowed"},
	{ID: authguard.MetricRateLimitDenied, Name: "authguard_rate_limit_checks_total", Help: "Rate-limit checks by result.", LabelKey: "result", LabelValue: "denied"},
	{ID: authguard.MetricRateLimitFallback, Name: "authguard_rate_limit_fallback_total", Help: "Checks answered by the in-memory fallback after a distributed counter failure."},
	{ID: authguard.MetricTokenIssued, Name: "authguard_tokens_issued_total", Help: "Issued verification and reset tokens."},
	{ID: authguard.MetricTokenConsumeSuccess, Name: "authguard_token_consume_total", Help: "Token consume attempts by outcome.", LabelKey: "outcome", LabelValue: "success"},
	{ID: authguard.MetricTokenConsumeInvalid, Name: "authguard_token_consume_total", Help: "Token consume attempts by outcome.", LabelKey: "outcome", LabelValue: "invalid"},
	{ID: authguard.MetricTokenConsumeExpired, Name: "authguard_token_consume_total", Help: "Token consume attempts by outcome.", LabelKey: "outcome", LabelValue: "expired"},
	{ID: authguard.MetricTokenStoreFailure, Name: "authguard_token_store_failures_total", Help: "Token store operations that failed."},
	{ID: authguard.MetricEmailVerificationRequest, Name: "authguard_email_verification_requests_total", Help: "Email verification requests."},
	{ID: authguard.MetricEmailVerified, Name: "authguard_email_verified_total", Help: "Addresses marked verified."},
	{ID: authguard.MetricPasswordResetRequest, Name: "authguard_password_reset_requests_total", Help: "Password reset requests."},
	{ID: authguard.MetricMailFailure, Name: "authguard_mail_failures_total", Help: "Token mails the mailer failed to deliver."},
}

var HistogramDefs = []HistogramDef{
	{ID: authguard.MetricCounterLatency, Name: "authguard_counter_latency_seconds", Help: "Distributed rate-limit counter round trip."},
}

const (
	AuditDroppedName = "authguard_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

	FallbackEntriesName = "authguard_rate_limit_fallback_entries"
	FallbackEntriesHelp = "Keys tracked by the in-memory rate-limit fallback."
)

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [authguard.HistogramBucketCount]uint64 {
	var out [authguard.HistogramBucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [authguard.HistogramBucketCount]uint64) [authguard.HistogramBucketCount]uint64 {
	var out [authguard.HistogramBucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
