package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterConflict
	MetricRegisterPolicyRejected
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginInactive
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRotated
	MetricLogout
	MetricLogoutAll
	MetricSessionCreated
	MetricSessionCacheMiss
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricEmailVerificationAttemptsExceeded
	MetricEmailVerificationResent
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricPasswordRehashed
	MetricRateLimitHit
	MetricRateLimitFailOpen
	MetricValidateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRegisterSuccess:                   "register_success",
	MetricRegisterConflict:                  "register_conflict",
	MetricRegisterPolicyRejected:            "register_policy_rejected",
	MetricLoginSuccess:                      "login_success",
	MetricLoginFailure:                      "login_failure",
	MetricLoginRateLimited:                  "login_rate_limited",
	MetricLoginInactive:                     "login_inactive",
	MetricRefreshSuccess:                    "refresh_success",
	MetricRefreshFailure:                    "refresh_failure",
	MetricRefreshRotated:                    "refresh_rotated",
	MetricLogout:                            "logout",
	MetricLogoutAll:                         "logout_all",
	MetricSessionCreated:                    "session_created",
	MetricSessionCacheMiss:                  "session_cache_miss",
	MetricEmailVerificationSuccess:          "email_verification_success",
	MetricEmailVerificationFailure:          "email_verification_failure",
	MetricEmailVerificationAttemptsExceeded: "email_verification_attempts_exceeded",
	MetricEmailVerificationResent:           "email_verification_resent",
	MetricPasswordResetRequest:              "password_reset_request",
	MetricPasswordResetSuccess:              "password_reset_success",
	MetricPasswordResetFailure:              "password_reset_failure",
	MetricPasswordChangeSuccess:             "password_change_success",
	MetricPasswordChangeFailure:             "password_change_failure",
	MetricPasswordRehashed:                  "password_rehashed",
	MetricRateLimitHit:                      "rate_limit_hit",
	MetricRateLimitFailOpen:                 "rate_limit_fail_open",
	MetricValidateLatency:                   "validate_latency",
}

// String returns the snake_case metric name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every counter id in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// HistogramBounds returns the upper bounds of the latency buckets. The
// last bucket is unbounded.
func HistogramBounds() []time.Duration {
	return []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
	}
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the validate latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricValidateLatency has
// a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
