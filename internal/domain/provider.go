package domain

import "time"

// ProviderHealth is the mutable, per-provider health posture (spec §3).
// Providers start unhealthy/unknown so the service never optimistically
// picks an unvalidated provider.
type ProviderHealth struct {
	Healthy             bool
	LastCheck           time.Time // zero value = never checked
	ConsecutiveFailures int
	LastError           string
	AverageLatencyMs    float64
	SuccessRate         float64 // over the last 100 requests
}

// ProviderMetrics are monotonic counters tracked per provider.
type ProviderMetrics struct {
	TotalSimulations      int64
	SuccessfulSimulations int64
	FailedSimulations     int64
	PredictedReverts      int64
	AverageLatencyMs      float64
	FallbackUsed          int64
	CacheHits             int64
	LastUpdated           time.Time
}
