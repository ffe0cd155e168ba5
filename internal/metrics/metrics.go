// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Refresh sources.
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Model refresh metrics
	ObserveModelRefresh(provider, source string, duration time.Duration, models int)
	IncModelRefreshFailure(provider string)
	IncProviderFallback(provider string)

	// Snapshot read cache metrics
	IncSnapshotCacheHit(provider string)
	IncSnapshotCacheMiss(provider string)

	// Auth metrics
	IncLoginAttempt(result string) // result: "success", "invalid", "unconfirmed", "error"
	IncSignup()

	// Contact pipeline metrics
	IncContactPublished(status string) // status: "success" or "dropped"
	IncContactProcessed(status string) // status: "delivered", "failed", "retried", "dead_lettered"
	ObserveContactBatchSize(size int)
	SetContactQueueDepth(depth int64)

	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
