package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveModelRefresh is a no-op.
func (n *NoopRecorder) ObserveModelRefresh(provider, source string, duration time.Duration, models int) {
}

// IncModelRefreshFailure is a no-op.
func (n *NoopRecorder) IncModelRefreshFailure(provider string) {}

// IncProviderFallback is a no-op.
func (n *NoopRecorder) IncProviderFallback(provider string) {}

// IncSnapshotCacheHit is a no-op.
func (n *NoopRecorder) IncSnapshotCacheHit(provider string) {}

// IncSnapshotCacheMiss is a no-op.
func (n *NoopRecorder) IncSnapshotCacheMiss(provider string) {}

// IncLoginAttempt is a no-op.
func (n *NoopRecorder) IncLoginAttempt(result string) {}

// IncSignup is a no-op.
func (n *NoopRecorder) IncSignup() {}

// IncContactPublished is a no-op.
func (n *NoopRecorder) IncContactPublished(status string) {}

// IncContactProcessed is a no-op.
func (n *NoopRecorder) IncContactProcessed(status string) {}

// ObserveContactBatchSize is a no-op.
func (n *NoopRecorder) ObserveContactBatchSize(size int) {}

// SetContactQueueDepth is a no-op.
func (n *NoopRecorder) SetContactQueueDepth(depth int64) {}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
}
