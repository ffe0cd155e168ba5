package metrics

import "time"

// Tee fans every event out to several recorders.
type Tee []Recorder

// NewTee returns a Recorder that forwards to each non-nil recorder.
func NewTee(recorders ...Recorder) Tee {
	out := make(Tee, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (t Tee) ObserveModelRefresh(provider, source string, duration time.Duration, models int) {
	for _, r := range t {
		r.ObserveModelRefresh(provider, source, duration, models)
	}
}

func (t Tee) IncModelRefreshFailure(provider string) {
	for _, r := range t {
		r.IncModelRefreshFailure(provider)
	}
}

func (t Tee) IncProviderFallback(provider string) {
	for _, r := range t {
		r.IncProviderFallback(provider)
	}
}

func (t Tee) IncSnapshotCacheHit(provider string) {
	for _, r := range t {
		r.IncSnapshotCacheHit(provider)
	}
}

func (t Tee) IncSnapshotCacheMiss(provider string) {
	for _, r := range t {
		r.IncSnapshotCacheMiss(provider)
	}
}

func (t Tee) IncLoginAttempt(result string) {
	for _, r := range t {
		r.IncLoginAttempt(result)
	}
}

func (t Tee) IncSignup() {
	for _, r := range t {
		r.IncSignup()
	}
}

func (t Tee) IncContactPublished(status string) {
	for _, r := range t {
		r.IncContactPublished(status)
	}
}

func (t Tee) IncContactProcessed(status string) {
	for _, r := range t {
		r.IncContactProcessed(status)
	}
}

func (t Tee) ObserveContactBatchSize(size int) {
	for _, r := range t {
		r.ObserveContactBatchSize(size)
	}
}

func (t Tee) SetContactQueueDepth(depth int64) {
	for _, r := range t {
		r.SetContactQueueDepth(depth)
	}
}

func (t Tee) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	for _, r := range t {
		r.ObserveHTTPRequest(method, route, status, duration)
	}
}
