package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Refreshes         map[string]uint64 `json:"refreshes"` // keyed by "provider/source"
	RefreshFailures   map[string]uint64 `json:"refresh_failures"`
	Fallbacks         map[string]uint64 `json:"fallbacks"`
	SnapshotCacheHits uint64            `json:"snapshot_cache_hits"`
	SnapshotCacheMiss uint64            `json:"snapshot_cache_misses"`
	LoginAttempts     map[string]uint64 `json:"login_attempts"`
	Signups           uint64            `json:"signups"`
	ContactPublished  map[string]uint64 `json:"contact_published"`
	ContactProcessed  map[string]uint64 `json:"contact_processed"`
	ContactQueueDepth int64             `json:"contact_queue_depth"`
	HTTPRequests      uint64            `json:"http_requests"`
}

// InMemoryRecorder stores metrics in memory for tests and the admin overview.
type InMemoryRecorder struct {
	mu               sync.Mutex
	refreshes        map[string]uint64
	refreshFailures  map[string]uint64
	fallbacks        map[string]uint64
	loginAttempts    map[string]uint64
	contactPublished map[string]uint64
	contactProcessed map[string]uint64

	snapshotCacheHits uint64
	snapshotCacheMiss uint64
	signups           uint64
	contactQueueDepth int64
	httpRequests      uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		refreshes:        make(map[string]uint64),
		refreshFailures:  make(map[string]uint64),
		fallbacks:        make(map[string]uint64),
		loginAttempts:    make(map[string]uint64),
		contactPublished: make(map[string]uint64),
		contactProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Refreshes:         copyCounts(m.refreshes),
		RefreshFailures:   copyCounts(m.refreshFailures),
		Fallbacks:         copyCounts(m.fallbacks),
		SnapshotCacheHits: atomic.LoadUint64(&m.snapshotCacheHits),
		SnapshotCacheMiss: atomic.LoadUint64(&m.snapshotCacheMiss),
		LoginAttempts:     copyCounts(m.loginAttempts),
		Signups:           atomic.LoadUint64(&m.signups),
		ContactPublished:  copyCounts(m.contactPublished),
		ContactProcessed:  copyCounts(m.contactProcessed),
		ContactQueueDepth: atomic.LoadInt64(&m.contactQueueDepth),
		HTTPRequests:      atomic.LoadUint64(&m.httpRequests),
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ObserveModelRefresh counts a completed refresh.
func (m *InMemoryRecorder) ObserveModelRefresh(provider, source string, duration time.Duration, models int) {
	m.inc(m.refreshes, provider+"/"+source)
}

// IncModelRefreshFailure counts a failed refresh.
func (m *InMemoryRecorder) IncModelRefreshFailure(provider string) {
	m.inc(m.refreshFailures, provider)
}

// IncProviderFallback counts a fallback to static models.
func (m *InMemoryRecorder) IncProviderFallback(provider string) {
	m.inc(m.fallbacks, provider)
}

// IncSnapshotCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncSnapshotCacheHit(provider string) {
	atomic.AddUint64(&m.snapshotCacheHits, 1)
}

// IncSnapshotCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncSnapshotCacheMiss(provider string) {
	atomic.AddUint64(&m.snapshotCacheMiss, 1)
}

// IncLoginAttempt counts a login by result.
func (m *InMemoryRecorder) IncLoginAttempt(result string) {
	m.inc(m.loginAttempts, result)
}

// IncSignup increments the signup counter.
func (m *InMemoryRecorder) IncSignup() {
	atomic.AddUint64(&m.signups, 1)
}

// IncContactPublished counts a contact publish by status.
func (m *InMemoryRecorder) IncContactPublished(status string) {
	m.inc(m.contactPublished, status)
}

// IncContactProcessed counts a contact delivery outcome.
func (m *InMemoryRecorder) IncContactProcessed(status string) {
	m.inc(m.contactProcessed, status)
}

// ObserveContactBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveContactBatchSize(size int) {}

// SetContactQueueDepth stores the latest queue depth.
func (m *InMemoryRecorder) SetContactQueueDepth(depth int64) {
	atomic.StoreInt64(&m.contactQueueDepth, depth)
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}
