// ABOUTME: Minimal concurrency-safe counter registry for signaling events
// ABOUTME: Counters are exposed as a JSON snapshot on the status endpoint

package signaling

import "sync"

// Counter names.
const (
	MetricCallsMatched      = "calls_matched"
	MetricCallsWaiting      = "calls_waiting"
	MetricStaleReservations = "stale_reservations"
	MetricRelayForwarded    = "relay_forwarded"
	MetricRelayDropped      = "relay_dropped"
	MetricCallsEnded        = "calls_ended"
	MetricDisconnects       = "disconnects"
	MetricMalformed         = "malformed_messages"
	MetricDirectoryErrors   = "directory_errors"
)

// Metrics is a minimal, concurrency-safe counter registry. A production
// deployment would plug into a real metrics backend; this keeps the hub
// logic observable and testable without one.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

// NewMetrics creates an empty counter registry.
func NewMetrics() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc increments a counter by one.
func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

// Get returns the current value of a counter.
func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
