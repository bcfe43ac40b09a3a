package metrics

import (
	"sync"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
)

// Aggregator keeps authentic coordination metrics: counters start at zero
// and only ever increase; running averages are recomputed from real
// observations and never reset. It implements session.SummarySink.
type Aggregator struct {
	mu   sync.Mutex
	snap types.MetricsSnapshot

	discoveryDurTotal time.Duration
	sessionDurTotal   time.Duration
	coherenceTotal    float64
	syncObservations  uint64
}

// NewAggregator creates a zero-initialized aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// ObserveDiscovery records the outcome of one discovery pass
func (a *Aggregator) ObserveDiscovery(res types.DiscoveryResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.DiscoveryRuns++
	a.snap.InstancesDiscovered += uint64(res.InstanceCount)
	a.snap.DevicesDiscovered += uint64(res.DeviceCount)
	a.discoveryDurTotal += res.Duration
	a.snap.AvgDiscoveryDuration = a.discoveryDurTotal / time.Duration(a.snap.DiscoveryRuns)

	DiscoveryRunsTotal.Inc()
	DiscoveryDuration.Observe(res.Duration.Seconds())
}

// ObserveSession records the summary of a terminal session
func (a *Aggregator) ObserveSession(sum types.SessionSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.SessionsFinished++
	switch sum.Status {
	case types.SessionStatusCompleted:
		a.snap.SessionsCompleted++
	case types.SessionStatusPartiallyCompleted:
		a.snap.SessionsPartial++
	case types.SessionStatusFailed:
		a.snap.SessionsFailed++
	}
	a.sessionDurTotal += sum.Duration
	a.snap.AvgSessionDuration = a.sessionDurTotal / time.Duration(a.snap.SessionsFinished)

	SessionsTotal.WithLabelValues(string(sum.Type), string(sum.Status)).Inc()
	SessionDuration.Observe(sum.Duration.Seconds())
}

// ObserveSync records the outcome of one synchronization request
func (a *Aggregator) ObserveSync(res types.SyncResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.SyncRequests++
	a.snap.DomainsSynchronized += uint64(len(res.SynchronizedDomains))
	a.snap.DomainsFailed += uint64(len(res.FailedDomains))
	a.syncObservations++
	a.coherenceTotal += res.CoherenceLevel
	a.snap.AvgCoherenceLevel = a.coherenceTotal / float64(a.syncObservations)

	SyncRequestsTotal.WithLabelValues(string(res.Status)).Inc()
	CoherenceObserved.Observe(res.CoherenceLevel)
}

// ObserveEviction records nodes removed for staleness
func (a *Aggregator) ObserveEviction(count int) {
	if count <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.NodesEvicted += uint64(count)
	NodesEvictedTotal.Add(float64(count))
}

// Snapshot returns a point-in-time copy of all counters and averages
func (a *Aggregator) Snapshot() types.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}
