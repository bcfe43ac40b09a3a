package metrics

import (
	"testing"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestAggregatorStartsAtZero(t *testing.T) {
	a := NewAggregator()
	snap := a.Snapshot()

	assert.Equal(t, uint64(0), snap.DiscoveryRuns)
	assert.Equal(t, uint64(0), snap.SessionsFinished)
	assert.Equal(t, uint64(0), snap.SyncRequests)
	assert.Equal(t, uint64(0), snap.NodesEvicted)
	assert.Equal(t, 0.0, snap.AvgCoherenceLevel)
	assert.Equal(t, time.Duration(0), snap.AvgDiscoveryDuration)
}

func TestObserveDiscovery(t *testing.T) {
	a := NewAggregator()

	a.ObserveDiscovery(types.DiscoveryResult{InstanceCount: 3, DeviceCount: 1, Duration: 100 * time.Millisecond})
	a.ObserveDiscovery(types.DiscoveryResult{InstanceCount: 2, DeviceCount: 0, Duration: 300 * time.Millisecond})

	snap := a.Snapshot()
	assert.Equal(t, uint64(2), snap.DiscoveryRuns)
	assert.Equal(t, uint64(5), snap.InstancesDiscovered)
	assert.Equal(t, uint64(1), snap.DevicesDiscovered)
	assert.Equal(t, 200*time.Millisecond, snap.AvgDiscoveryDuration)
}

func TestObserveSessionBuckets(t *testing.T) {
	a := NewAggregator()

	a.ObserveSession(types.SessionSummary{Status: types.SessionStatusCompleted, Duration: time.Second})
	a.ObserveSession(types.SessionSummary{Status: types.SessionStatusPartiallyCompleted, Duration: time.Second})
	a.ObserveSession(types.SessionSummary{Status: types.SessionStatusFailed, Duration: time.Second})
	a.ObserveSession(types.SessionSummary{Status: types.SessionStatusFailed, Duration: time.Second})

	snap := a.Snapshot()
	assert.Equal(t, uint64(4), snap.SessionsFinished)
	assert.Equal(t, uint64(1), snap.SessionsCompleted)
	assert.Equal(t, uint64(1), snap.SessionsPartial)
	assert.Equal(t, uint64(2), snap.SessionsFailed)
	assert.Equal(t, time.Second, snap.AvgSessionDuration)
}

func TestObserveSyncRunningAverage(t *testing.T) {
	a := NewAggregator()

	a.ObserveSync(types.SyncResult{
		CoherenceLevel:      1.0,
		SynchronizedDomains: []string{"memory", "identity"},
	})
	a.ObserveSync(types.SyncResult{
		CoherenceLevel: 0.5,
		FailedDomains:  []types.DomainFailure{{Domain: "memory", InstanceID: "inst-a"}},
	})

	snap := a.Snapshot()
	assert.Equal(t, uint64(2), snap.SyncRequests)
	assert.Equal(t, uint64(2), snap.DomainsSynchronized)
	assert.Equal(t, uint64(1), snap.DomainsFailed)
	assert.InDelta(t, 0.75, snap.AvgCoherenceLevel, 1e-9)
}

func TestObserveEviction(t *testing.T) {
	a := NewAggregator()

	a.ObserveEviction(2)
	a.ObserveEviction(0)
	a.ObserveEviction(-1)
	a.ObserveEviction(3)

	assert.Equal(t, uint64(5), a.Snapshot().NodesEvicted)
}

// Counters only ever increase; a snapshot is a copy, not a view
func TestSnapshotIsCopy(t *testing.T) {
	a := NewAggregator()
	a.ObserveEviction(1)

	snap := a.Snapshot()
	snap.NodesEvicted = 100

	assert.Equal(t, uint64(1), a.Snapshot().NodesEvicted)
}
