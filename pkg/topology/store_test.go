package topology

import (
	"errors"
	"testing"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instanceAt(id string, observed time.Time) *types.Instance {
	return &types.Instance{
		ID:         id,
		Kind:       types.InstanceKindFullOrchestration,
		ObservedAt: observed,
	}
}

func TestMergeDiscoveryUpserts(t *testing.T) {
	s := NewStore(0)

	err := s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
	}, map[string]*types.Device{
		"dev-a": {ID: "dev-a", Kind: types.DeviceKindServer, ObservedAt: time.Now()},
	})
	require.NoError(t, err)

	instances, devices := s.Counts()
	assert.Equal(t, 1, instances)
	assert.Equal(t, 1, devices)
	assert.True(t, s.HasNode("inst-a"))
	assert.True(t, s.HasNode("dev-a"))
	assert.False(t, s.HasNode("inst-b"))
}

func TestMergeDiscoveryIdempotent(t *testing.T) {
	s := NewStore(0)
	observed := time.Now()

	for i := 0; i < 3; i++ {
		err := s.MergeDiscovery(map[string]*types.Instance{
			"inst-a": instanceAt("inst-a", observed),
		}, nil)
		require.NoError(t, err)
	}

	instances, _ := s.Counts()
	assert.Equal(t, 1, instances)
}

// Last-observed-wins: merge order must not matter for the same two records
func TestMergeDiscoveryLastObservedWins(t *testing.T) {
	older := instanceAt("inst-a", time.Now().Add(-time.Hour))
	older.Kind = types.InstanceKindInfrastructure
	newer := instanceAt("inst-a", time.Now())
	newer.Kind = types.InstanceKindIntelligence

	orders := [][]*types.Instance{
		{older, newer},
		{newer, older},
	}
	for _, order := range orders {
		s := NewStore(0)
		for _, in := range order {
			err := s.MergeDiscovery(map[string]*types.Instance{in.ID: in}, nil)
			require.NoError(t, err)
		}
		snap := s.Snapshot()
		require.Contains(t, snap.Instances, "inst-a")
		assert.Equal(t, types.InstanceKindIntelligence, snap.Instances["inst-a"].Kind,
			"the newer observation must win regardless of merge order")
	}
}

func TestMergeDiscoveryRejectsEmptyIDAtomically(t *testing.T) {
	s := NewStore(0)

	err := s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
		"":       instanceAt("", time.Now()),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	// Nothing from the malformed merge may be applied
	instances, _ := s.Counts()
	assert.Equal(t, 0, instances)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore(0)
	in := instanceAt("inst-a", time.Now())
	in.Capabilities = map[string]types.CapabilityStatus{
		"compute": {Available: 0.9},
	}
	require.NoError(t, s.MergeDiscovery(map[string]*types.Instance{"inst-a": in}, nil))

	snap := s.Snapshot()
	snap.Instances["inst-a"].Capabilities["compute"] = types.CapabilityStatus{Available: 0.1}
	snap.Instances["inst-b"] = instanceAt("inst-b", time.Now())

	fresh := s.Snapshot()
	assert.Equal(t, 0.9, fresh.Instances["inst-a"].Capabilities["compute"].Available)
	assert.NotContains(t, fresh.Instances, "inst-b")
}

func TestMarkStaleEvictsSilentNodes(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.MergeDiscovery(map[string]*types.Instance{
		"inst-old": instanceAt("inst-old", time.Now()),
		"inst-new": instanceAt("inst-new", time.Now()),
	}, nil))

	// Age one node past the threshold by hand
	s.mu.Lock()
	s.topo.Instances["inst-old"].LastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	removed := s.MarkStale(s.NodeIDs())
	assert.Equal(t, []string{"inst-old"}, removed)
	assert.False(t, s.HasNode("inst-old"))
	assert.True(t, s.HasNode("inst-new"))

	// A second pass finds nothing
	assert.Empty(t, s.MarkStale(s.NodeIDs()))
}

func TestMarkStaleRemovesTrust(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
	}, nil))
	s.UpdateTrust(types.TrustAssessment{Levels: map[string]float64{"inst-a": 0.8}})

	s.mu.Lock()
	s.topo.Instances["inst-a"].LastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	s.MarkStale([]string{"inst-a"})
	snap := s.Snapshot()
	assert.NotContains(t, snap.Trust, "inst-a")
}

func TestUpdateNodeHealthBestEffort(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
	}, nil))

	s.UpdateNodeHealth("inst-a", types.HealthMetrics{Healthy: true, Score: 1})
	s.UpdateNodeHealth("inst-unknown", types.HealthMetrics{Healthy: false})

	snap := s.Snapshot()
	assert.True(t, snap.Instances["inst-a"].Health.Healthy)
	assert.Equal(t, 1.0, snap.Instances["inst-a"].Health.Score)
}

func TestLastUpdatedMonotone(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
	}, nil))
	first := s.Snapshot().LastUpdated

	s.UpdateTrust(types.TrustAssessment{Levels: map[string]float64{"inst-a": 0.5}})
	second := s.Snapshot().LastUpdated

	assert.False(t, second.Before(first))
}

func TestRestoreGuardsNilMaps(t *testing.T) {
	s := NewStore(0)
	s.Restore(types.EcosystemTopology{})

	// The store must stay usable after restoring a sparse snapshot
	err := s.MergeDiscovery(map[string]*types.Instance{
		"inst-a": instanceAt("inst-a", time.Now()),
	}, nil)
	require.NoError(t, err)
	assert.True(t, s.HasNode("inst-a"))
}
