package topology

import (
	"fmt"
	"sync"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
)

// Store is the single source of truth for known instances, devices, network
// connectivity, and trust relationships. All mutation serializes through one
// read-write lock; readers take a consistent deep-copy snapshot.
type Store struct {
	mu             sync.RWMutex
	topo           types.EcosystemTopology
	staleThreshold time.Duration
}

// DefaultStaleThreshold is how long a node may stay silent before eviction
const DefaultStaleThreshold = 5 * time.Minute

// NewStore creates an empty topology store. A zero staleThreshold falls back
// to DefaultStaleThreshold.
func NewStore(staleThreshold time.Duration) *Store {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &Store{
		topo: types.EcosystemTopology{
			Instances: make(map[string]*types.Instance),
			Devices:   make(map[string]*types.Device),
			Network: types.NetworkTopology{
				Connections: make(map[string]map[string]types.ConnectionQuality),
			},
			Trust: make(map[string]types.TrustStatus),
		},
		staleThreshold: staleThreshold,
	}
}

// Snapshot returns a consistent deep copy of the ecosystem topology
func (s *Store) Snapshot() types.EcosystemTopology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTopology(s.topo)
}

// MergeDiscovery upserts discovered instances and devices by ID. Records for
// an already-known ID only replace the stored entry when their observation
// timestamp is at least as recent (last-observed-wins). A merge containing a
// malformed (empty) ID is rejected whole; nothing is applied.
func (s *Store) MergeDiscovery(instances map[string]*types.Instance, devices map[string]*types.Device) error {
	for id := range instances {
		if id == "" {
			return fmt.Errorf("%w: empty instance ID in discovery merge", types.ErrValidation)
		}
	}
	for id := range devices {
		if id == "" {
			return fmt.Errorf("%w: empty device ID in discovery merge", types.ErrValidation)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, in := range instances {
		if existing, ok := s.topo.Instances[id]; ok && in.ObservedAt.Before(existing.ObservedAt) {
			continue
		}
		c := copyInstance(in)
		c.LastSeen = now
		s.topo.Instances[id] = c
	}
	for id, dev := range devices {
		if existing, ok := s.topo.Devices[id]; ok && dev.ObservedAt.Before(existing.ObservedAt) {
			continue
		}
		c := copyDevice(dev)
		c.LastSeen = now
		s.topo.Devices[id] = c
	}

	s.touch(now)
	return nil
}

// UpdateNetworkTopology replaces the stored pairwise connection matrix
func (s *Store) UpdateNetworkTopology(nt types.NetworkTopology) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topo.Network = copyNetwork(nt)
	s.touch(time.Now())
}

// UpdateTrust records the security coordinator's per-node trust levels
func (s *Store) UpdateTrust(assessment types.TrustAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, level := range assessment.Levels {
		s.topo.Trust[id] = types.TrustStatus{Level: level, Verified: true}
	}
	s.touch(time.Now())
}

// UpdateNodeHealth writes back post-operation health for a node. Unknown IDs
// are ignored; health write-back is best effort.
func (s *Store) UpdateNodeHealth(id string, health types.HealthMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in, ok := s.topo.Instances[id]; ok {
		in.Health = health
	}
	if dev, ok := s.topo.Devices[id]; ok {
		dev.Health = health
	}
	s.touch(time.Now())
}

// MarkStale evicts any of the given nodes that have been silent past the
// staleness threshold and returns the IDs actually removed.
func (s *Store) MarkStale(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed []string
	for _, id := range ids {
		if in, ok := s.topo.Instances[id]; ok && now.Sub(in.LastSeen) > s.staleThreshold {
			delete(s.topo.Instances, id)
			delete(s.topo.Trust, id)
			removed = append(removed, id)
			continue
		}
		if dev, ok := s.topo.Devices[id]; ok && now.Sub(dev.LastSeen) > s.staleThreshold {
			delete(s.topo.Devices, id)
			delete(s.topo.Trust, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		s.touch(now)
	}
	return removed
}

// NodeIDs returns the IDs of all known instances and devices
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.topo.Instances)+len(s.topo.Devices))
	for id := range s.topo.Instances {
		ids = append(ids, id)
	}
	for id := range s.topo.Devices {
		ids = append(ids, id)
	}
	return ids
}

// Counts returns the number of known instances and devices
func (s *Store) Counts() (instances, devices int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topo.Instances), len(s.topo.Devices)
}

// HasNode reports whether the ID names a known instance or device
func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.topo.Instances[id]; ok {
		return true
	}
	_, ok := s.topo.Devices[id]
	return ok
}

// Restore replaces the store contents with a previously persisted topology.
// Used once at startup before any component runs.
func (s *Store) Restore(topo types.EcosystemTopology) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := copyTopology(topo)
	if restored.Instances == nil {
		restored.Instances = make(map[string]*types.Instance)
	}
	if restored.Devices == nil {
		restored.Devices = make(map[string]*types.Device)
	}
	if restored.Trust == nil {
		restored.Trust = make(map[string]types.TrustStatus)
	}
	if restored.Network.Connections == nil {
		restored.Network.Connections = make(map[string]map[string]types.ConnectionQuality)
	}
	s.topo = restored
	s.touch(time.Now())
}

// touch advances last_updated, keeping it monotonically non-decreasing
func (s *Store) touch(now time.Time) {
	if now.After(s.topo.LastUpdated) {
		s.topo.LastUpdated = now
	}
}

func copyTopology(t types.EcosystemTopology) types.EcosystemTopology {
	out := types.EcosystemTopology{
		Instances:   make(map[string]*types.Instance, len(t.Instances)),
		Devices:     make(map[string]*types.Device, len(t.Devices)),
		Trust:       make(map[string]types.TrustStatus, len(t.Trust)),
		Network:     copyNetwork(t.Network),
		LastUpdated: t.LastUpdated,
	}
	for id, in := range t.Instances {
		out.Instances[id] = copyInstance(in)
	}
	for id, dev := range t.Devices {
		out.Devices[id] = copyDevice(dev)
	}
	for id, trust := range t.Trust {
		out.Trust[id] = trust
	}
	return out
}

func copyInstance(in *types.Instance) *types.Instance {
	c := *in
	c.Capabilities = make(map[string]types.CapabilityStatus, len(in.Capabilities))
	for name, cs := range in.Capabilities {
		c.Capabilities[name] = cs
	}
	return &c
}

func copyDevice(dev *types.Device) *types.Device {
	c := *dev
	c.Capabilities = make(map[string]types.CapabilityStatus, len(dev.Capabilities))
	for name, cs := range dev.Capabilities {
		c.Capabilities[name] = cs
	}
	c.Instances = append([]string(nil), dev.Instances...)
	return &c
}

func copyNetwork(nt types.NetworkTopology) types.NetworkTopology {
	out := types.NetworkTopology{
		Connections: make(map[string]map[string]types.ConnectionQuality, len(nt.Connections)),
	}
	for src, dsts := range nt.Connections {
		row := make(map[string]types.ConnectionQuality, len(dsts))
		for dst, q := range dsts {
			row[dst] = q
		}
		out.Connections[src] = row
	}
	if nt.Recommendation != nil {
		rec := types.RoutingRecommendation{
			PreferredRelays: make(map[string]string, len(nt.Recommendation.PreferredRelays)),
			GeneratedAt:     nt.Recommendation.GeneratedAt,
		}
		for pair, relay := range nt.Recommendation.PreferredRelays {
			rec.PreferredRelays[pair] = relay
		}
		out.Recommendation = &rec
	}
	return out
}
