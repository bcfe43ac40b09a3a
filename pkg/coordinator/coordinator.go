package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/ecomesh/ecomesh/pkg/discovery"
	"github.com/ecomesh/ecomesh/pkg/events"
	"github.com/ecomesh/ecomesh/pkg/executor"
	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/metrics"
	"github.com/ecomesh/ecomesh/pkg/network"
	"github.com/ecomesh/ecomesh/pkg/planner"
	"github.com/ecomesh/ecomesh/pkg/session"
	"github.com/ecomesh/ecomesh/pkg/statesync"
	"github.com/ecomesh/ecomesh/pkg/topology"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// advisoryCompatibilityFloor is the consciousness-compatibility score below
// which a warning is logged. The signal is advisory; coordination proceeds
// either way.
const advisoryCompatibilityFloor = 0.7

// SecurityCoordinator is the external security boundary. The core calls it
// for secure channels and trust assessments and never performs
// cryptographic operations itself.
type SecurityCoordinator interface {
	EstablishSecureChannel(nodeIDs []string) (types.SecurityContext, error)
	AssessTrust(nodeIDs []string) types.TrustAssessment
}

// ConsciousnessAdvisor scores cross-instance compatibility for
// consciousness-coordination runs. Optional and purely advisory.
type ConsciousnessAdvisor interface {
	AssessCompatibility(op types.OperationSpec) float64
}

// Config holds coordinator timing and persistence settings
type Config struct {
	NodeID              string
	DataDir             string
	DiscoveryInterval   time.Duration
	MechanismTimeout    time.Duration
	StaleThreshold      time.Duration
	SnapshotInterval    time.Duration
	SessionRetention    time.Duration
	ProbeTimeout        time.Duration
	NetworkMaxStaleness time.Duration
}

// Options carries the pluggable boundary implementations
type Options struct {
	Security   SecurityCoordinator
	Advisor    ConsciousnessAdvisor
	Probe      network.ProbeFunc
	Dispatch   executor.DispatchFunc
	Replicate  statesync.ReplicateFunc
	Mechanisms map[types.DiscoveryMechanism]discovery.MechanismFunc
}

// Coordinator owns the coordination layer: it wires the topology store,
// discovery engine, planner, session manager, executor, and synchronization
// engine together and exposes the multi-node operation entry points.
// Everything is explicitly constructed and injected; there are no ambient
// globals.
type Coordinator struct {
	cfg Config

	store      *topology.Store
	snapshots  *topology.SnapshotStore
	discovery  *discovery.Engine
	assessor   *network.Assessor
	planner    *planner.Planner
	sessions   *session.Manager
	executor   *executor.Executor
	syncEngine *statesync.Engine
	aggregator *metrics.Aggregator
	broker     *events.Broker

	security SecurityCoordinator
	advisor  ConsciousnessAdvisor

	stopCh chan struct{}
}

// NewCoordinator constructs and wires the coordination layer. When a data
// directory is configured, the last persisted topology snapshot is restored
// before any component runs.
func NewCoordinator(cfg Config, opts Options) (*Coordinator, error) {
	if opts.Security == nil {
		return nil, fmt.Errorf("%w: a security coordinator is required", types.ErrValidation)
	}
	if opts.Dispatch == nil {
		return nil, fmt.Errorf("%w: a dispatch function is required", types.ErrValidation)
	}

	store := topology.NewStore(cfg.StaleThreshold)
	aggregator := metrics.NewAggregator()

	var snapshots *topology.SnapshotStore
	if cfg.DataDir != "" {
		var err error
		snapshots, err = topology.NewSnapshotStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		if topo, err := snapshots.Load(); err != nil {
			log.WithComponent("coordinator").Warn().Err(err).Msg("could not load topology snapshot")
		} else if topo != nil {
			store.Restore(*topo)
		}
	}

	broker := events.NewBroker()
	sessions := session.NewManager(cfg.SessionRetention, store.HasNode, aggregator)
	sessions.WithEvents(broker)

	engine := discovery.NewEngine(store, cfg.MechanismTimeout)
	for name, fn := range opts.Mechanisms {
		engine.Register(name, fn)
	}

	probe := opts.Probe
	if probe == nil {
		probe = func(ctx context.Context, src, dst string) (types.ConnectionQuality, error) {
			return types.ConnectionQuality{}, fmt.Errorf("no probe configured")
		}
	}

	c := &Coordinator{
		cfg:        cfg,
		store:      store,
		snapshots:  snapshots,
		discovery:  engine,
		assessor:   network.NewAssessor(probe, cfg.ProbeTimeout),
		planner:    planner.NewPlanner(),
		sessions:   sessions,
		executor:   executor.NewExecutor(opts.Security, opts.Dispatch, sessions),
		aggregator: aggregator,
		broker:     broker,
		security:   opts.Security,
		advisor:    opts.Advisor,
		stopCh:     make(chan struct{}),
	}

	c.syncEngine = statesync.NewEngine(opts.Replicate, c.instanceReachable, 0)
	return c, nil
}

// Start launches the background loops: periodic discovery, stale-node
// eviction, and topology snapshotting.
func (c *Coordinator) Start() {
	c.broker.Start()
	c.sessions.Start()

	if c.cfg.DiscoveryInterval > 0 {
		go c.discoveryLoop()
	}
	go c.evictionLoop()
	if c.snapshots != nil && c.cfg.SnapshotInterval > 0 {
		go c.snapshotLoop()
	}
}

// Stop shuts the coordinator down, persisting a final topology snapshot
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.sessions.Stop()
	c.broker.Stop()

	if c.snapshots != nil {
		if err := c.snapshots.Save(c.store.Snapshot()); err != nil {
			log.WithComponent("coordinator").Error().Err(err).Msg("failed to persist final snapshot")
		}
		if err := c.snapshots.Close(); err != nil {
			log.WithComponent("coordinator").Error().Err(err).Msg("failed to close snapshot store")
		}
	}
}

// Events returns the coordination event broker
func (c *Coordinator) Events() *events.Broker {
	return c.broker
}

// Topology returns a consistent snapshot of the ecosystem
func (c *Coordinator) Topology() types.EcosystemTopology {
	return c.store.Snapshot()
}

// Sessions lists coordination sessions, optionally only active ones
func (c *Coordinator) Sessions(activeOnly bool) []types.CoordinationSession {
	return c.sessions.List(activeOnly)
}

// DiscoverEcosystem runs one full discovery pass: mechanisms fan out and
// merge into the store, trust is re-assessed, and the pairwise network
// matrix is refreshed for everything now known.
func (c *Coordinator) DiscoverEcosystem(ctx context.Context) types.DiscoveryResult {
	before := c.store.Snapshot()
	result := c.discovery.Discover(ctx)
	c.aggregator.ObserveDiscovery(result)

	nodeIDs := c.store.NodeIDs()
	if len(nodeIDs) > 0 {
		c.store.UpdateTrust(c.security.AssessTrust(nodeIDs))
		c.store.UpdateNetworkTopology(c.assessor.Assess(ctx, nodeIDs))
	}

	// Announce nodes this pass saw for the first time
	snap := c.store.Snapshot()
	for id := range snap.Instances {
		if _, known := before.Instances[id]; !known {
			c.broker.Publish(&events.Event{
				Type:     events.EventInstanceDiscovered,
				Metadata: map[string]string{"node_id": id},
			})
		}
	}
	for id := range snap.Devices {
		if _, known := before.Devices[id]; !known {
			c.broker.Publish(&events.Event{
				Type:     events.EventDeviceDiscovered,
				Metadata: map[string]string{"node_id": id},
			})
		}
	}

	c.broker.Publish(&events.Event{
		Type:    events.EventDiscoveryCompleted,
		Message: fmt.Sprintf("discovered %d instances, %d devices", result.InstanceCount, result.DeviceCount),
	})
	return result
}

// ExecuteCrossDeviceOperation plans and executes an operation across the
// target nodes as a cross-device session.
func (c *Coordinator) ExecuteCrossDeviceOperation(ctx context.Context, op types.OperationSpec) (types.ExecutionResult, error) {
	return c.runOperation(ctx, op, types.SessionTypeCrossDevice)
}

// RolloutInfrastructure runs an infrastructure-management operation across
// the target nodes.
func (c *Coordinator) RolloutInfrastructure(ctx context.Context, op types.OperationSpec) (types.ExecutionResult, error) {
	return c.runOperation(ctx, op, types.SessionTypeInfrastructure)
}

// CoordinateConsciousness runs a consciousness-coordination operation. When
// an advisor is wired, a low compatibility score is logged but never blocks
// coordination.
func (c *Coordinator) CoordinateConsciousness(ctx context.Context, op types.OperationSpec) (types.ExecutionResult, error) {
	if c.advisor != nil {
		score := c.advisor.AssessCompatibility(op)
		if score < advisoryCompatibilityFloor {
			log.WithOperationID(op.ID).Warn().
				Float64("compatibility", score).
				Msg("low cross-instance compatibility, proceeding anyway")
		}
	}
	return c.runOperation(ctx, op, types.SessionTypeConsciousnessCoor)
}

// runOperation is the shared plan -> session -> execute pipeline. The
// session always ends terminal: infeasible plans fail it during Planning,
// execution finalizes it otherwise.
func (c *Coordinator) runOperation(ctx context.Context, op types.OperationSpec, sessionType types.SessionType) (types.ExecutionResult, error) {
	sess, err := c.sessions.Create(op.ID, sessionType, op.TargetNodes)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	c.broker.Publish(&events.Event{
		Type:     events.EventSessionCreated,
		Message:  string(sessionType),
		Metadata: map[string]string{"session_id": sess.ID, "operation_id": op.ID},
	})

	plan, err := c.planner.Plan(op, c.store.Snapshot())
	if err != nil {
		c.sessions.Finalize(sess.ID, types.SessionStatusFailed)
		return types.ExecutionResult{SessionID: sess.ID, Status: types.SessionStatusFailed}, err
	}
	if !plan.Feasible {
		// The infeasible plan stays attached to the failed session so
		// callers can inspect the named node and capability.
		if err := c.sessions.Attach(sess.ID, &plan, nil); err != nil {
			log.WithSessionID(sess.ID).Error().Err(err).Msg("failed to attach infeasible plan")
		}
		c.sessions.Finalize(sess.ID, types.SessionStatusFailed)
		return types.ExecutionResult{SessionID: sess.ID, Status: types.SessionStatusFailed}, nil
	}

	// Stale link measurements are refreshed before anything dispatches
	c.ensureFreshNetwork(ctx, op.TargetNodes)

	before := c.store.Snapshot()
	result := c.executor.Execute(ctx, sess, plan, op)

	// Write updated node health back into the topology
	for _, nr := range result.NodeResults {
		switch nr.Outcome {
		case types.NodeOutcomeSucceeded:
			c.store.UpdateNodeHealth(nr.NodeID, types.HealthMetrics{Healthy: true, Score: 1})
		case types.NodeOutcomeFailed:
			prev := 0
			if in, ok := before.Instances[nr.NodeID]; ok {
				prev = in.Health.ConsecutiveFailures
			} else if dev, ok := before.Devices[nr.NodeID]; ok {
				prev = dev.Health.ConsecutiveFailures
			}
			c.store.UpdateNodeHealth(nr.NodeID, types.HealthMetrics{
				Healthy:             false,
				Score:               0,
				ConsecutiveFailures: prev + 1,
			})
		}
	}

	return result, nil
}

// SynchronizeState replicates the requested state domains across the target
// instances under a state-synchronization session.
func (c *Coordinator) SynchronizeState(ctx context.Context, req types.SyncRequest) (types.SyncResult, error) {
	sess, err := c.sessions.Create(req.ID, types.SessionTypeStateSync, req.TargetInstances)
	if err != nil {
		return types.SyncResult{}, err
	}
	defer c.sessions.Finalize(sess.ID, types.SessionStatusFailed)

	if err := c.sessions.Transition(sess.ID, types.SessionStatusInProgress); err != nil {
		return types.SyncResult{}, err
	}

	result := c.syncEngine.Synchronize(ctx, req)
	result.SessionID = sess.ID
	c.aggregator.ObserveSync(result)

	if err := c.sessions.Transition(sess.ID, result.Status); err != nil {
		log.WithSessionID(sess.ID).Error().Err(err).Msg("failed to finalize sync session")
	}

	c.broker.Publish(&events.Event{
		Type:    events.EventSyncCompleted,
		Message: string(result.Status),
		Metadata: map[string]string{
			"session_id": sess.ID,
			"request_id": req.ID,
		},
	})
	return result, nil
}

// GetEcosystemStatus assembles the read-only surface other subsystems poll
func (c *Coordinator) GetEcosystemStatus() types.EcosystemStatus {
	snap := c.store.Snapshot()
	ms := c.aggregator.Snapshot()

	return types.EcosystemStatus{
		InstanceCount:      len(snap.Instances),
		DeviceCount:        len(snap.Devices),
		HealthScore:        healthScore(snap),
		CoherenceLevel:     ms.AvgCoherenceLevel,
		ResourceEfficiency: resourceEfficiency(snap),
		NetworkPerformance: network.PerformanceScore(snap.Network),
		ActiveSessions:     c.sessions.ActiveCount(),
		EventSubscribers:   c.broker.SubscriberCount(),
		Metrics:            ms,
		Timestamp:          time.Now(),
	}
}

// ensureFreshNetwork re-measures the connection matrix when any pair among
// the participants is missing or older than the staleness bound
func (c *Coordinator) ensureFreshNetwork(ctx context.Context, nodeIDs []string) {
	maxAge := c.cfg.NetworkMaxStaleness
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}

	snap := c.store.Snapshot()
	now := time.Now()
	for _, src := range nodeIDs {
		for _, dst := range nodeIDs {
			if src == dst {
				continue
			}
			q, ok := snap.Network.Connections[src][dst]
			if ok && network.IsFresh(q, maxAge, now) {
				continue
			}
			c.store.UpdateNetworkTopology(c.assessor.Assess(ctx, c.store.NodeIDs()))
			return
		}
	}
}

// instanceReachable is the synchronization engine's prerequisite check
func (c *Coordinator) instanceReachable(id string) bool {
	snap := c.store.Snapshot()
	in, ok := snap.Instances[id]
	return ok && in.Network.Reachable
}

// healthScore averages node health scores across the whole topology
func healthScore(snap types.EcosystemTopology) float64 {
	total := 0.0
	count := 0
	for _, in := range snap.Instances {
		total += in.Health.Score
		count++
	}
	for _, dev := range snap.Devices {
		total += dev.Health.Score
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// resourceEfficiency averages capability utilization across instances: how
// much of the capacity the ecosystem advertises is actually doing work.
func resourceEfficiency(snap types.EcosystemTopology) float64 {
	total := 0.0
	count := 0
	for _, in := range snap.Instances {
		for _, cs := range in.Capabilities {
			total += cs.Utilization
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (c *Coordinator) discoveryLoop() {
	ticker := time.NewTicker(c.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DiscoveryInterval)
			c.DiscoverEcosystem(ctx)
			cancel()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) evictionLoop() {
	interval := c.cfg.StaleThreshold / 2
	if interval <= 0 {
		interval = topology.DefaultStaleThreshold / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := c.store.MarkStale(c.store.NodeIDs())
			if len(removed) > 0 {
				c.aggregator.ObserveEviction(len(removed))
				for _, id := range removed {
					c.broker.Publish(&events.Event{
						Type:     events.EventNodeEvicted,
						Message:  "node silent past staleness threshold",
						Metadata: map[string]string{"node_id": id},
					})
				}
				log.WithComponent("coordinator").Info().
					Int("evicted", len(removed)).
					Msg("evicted stale nodes")
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) snapshotLoop() {
	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.snapshots.Save(c.store.Snapshot()); err != nil {
				log.WithComponent("coordinator").Error().Err(err).Msg("failed to persist topology snapshot")
				continue
			}
			c.broker.Publish(&events.Event{Type: events.EventTopologySnapshot})
		case <-c.stopCh:
			return
		}
	}
}
