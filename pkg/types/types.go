package types

import (
	"time"
)

// Instance represents a software coordination participant (a running node).
type Instance struct {
	ID           string
	Kind         InstanceKind
	Capabilities map[string]CapabilityStatus
	Resources    ResourceStatus
	Network      NetworkStatus
	Trust        TrustStatus
	Health       HealthMetrics
	ObservedAt   time.Time // Observation timestamp reported by the discovery mechanism
	LastSeen     time.Time
}

// InstanceKind defines the role an instance plays in the ecosystem
type InstanceKind string

const (
	InstanceKindFullOrchestration InstanceKind = "full-orchestration"
	InstanceKindInfrastructure    InstanceKind = "infrastructure"
	InstanceKindIntelligence      InstanceKind = "intelligence"
	InstanceKindHybrid            InstanceKind = "hybrid"
)

// Device represents a hardware participant coordinated through one or more
// instances. Devices are tracked independently because multiple instances
// may share one device.
type Device struct {
	ID           string
	Kind         DeviceKind
	Capabilities map[string]CapabilityStatus
	Resources    ResourceStatus
	Network      NetworkStatus
	Security     TrustStatus
	Health       HealthMetrics
	Available    bool
	Instances    []string // IDs of instances running on this device
	ObservedAt   time.Time
	LastSeen     time.Time
}

// DeviceKind classifies the hardware backing a device entry
type DeviceKind string

const (
	DeviceKindPersonalComputer DeviceKind = "personal-computer"
	DeviceKindMobile           DeviceKind = "mobile"
	DeviceKindServer           DeviceKind = "server"
	DeviceKindEdge             DeviceKind = "edge"
	DeviceKindHPCCluster       DeviceKind = "hpc-cluster"
	DeviceKindCloudInstance    DeviceKind = "cloud-instance"
	DeviceKindAIAccelerator    DeviceKind = "ai-accelerator"
	DeviceKindStorage          DeviceKind = "storage"
	DeviceKindNetwork          DeviceKind = "network"
)

// CapabilityStatus reports one named capability on a node
type CapabilityStatus struct {
	Available   float64 // Fraction of the capability currently available (0-1)
	Utilization float64 // Fraction currently in use (0-1)
	Quality     float64 // Quality score for the capability (0-1)
}

// ResourceStatus tracks resource availability as fractions of capacity
type ResourceStatus struct {
	CPUAvailable     float64
	MemoryAvailable  float64
	StorageAvailable float64
	NetworkAvailable float64
}

// NetworkStatus describes how a node can be reached
type NetworkStatus struct {
	Address   string
	Reachable bool
}

// TrustStatus captures the security assessment for a node
type TrustStatus struct {
	Level    float64 // 0 (untrusted) to 1 (fully trusted)
	Verified bool
}

// HealthMetrics tracks the observed health of a node
type HealthMetrics struct {
	Healthy             bool
	Score               float64 // 0-1
	ConsecutiveFailures int
}

// ConnectionQuality describes one ordered node pair's link
type ConnectionQuality struct {
	LatencyMs     float64
	BandwidthMbps float64
	Reliability   float64 // 0-1, fraction of probes answered
	PacketLoss    float64 // 0-1
	MeasuredAt    time.Time
}

// Degraded reports whether this record represents a failed probe
func (q ConnectionQuality) Degraded() bool {
	return q.Reliability == 0
}

// NetworkTopology holds pairwise connection quality for known nodes.
// Connections[src][dst] is the quality of the src->dst direction.
type NetworkTopology struct {
	Connections    map[string]map[string]ConnectionQuality
	Recommendation *RoutingRecommendation
}

// RoutingRecommendation suggests relays for node pairs whose direct
// connectivity is poor. Keys are "src->dst", values are relay node IDs.
type RoutingRecommendation struct {
	PreferredRelays map[string]string
	GeneratedAt     time.Time
}

// EcosystemTopology is the aggregate of everything the coordinator knows
// about the ecosystem. All mutation goes through the topology store.
type EcosystemTopology struct {
	Instances   map[string]*Instance
	Devices     map[string]*Device
	Network     NetworkTopology
	Trust       map[string]TrustStatus // keyed by node ID
	LastUpdated time.Time
}

// SessionType identifies the kind of multi-node operation a session serves
type SessionType string

const (
	SessionTypeCrossDevice       SessionType = "cross-device-operation"
	SessionTypeInfrastructure    SessionType = "infrastructure-management"
	SessionTypeStateSync         SessionType = "state-synchronization"
	SessionTypeConsciousnessCoor SessionType = "consciousness-coordination"
)

// SessionStatus represents the lifecycle state of a coordination session
type SessionStatus string

const (
	SessionStatusPlanning           SessionStatus = "planning"
	SessionStatusInProgress         SessionStatus = "in-progress"
	SessionStatusCompleted          SessionStatus = "completed"
	SessionStatusPartiallyCompleted SessionStatus = "partially-completed"
	SessionStatusFailed             SessionStatus = "failed"
)

// Terminal reports whether the status is an end state
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusPartiallyCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// CoordinationSession is the unit-of-work record for one multi-node operation
type CoordinationSession struct {
	ID           string
	OperationID  string
	Type         SessionType
	Participants []string
	Status       SessionStatus
	Allocation   *AllocationPlan
	Security     *SecurityContext
	StartedAt    time.Time
	CompletedAt  time.Time
}

// SessionSummary is the retained record of a terminal session
type SessionSummary struct {
	SessionID    string
	Type         SessionType
	Status       SessionStatus
	Participants int
	Duration     time.Duration
	CompletedAt  time.Time
}

// SecurityContext is the handle for a secure channel established by the
// external security coordinator. The core never touches key material.
type SecurityContext struct {
	ChannelID     string
	NodeIDs       []string
	EstablishedAt time.Time
}

// TrustAssessment is the external security coordinator's per-node verdict
type TrustAssessment struct {
	Levels     map[string]float64
	AssessedAt time.Time
}

// OperationSpec describes a multi-node operation to plan and execute
type OperationSpec struct {
	ID                 string
	Name               string
	Type               SessionType
	TargetNodes        []string
	RequiredCapability string
	MinAvailability    float64
	Requirements       ResourceRequirement
	Timeout            time.Duration
}

// ResourceRequirement is the total resource demand of one operation
type ResourceRequirement struct {
	CPUCores     float64
	MemoryBytes  int64
	StorageBytes int64
	NetworkMbps  float64
}

// ResourceAllocation is one node's assigned share for one session
type ResourceAllocation struct {
	NodeID       string
	CPUCores     float64
	MemoryBytes  int64
	StorageBytes int64
	NetworkMbps  float64
}

// InfeasibilityReason names the node and capability that failed validation
type InfeasibilityReason struct {
	NodeID     string
	Capability string
	Reported   float64
	Required   float64
}

// AllocationPlan is the planner's output for one operation. Plans are
// immutable once produced; replanning creates a new plan.
type AllocationPlan struct {
	OperationID string
	Feasible    bool
	Reason      *InfeasibilityReason
	Allocations []ResourceAllocation // sorted by node ID
}

// NodeOutcome classifies one node's result within an execution
type NodeOutcome string

const (
	NodeOutcomeSucceeded NodeOutcome = "succeeded"
	NodeOutcomeFailed    NodeOutcome = "failed"
	NodeOutcomeAbandoned NodeOutcome = "abandoned"
)

// NodeResult is the per-node outcome of a coordinated execution
type NodeResult struct {
	NodeID   string
	Outcome  NodeOutcome
	Error    string
	Duration time.Duration
}

// ExecutionResult aggregates per-node outcomes for one session
type ExecutionResult struct {
	SessionID   string
	Status      SessionStatus
	NodeResults []NodeResult
	Duration    time.Duration
}

// StateDomain is an independently synchronizable chunk of replicated state.
// Hash is the source-of-truth content hash replicas must converge to.
type StateDomain struct {
	Name string
	Hash string
}

// SyncStrategy selects how domain state is shipped to replicas
type SyncStrategy string

const (
	SyncStrategyFull        SyncStrategy = "full-replication"
	SyncStrategyIncremental SyncStrategy = "incremental"
)

// SyncPriority orders competing synchronization work
type SyncPriority string

const (
	SyncPriorityLow      SyncPriority = "low"
	SyncPriorityNormal   SyncPriority = "normal"
	SyncPriorityHigh     SyncPriority = "high"
	SyncPriorityCritical SyncPriority = "critical"
)

// SyncRequest names target instances and the state domains to replicate
type SyncRequest struct {
	ID              string
	TargetInstances []string
	Domains         []StateDomain
	Strategy        SyncStrategy
	Priority        SyncPriority
	Timeout         time.Duration
}

// DomainFailure records one (domain, instance) pairing that did not confirm
type DomainFailure struct {
	Domain     string
	InstanceID string
	Reason     string
}

// SyncResult reports the outcome of one synchronization request.
// CoherenceLevel is the exact fraction of requested (domain, instance)
// pairs that confirmed a matching state hash.
type SyncResult struct {
	RequestID           string
	SessionID           string
	Status              SessionStatus
	SynchronizedDomains []string
	FailedDomains       []DomainFailure
	CoherenceLevel      float64
	Duration            time.Duration
}

// DiscoveryMechanism identifies one discovery source
type DiscoveryMechanism string

const (
	MechanismLocalNetwork DiscoveryMechanism = "local-network"
	MechanismRegistry     DiscoveryMechanism = "registry"
	MechanismPeerToPeer   DiscoveryMechanism = "peer-to-peer"
	MechanismCloud        DiscoveryMechanism = "cloud"
)

// MechanismReport records one mechanism's contribution to a discovery pass
type MechanismReport struct {
	Contributed   bool
	InstanceCount int
	DeviceCount   int
	Error         string
	Duration      time.Duration
}

// DiscoveryResult aggregates one discovery pass across all mechanisms
type DiscoveryResult struct {
	InstanceCount int
	DeviceCount   int
	Mechanisms    map[DiscoveryMechanism]MechanismReport
	Duration      time.Duration
}

// MetricsSnapshot is a point-in-time copy of the aggregator's counters.
// All fields start at zero and are only ever derived from real operations.
type MetricsSnapshot struct {
	DiscoveryRuns        uint64
	InstancesDiscovered  uint64
	DevicesDiscovered    uint64
	NodesEvicted         uint64
	SessionsFinished     uint64
	SessionsCompleted    uint64
	SessionsPartial      uint64
	SessionsFailed       uint64
	SyncRequests         uint64
	DomainsSynchronized  uint64
	DomainsFailed        uint64
	AvgDiscoveryDuration time.Duration
	AvgSessionDuration   time.Duration
	AvgCoherenceLevel    float64
}

// EcosystemStatus is the read-only surface polled by status CLIs and
// dashboards.
type EcosystemStatus struct {
	InstanceCount      int
	DeviceCount        int
	HealthScore        float64
	CoherenceLevel     float64
	ResourceEfficiency float64
	NetworkPerformance float64
	ActiveSessions     int
	EventSubscribers   int
	Metrics            MetricsSnapshot
	Timestamp          time.Time
}
