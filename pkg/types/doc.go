/*
Package types defines the core data structures used throughout ecomesh.

This package contains the fundamental types that represent the coordination
domain model: instances, devices, network topology, coordination sessions,
resource allocations, and synchronization requests. These types are used by
all other packages for state management, planning, and reporting.

# Core Types

Topology:
  - Instance: a software coordination participant (running node)
  - Device: a hardware participant coordinated through instances
  - EcosystemTopology: the aggregate of all known participants
  - NetworkTopology / ConnectionQuality: pairwise link quality

Sessions and execution:
  - CoordinationSession: the unit-of-work record for a multi-node operation
  - SessionStatus: planning, in-progress, and the three terminal states
  - OperationSpec / AllocationPlan: what to run and who runs it
  - ExecutionResult / NodeResult: per-node outcomes

Synchronization:
  - SyncRequest / SyncResult: state-domain replication across instances
  - StateDomain: one independently synchronizable chunk of state

Reporting:
  - DiscoveryResult: one discovery pass across all mechanisms
  - MetricsSnapshot: zero-initialized counters derived from real operations
  - EcosystemStatus: the read-only surface polled by status CLIs

All types are plain serializable structures. Enumerations are string-typed
constants so they read well in logs and JSON output.
*/
package types
