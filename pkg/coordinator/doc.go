/*
Package coordinator wires the coordination layer together and exposes the
multi-node operation entry points.

The coordinator owns the topology store, discovery engine, network assessor,
resource planner, session manager, execution coordinator, synchronization
engine, and metrics aggregator. All dependencies are injected at
construction; the coordinator's lifecycle is created at service start and
torn down at shutdown, with no ambient globals.

Control flow for an operation:

	DiscoverEcosystem     discovery -> topology merge -> trust + network assess
	ExecuteCrossDevice    session -> plan -> secure channel -> per-node dispatch
	RolloutInfrastructure same pipeline, infrastructure session type
	SynchronizeState      session -> per-domain replication -> coherence
	CoordinateConsciousness advisory compatibility check, then the pipeline

Security and consciousness scoring stay behind the SecurityCoordinator and
ConsciousnessAdvisor interfaces; the core never performs cryptography and
never computes compatibility scores itself.

Background loops handle periodic discovery, stale-node eviction, and
topology snapshot persistence.
*/
package coordinator
