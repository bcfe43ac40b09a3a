/*
Package discovery finds coordination participants across the network and
commits them into the topology store.

The engine runs every registered mechanism (local-network scan, service
registry, peer-to-peer gossip, cloud-provider lookup) concurrently, each
under its own timeout. Mechanism failures are recorded in the DiscoveryResult
but never abort the pass; whatever the other mechanisms found is still
merged. Duplicate IDs reported by different mechanisms resolve by
last-observed-wins on the mechanism's own observation timestamp, so a
discovery pass is idempotent against an unchanged environment.

Mechanisms are plain functions (MechanismFunc), registered by name before the
first pass. Register is not safe for concurrent use with Discover; wire all
backends during startup.
*/
package discovery
