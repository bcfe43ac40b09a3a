/*
Package topology maintains the authoritative view of the ecosystem: every
known instance and device, the pairwise network connection matrix, and trust
relationships.

Store is the single writer for all of that state. Mutations go through narrow
locked accessors (MergeDiscovery, UpdateNetworkTopology, UpdateTrust,
MarkStale); readers call Snapshot for a consistent deep copy and never
observe partial updates. Discovery merges follow last-observed-wins: a record
for a known ID only replaces the stored entry when its observation timestamp
is at least as recent, which makes merge order irrelevant and repeated
discovery passes idempotent.

SnapshotStore persists the topology to BoltDB so a restarted coordinator
resumes from the last known ecosystem rather than rediscovering from scratch.
*/
package topology
