/*
Package statesync replicates named state domains across a target set of
instances with explicit partial-success semantics.

Each domain synchronizes independently and each (domain, instance) pairing
runs under its own timeout, so a single unreachable instance costs exactly
its own pairings and nothing more. After replication every instance's
reported state hash is checked against the domain's source hash; the
coherence level of the result is the exact fraction of requested pairings
that confirmed a match.

Prerequisites (targets reachable, domains well-formed) are validated before
any replication starts. A request that fails prerequisites returns
immediately with status Failed and zero coherence.
*/
package statesync
