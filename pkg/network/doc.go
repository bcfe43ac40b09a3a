// Package network assesses pairwise connection quality (latency, bandwidth,
// reliability, packet loss) for a set of nodes and recommends relays for
// pairs whose direct connectivity is poor. Probes run concurrently under
// per-call timeouts; an unreachable pair yields a degraded record rather
// than failing the assessment.
package network
