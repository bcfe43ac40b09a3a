// Package api serves the coordinator's HTTP surface: ecosystem status,
// topology and session listings, operation and sync submission, the peer
// endpoints daemons use to dispatch work and replicate state to each other,
// health endpoints, and Prometheus metrics.
package api
