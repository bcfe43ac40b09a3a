package statesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// DefaultPairTimeout bounds replication of one domain to one instance
const DefaultPairTimeout = 10 * time.Second

// ReplicateFunc ships one state domain to one instance and returns the
// state hash the instance reports after replication. Implementations must
// honor the context deadline.
type ReplicateFunc func(ctx context.Context, instanceID string, domain types.StateDomain, strategy types.SyncStrategy) (string, error)

// ReachableFunc reports whether a target instance is currently reachable
type ReachableFunc func(id string) bool

// Engine replicates named state domains across a target set of instances.
// Domains synchronize independently; one domain's failure never blocks
// another. The coherence level is the exact fraction of requested
// (domain, instance) pairs that confirmed a matching state hash.
type Engine struct {
	replicate   ReplicateFunc
	reachable   ReachableFunc
	pairTimeout time.Duration
}

// NewEngine creates a synchronization engine. A zero pairTimeout falls back
// to DefaultPairTimeout.
func NewEngine(replicate ReplicateFunc, reachable ReachableFunc, pairTimeout time.Duration) *Engine {
	if pairTimeout <= 0 {
		pairTimeout = DefaultPairTimeout
	}
	return &Engine{
		replicate:   replicate,
		reachable:   reachable,
		pairTimeout: pairTimeout,
	}
}

type domainOutcome struct {
	domain    string
	confirmed int
	failures  []types.DomainFailure
}

// Synchronize runs one synchronization request. Prerequisite validation
// runs first; if it fails the engine returns immediately with status Failed
// and zero coherence rather than attempting partial work.
func (e *Engine) Synchronize(ctx context.Context, req types.SyncRequest) types.SyncResult {
	logger := log.WithComponent("statesync")
	started := time.Now()

	result := types.SyncResult{RequestID: req.ID}

	if reason := e.checkPrerequisites(req); reason != "" {
		logger.Warn().Str("request_id", req.ID).Str("reason", reason).Msg("sync prerequisites failed")
		result.Status = types.SessionStatusFailed
		result.Duration = time.Since(started)
		return result
	}

	syncCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	outcomes := make(chan domainOutcome, len(req.Domains))
	for _, domain := range req.Domains {
		go e.syncDomain(syncCtx, domain, req, outcomes)
	}

	totalPairs := len(req.Domains) * len(req.TargetInstances)
	confirmed := 0
	for range req.Domains {
		out := <-outcomes
		confirmed += out.confirmed
		if len(out.failures) == 0 {
			result.SynchronizedDomains = append(result.SynchronizedDomains, out.domain)
		}
		result.FailedDomains = append(result.FailedDomains, out.failures...)
	}

	sort.Strings(result.SynchronizedDomains)
	sort.Slice(result.FailedDomains, func(i, j int) bool {
		if result.FailedDomains[i].Domain != result.FailedDomains[j].Domain {
			return result.FailedDomains[i].Domain < result.FailedDomains[j].Domain
		}
		return result.FailedDomains[i].InstanceID < result.FailedDomains[j].InstanceID
	})

	result.CoherenceLevel = float64(confirmed) / float64(totalPairs)
	switch {
	case confirmed == totalPairs:
		result.Status = types.SessionStatusCompleted
	case confirmed > 0:
		result.Status = types.SessionStatusPartiallyCompleted
	default:
		result.Status = types.SessionStatusFailed
	}
	result.Duration = time.Since(started)

	logger.Info().
		Str("request_id", req.ID).
		Str("status", string(result.Status)).
		Float64("coherence", result.CoherenceLevel).
		Int("failed_pairs", len(result.FailedDomains)).
		Dur("duration", result.Duration).
		Msg("synchronization complete")

	return result
}

// checkPrerequisites validates the request before any replication starts.
// Returns an empty string when everything checks out.
func (e *Engine) checkPrerequisites(req types.SyncRequest) string {
	if req.ID == "" {
		return "request ID is required"
	}
	if len(req.TargetInstances) == 0 {
		return "no target instances"
	}
	if len(req.Domains) == 0 {
		return "no state domains"
	}
	for _, d := range req.Domains {
		if d.Name == "" || d.Hash == "" {
			return fmt.Sprintf("malformed state domain %q", d.Name)
		}
	}
	if e.reachable != nil {
		for _, id := range req.TargetInstances {
			if !e.reachable(id) {
				return fmt.Sprintf("target instance %s is not reachable", id)
			}
		}
	}
	return ""
}

// syncDomain replicates one domain to every target instance and confirms
// the reported hashes. Each pair runs under its own timeout; a pair's
// failure is recorded, not propagated.
func (e *Engine) syncDomain(ctx context.Context, domain types.StateDomain, req types.SyncRequest, outcomes chan<- domainOutcome) {
	out := domainOutcome{domain: domain.Name}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, instanceID := range req.TargetInstances {
		wg.Add(1)
		go func(instanceID string) {
			defer wg.Done()

			pairCtx, cancel := context.WithTimeout(ctx, e.pairTimeout)
			defer cancel()

			hash, err := e.replicate(pairCtx, instanceID, domain, req.Strategy)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && errors.Is(err, context.DeadlineExceeded):
				out.failures = append(out.failures, types.DomainFailure{
					Domain:     domain.Name,
					InstanceID: instanceID,
					Reason:     "replication timed out",
				})
			case err != nil:
				out.failures = append(out.failures, types.DomainFailure{
					Domain:     domain.Name,
					InstanceID: instanceID,
					Reason:     err.Error(),
				})
			case hash != domain.Hash:
				out.failures = append(out.failures, types.DomainFailure{
					Domain:     domain.Name,
					InstanceID: instanceID,
					Reason:     "state hash mismatch after replication",
				})
			default:
				out.confirmed++
			}
		}(instanceID)
	}
	wg.Wait()

	outcomes <- out
}
