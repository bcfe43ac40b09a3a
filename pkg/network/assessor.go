package network

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// ProbeFunc measures connection quality for one ordered node pair.
// Implementations must honor the context deadline.
type ProbeFunc func(ctx context.Context, src, dst string) (types.ConnectionQuality, error)

const (
	// DefaultProbeTimeout bounds a single pairwise probe
	DefaultProbeTimeout = 5 * time.Second

	// DegradedLatencyMs is recorded for unreachable pairs
	DegradedLatencyMs = 10000

	// relayReliabilityFloor is the minimum reliability for a relay hop
	relayReliabilityFloor = 0.5
)

// Assessor measures pairwise connection quality for a node set and derives
// a routing recommendation. Failed probes yield a degraded record instead of
// aborting the assessment, so planning can still exclude just that pair.
type Assessor struct {
	probe   ProbeFunc
	timeout time.Duration
}

// NewAssessor creates an assessor around the given probe. A zero timeout
// falls back to DefaultProbeTimeout.
func NewAssessor(probe ProbeFunc, timeout time.Duration) *Assessor {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Assessor{probe: probe, timeout: timeout}
}

// Assess probes every ordered pair in nodeIDs concurrently and returns the
// resulting connection matrix plus a routing recommendation.
func (a *Assessor) Assess(ctx context.Context, nodeIDs []string) types.NetworkTopology {
	logger := log.WithComponent("network")

	nt := types.NetworkTopology{
		Connections: make(map[string]map[string]types.ConnectionQuality, len(nodeIDs)),
	}
	for _, src := range nodeIDs {
		nt.Connections[src] = make(map[string]types.ConnectionQuality, len(nodeIDs)-1)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	degraded := 0

	for _, src := range nodeIDs {
		for _, dst := range nodeIDs {
			if src == dst {
				continue
			}
			wg.Add(1)
			go func(src, dst string) {
				defer wg.Done()

				probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
				defer cancel()

				q, err := a.probe(probeCtx, src, dst)
				if err != nil {
					q = degradedQuality()
				}
				q.MeasuredAt = time.Now()

				mu.Lock()
				nt.Connections[src][dst] = q
				if q.Degraded() {
					degraded++
				}
				mu.Unlock()
			}(src, dst)
		}
	}
	wg.Wait()

	nt.Recommendation = recommendRouting(nt.Connections, nodeIDs)

	if degraded > 0 {
		logger.Warn().
			Int("degraded_pairs", degraded).
			Int("nodes", len(nodeIDs)).
			Msg("network assessment found unreachable pairs")
	}
	return nt
}

// degradedQuality is the record written for a failed probe: max latency,
// zero reliability, total loss.
func degradedQuality() types.ConnectionQuality {
	return types.ConnectionQuality{
		LatencyMs:   DegradedLatencyMs,
		Reliability: 0,
		PacketLoss:  1,
	}
}

// recommendRouting picks, for each degraded ordered pair, the relay node
// whose two hops are both reliable and whose combined latency is lowest.
// Ties break by relay ID so the recommendation is deterministic.
func recommendRouting(conns map[string]map[string]types.ConnectionQuality, nodeIDs []string) *types.RoutingRecommendation {
	rec := &types.RoutingRecommendation{
		PreferredRelays: make(map[string]string),
		GeneratedAt:     time.Now(),
	}

	relays := append([]string(nil), nodeIDs...)
	sort.Strings(relays)

	for src, dsts := range conns {
		for dst, q := range dsts {
			if !q.Degraded() {
				continue
			}
			bestRelay := ""
			bestLatency := 0.0
			for _, relay := range relays {
				if relay == src || relay == dst {
					continue
				}
				first, ok := conns[src][relay]
				if !ok || first.Reliability < relayReliabilityFloor {
					continue
				}
				second, ok := conns[relay][dst]
				if !ok || second.Reliability < relayReliabilityFloor {
					continue
				}
				combined := first.LatencyMs + second.LatencyMs
				if bestRelay == "" || combined < bestLatency {
					bestRelay = relay
					bestLatency = combined
				}
			}
			if bestRelay != "" {
				rec.PreferredRelays[src+"->"+dst] = bestRelay
			}
		}
	}
	return rec
}

// IsFresh reports whether a connection record is recent enough to plan with.
// Stale entries must be re-measured before use.
func IsFresh(q types.ConnectionQuality, maxAge time.Duration, now time.Time) bool {
	return now.Sub(q.MeasuredAt) <= maxAge
}

// PerformanceScore summarizes a connection matrix as the mean reliability
// across all measured pairs. An empty matrix scores zero.
func PerformanceScore(nt types.NetworkTopology) float64 {
	total := 0.0
	count := 0
	for _, dsts := range nt.Connections {
		for _, q := range dsts {
			total += q.Reliability
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
