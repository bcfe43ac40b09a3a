package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecomesh/ecomesh/pkg/api"
	"github.com/ecomesh/ecomesh/pkg/coordinator"
	"github.com/ecomesh/ecomesh/pkg/discovery"
	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/google/uuid"
)

// peerClient talks to other ecomesh daemons over their HTTP peer endpoints.
// Node addresses come from the coordinator's topology, so the client is
// bound after the coordinator is constructed.
type peerClient struct {
	http   *http.Client
	lookup func(nodeID string) (string, bool)
}

func newPeerClient() *peerClient {
	return &peerClient{
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// bind wires address resolution once the coordinator exists
func (p *peerClient) bind(coord *coordinator.Coordinator) {
	p.lookup = func(nodeID string) (string, bool) {
		snap := coord.Topology()
		if in, ok := snap.Instances[nodeID]; ok && in.Network.Address != "" {
			return in.Network.Address, true
		}
		if dev, ok := snap.Devices[nodeID]; ok && dev.Network.Address != "" {
			return dev.Network.Address, true
		}
		return "", false
	}
}

// Dispatch hands one node its share of an operation
func (p *peerClient) Dispatch(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
	addr, ok := p.resolve(nodeID)
	if !ok {
		return fmt.Errorf("no address known for node %s", nodeID)
	}

	body, err := json.Marshal(api.DispatchRequest{
		NodeID:     nodeID,
		Allocation: alloc,
		Operation:  op,
	})
	if err != nil {
		return err
	}

	resp, err := p.post(ctx, "http://"+addr+"/v1/peer/dispatch", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer %s rejected dispatch: %s", nodeID, resp.Status)
	}
	return nil
}

// Replicate pushes one state domain to a peer instance and returns the
// content hash the peer confirms holding.
func (p *peerClient) Replicate(ctx context.Context, instanceID string, domain types.StateDomain, strategy types.SyncStrategy) (string, error) {
	addr, ok := p.resolve(instanceID)
	if !ok {
		return "", fmt.Errorf("no address known for instance %s", instanceID)
	}

	body, err := json.Marshal(api.ReplicateRequest{
		InstanceID: instanceID,
		Domain:     domain,
		Strategy:   strategy,
	})
	if err != nil {
		return "", err
	}

	resp, err := p.post(ctx, "http://"+addr+"/v1/peer/replicate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("peer %s rejected replication: %s", instanceID, resp.Status)
	}
	var confirmed api.ReplicateResponse
	if err := json.NewDecoder(resp.Body).Decode(&confirmed); err != nil {
		return "", err
	}
	return confirmed.Hash, nil
}

// Probe measures connectivity to dst by timing its health endpoint. The
// measurement is taken from this daemon's vantage point regardless of src.
func (p *peerClient) Probe(ctx context.Context, src, dst string) (types.ConnectionQuality, error) {
	addr, ok := p.resolve(dst)
	if !ok {
		return types.ConnectionQuality{}, fmt.Errorf("no address known for node %s", dst)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return types.ConnectionQuality{}, err
	}

	started := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return types.ConnectionQuality{}, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ConnectionQuality{}, fmt.Errorf("node %s unhealthy: %s", dst, resp.Status)
	}

	return types.ConnectionQuality{
		LatencyMs:   float64(time.Since(started).Microseconds()) / 1000,
		Reliability: 1,
		MeasuredAt:  time.Now(),
	}, nil
}

func (p *peerClient) resolve(nodeID string) (string, bool) {
	if p.lookup == nil {
		return "", false
	}
	return p.lookup(nodeID)
}

func (p *peerClient) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.http.Do(req)
}

// selfAnnouncement is the local-network discovery mechanism: every pass
// contributes this daemon's own instance record so peers polling the shared
// registry always see a fresh observation.
func selfAnnouncement(nodeID, apiAddr string) discovery.MechanismFunc {
	return func(ctx context.Context) (discovery.Finding, error) {
		return discovery.Finding{
			Instances: map[string]*types.Instance{
				nodeID: {
					ID:   nodeID,
					Kind: types.InstanceKindFullOrchestration,
					Network: types.NetworkStatus{
						Address:   apiAddr,
						Reachable: true,
					},
					Health:     types.HealthMetrics{Healthy: true, Score: 1},
					ObservedAt: time.Now(),
				},
			},
		}, nil
	}
}

// loopbackSecurity is the development security coordinator: channels are
// plain identifiers and every node gets a neutral, unverified trust level.
// Production deployments wire a real security coordinator here.
type loopbackSecurity struct{}

func (loopbackSecurity) EstablishSecureChannel(nodeIDs []string) (types.SecurityContext, error) {
	return types.SecurityContext{
		ChannelID:     uuid.New().String(),
		NodeIDs:       nodeIDs,
		EstablishedAt: time.Now(),
	}, nil
}

func (loopbackSecurity) AssessTrust(nodeIDs []string) types.TrustAssessment {
	levels := make(map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		levels[id] = 0.5
	}
	return types.TrustAssessment{Levels: levels, AssessedAt: time.Now()}
}
