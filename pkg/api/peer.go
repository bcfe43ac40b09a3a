package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// DispatchRequest is the payload a coordinating daemon sends to a peer when
// asking it to carry its share of an operation.
type DispatchRequest struct {
	NodeID     string                   `json:"node_id"`
	Allocation types.ResourceAllocation `json:"allocation"`
	Operation  types.OperationSpec      `json:"operation"`
}

// ReplicateRequest pushes one state domain to a peer instance
type ReplicateRequest struct {
	InstanceID string             `json:"instance_id"`
	Domain     types.StateDomain  `json:"domain"`
	Strategy   types.SyncStrategy `json:"strategy"`
}

// ReplicateResponse confirms the content hash the peer now holds
type ReplicateResponse struct {
	Hash string `json:"hash"`
}

// peerState holds the state domains this daemon has accepted from peers
type peerState struct {
	mu      sync.Mutex
	domains map[string]string // domain name -> content hash
}

func newPeerState() *peerState {
	return &peerState{domains: make(map[string]string)}
}

func (p *peerState) accept(domain types.StateDomain) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domains[domain.Name] = domain.Hash
	return p.domains[domain.Name]
}

func (s *Server) handlePeerDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid dispatch request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Operation.ID == "" || req.NodeID == "" {
		http.Error(w, "operation id and node id are required", http.StatusBadRequest)
		return
	}

	log.WithComponent("api").Info().
		Str("operation_id", req.Operation.ID).
		Str("node_id", req.NodeID).
		Float64("cpu_cores", req.Allocation.CPUCores).
		Msg("accepted dispatched operation share")

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handlePeerReplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid replicate request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Domain.Name == "" || req.Domain.Hash == "" {
		http.Error(w, "domain name and hash are required", http.StatusBadRequest)
		return
	}

	hash := s.peers.accept(req.Domain)
	writeJSON(w, http.StatusOK, ReplicateResponse{Hash: hash})
}
