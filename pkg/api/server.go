package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ecomesh/ecomesh/pkg/coordinator"
	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/metrics"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// Server exposes the coordinator over HTTP: the read-only status surface
// polled by status CLIs and dashboards, Prometheus scraping, and submission
// endpoints for operations and synchronization requests.
type Server struct {
	coord *coordinator.Coordinator
	peers *peerState
	srv   *http.Server
}

// NewServer creates an API server over the given coordinator
func NewServer(coord *coordinator.Coordinator) *Server {
	return &Server{coord: coord, peers: newPeerState()}
}

// Start begins serving on addr. Blocks until the listener fails or Stop is
// called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/topology", s.handleTopology)
	mux.HandleFunc("/v1/sessions", s.handleSessions)
	mux.HandleFunc("/v1/operations", s.handleOperations)
	mux.HandleFunc("/v1/sync", s.handleSync)
	mux.HandleFunc("/v1/peer/dispatch", s.handlePeerDispatch)
	mux.HandleFunc("/v1/peer/replicate", s.handlePeerReplicate)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.WithComponent("api").Info().Str("addr", addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.WithComponent("api").Error().Err(err).Msg("API shutdown failed")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.GetEcosystemStatus())
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Topology())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	writeJSON(w, http.StatusOK, s.coord.Sessions(activeOnly))
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var op types.OperationSpec
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		http.Error(w, "invalid operation spec: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		result types.ExecutionResult
		err    error
	)
	switch op.Type {
	case types.SessionTypeInfrastructure:
		result, err = s.coord.RolloutInfrastructure(r.Context(), op)
	case types.SessionTypeConsciousnessCoor:
		result, err = s.coord.CoordinateConsciousness(r.Context(), op)
	case types.SessionTypeCrossDevice, "":
		result, err = s.coord.ExecuteCrossDeviceOperation(r.Context(), op)
	default:
		http.Error(w, "unsupported operation type: "+string(op.Type), http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid sync request: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.coord.SynchronizeState(r.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// Ready once the coordinator responds to a status call
	status := s.coord.GetEcosystemStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"instances": status.InstanceCount,
		"devices":   status.DeviceCount,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
