package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecomesh/ecomesh/pkg/events"
	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/google/uuid"
)

// DefaultRetention is how long terminal sessions stay queryable before the
// pruning loop removes them
const DefaultRetention = 15 * time.Minute

// SummarySink receives the summary of every session that reaches a terminal
// status. The metrics aggregator implements this.
type SummarySink interface {
	ObserveSession(types.SessionSummary)
}

// NodeCheckFunc reports whether a node ID is currently known to the topology
type NodeCheckFunc func(id string) bool

// Manager creates, tracks, and terminates coordination sessions. It is the
// only mutation path for session state. Independent sessions never block
// each other beyond the map lock held for individual operations.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*types.CoordinationSession
	retention time.Duration
	sink      SummarySink
	nodeCheck NodeCheckFunc
	events    *events.Broker
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewManager creates a session manager. nodeCheck validates participants at
// session creation; sink receives terminal session summaries. A zero
// retention falls back to DefaultRetention.
func NewManager(retention time.Duration, nodeCheck NodeCheckFunc, sink SummarySink) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		sessions:  make(map[string]*types.CoordinationSession),
		retention: retention,
		sink:      sink,
		nodeCheck: nodeCheck,
		stopCh:    make(chan struct{}),
	}
}

// WithEvents wires a broker that receives session lifecycle events
func (m *Manager) WithEvents(b *events.Broker) {
	m.events = b
}

// Start begins the background pruning loop
func (m *Manager) Start() {
	go m.run()
}

// Stop stops the pruning loop
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.prune()
		case <-m.stopCh:
			return
		}
	}
}

// Create starts a new session in Planning state. Every participant must be
// known to the topology at creation time.
func (m *Manager) Create(operationID string, sessionType types.SessionType, participants []string) (types.CoordinationSession, error) {
	if operationID == "" {
		return types.CoordinationSession{}, fmt.Errorf("%w: operation ID is required", types.ErrValidation)
	}
	if len(participants) == 0 {
		return types.CoordinationSession{}, fmt.Errorf("%w: session has no participants", types.ErrValidation)
	}
	for _, id := range participants {
		if id == "" {
			return types.CoordinationSession{}, fmt.Errorf("%w: empty participant ID", types.ErrValidation)
		}
		if m.nodeCheck != nil && !m.nodeCheck(id) {
			return types.CoordinationSession{}, fmt.Errorf("%w: participant %s is not in the topology", types.ErrValidation, id)
		}
	}

	s := &types.CoordinationSession{
		ID:           uuid.New().String(),
		OperationID:  operationID,
		Type:         sessionType,
		Participants: append([]string(nil), participants...),
		Status:       types.SessionStatusPlanning,
		StartedAt:    time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.WithSessionID(s.ID).Info().
		Str("operation_id", operationID).
		Str("type", string(sessionType)).
		Int("participants", len(participants)).
		Msg("session created")

	return *s, nil
}

// validTransitions maps each status to the statuses it may move to
var validTransitions = map[types.SessionStatus][]types.SessionStatus{
	types.SessionStatusPlanning: {
		types.SessionStatusInProgress,
		types.SessionStatusFailed,
	},
	types.SessionStatusInProgress: {
		types.SessionStatusCompleted,
		types.SessionStatusPartiallyCompleted,
		types.SessionStatusFailed,
	},
}

// Transition moves a session to a new status. Invalid transitions (for
// example Completed back to InProgress) are rejected as fatal coordination
// errors; they indicate corrupted control flow, not bad user input.
func (m *Manager) Transition(sessionID string, newStatus types.SessionStatus) error {
	m.mu.Lock()

	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown session %s", types.ErrValidation, sessionID)
	}

	allowed := false
	for _, next := range validTransitions[s.Status] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		from := s.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: invalid session transition %s -> %s", types.ErrFatalCoordination, from, newStatus)
	}

	s.Status = newStatus
	var summary *types.SessionSummary
	if newStatus.Terminal() {
		s.CompletedAt = time.Now()
		summary = &types.SessionSummary{
			SessionID:    s.ID,
			Type:         s.Type,
			Status:       s.Status,
			Participants: len(s.Participants),
			Duration:     s.CompletedAt.Sub(s.StartedAt),
			CompletedAt:  s.CompletedAt,
		}
	}
	m.mu.Unlock()

	// Hand the summary over outside the lock so a slow sink cannot block
	// other sessions.
	if summary != nil && m.sink != nil {
		m.sink.ObserveSession(*summary)
	}
	if m.events != nil {
		m.events.Publish(&events.Event{
			Type:     events.EventSessionTransitioned,
			Message:  string(newStatus),
			Metadata: map[string]string{"session_id": sessionID},
		})
	}

	log.WithSessionID(sessionID).Info().
		Str("status", string(newStatus)).
		Msg("session transitioned")

	return nil
}

// Attach records the allocation plan and security context in force for a
// session. Only valid while the session is not terminal.
func (m *Manager) Attach(sessionID string, plan *types.AllocationPlan, sec *types.SecurityContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: unknown session %s", types.ErrValidation, sessionID)
	}
	if s.Status.Terminal() {
		return fmt.Errorf("%w: session %s is already terminal", types.ErrValidation, sessionID)
	}
	if plan != nil {
		s.Allocation = plan
	}
	if sec != nil {
		s.Security = sec
	}
	return nil
}

// Finalize forces a non-terminal session to the given terminal status. Used
// by deadline-guarded cleanup so a session can never stay InProgress after
// its operation ends. Finalizing an already-terminal session is a no-op.
func (m *Manager) Finalize(sessionID string, status types.SessionStatus) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	terminal := ok && s.Status.Terminal()
	m.mu.RUnlock()

	if !ok || terminal {
		return
	}
	if err := m.Transition(sessionID, status); err != nil {
		// Planning sessions cannot reach PartiallyCompleted directly
		if ferr := m.Transition(sessionID, types.SessionStatusFailed); ferr != nil {
			log.WithSessionID(sessionID).Error().Err(ferr).Msg("failed to finalize session")
		}
	}
}

// Get returns a copy of the session with the given ID
func (m *Manager) Get(sessionID string) (types.CoordinationSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return types.CoordinationSession{}, false
	}
	return *s, true
}

// List returns sessions sorted by start time, newest first. With activeOnly
// set, terminal sessions are excluded.
func (m *Manager) List(activeOnly bool) []types.CoordinationSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.CoordinationSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if activeOnly && s.Status.Terminal() {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// ActiveCount returns the number of non-terminal sessions
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if !s.Status.Terminal() {
			count++
		}
	}
	return count
}

// prune removes terminal sessions older than the retention window. Their
// summaries were handed to the sink at transition time, so nothing is lost.
func (m *Manager) prune() {
	now := time.Now()
	var pruned []string

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status.Terminal() && now.Sub(s.CompletedAt) > m.retention {
			delete(m.sessions, id)
			pruned = append(pruned, id)
		}
	}
	m.mu.Unlock()

	if m.events != nil {
		for _, id := range pruned {
			m.events.Publish(&events.Event{
				Type:     events.EventSessionPruned,
				Metadata: map[string]string{"session_id": id},
			})
		}
	}
}
