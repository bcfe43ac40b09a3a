package executor

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/session"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// DefaultOperationTimeout bounds an execution whose operation spec does not
// carry its own deadline
const DefaultOperationTimeout = 30 * time.Second

// ChannelProvider establishes secure channels to participant nodes. The
// external security coordinator implements this; the core performs no
// cryptography itself.
type ChannelProvider interface {
	EstablishSecureChannel(nodeIDs []string) (types.SecurityContext, error)
}

// DispatchFunc delivers the operation to one node with its assigned
// allocation. Implementations must honor the context deadline.
type DispatchFunc func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error

// Executor turns an allocation plan plus an operation description into
// concrete per-node work, drives it concurrently, and collects per-node
// outcomes. Per-node failures are collected, never fatal to the whole
// operation.
type Executor struct {
	security ChannelProvider
	dispatch DispatchFunc
	sessions *session.Manager
}

// NewExecutor creates an execution coordinator
func NewExecutor(security ChannelProvider, dispatch DispatchFunc, sessions *session.Manager) *Executor {
	return &Executor{
		security: security,
		dispatch: dispatch,
		sessions: sessions,
	}
}

// Execute runs the operation on every node in the plan. The session must be
// in Planning state with a feasible plan. Whatever happens - success,
// per-node failure, timeout, or cancellation - the session ends in a
// terminal status and the result itemizes every node's outcome.
func (e *Executor) Execute(ctx context.Context, sess types.CoordinationSession, plan types.AllocationPlan, op types.OperationSpec) types.ExecutionResult {
	logger := log.WithSessionID(sess.ID)
	started := time.Now()

	result := types.ExecutionResult{SessionID: sess.ID}

	// Deadline-guarded finalization: never leave the session InProgress
	defer e.sessions.Finalize(sess.ID, types.SessionStatusPartiallyCompleted)

	nodeIDs := make([]string, 0, len(plan.Allocations))
	for _, alloc := range plan.Allocations {
		nodeIDs = append(nodeIDs, alloc.NodeID)
	}

	secCtx, err := e.security.EstablishSecureChannel(nodeIDs)
	if err != nil {
		logger.Error().Err(err).Msg("failed to establish secure channel")
		if terr := e.sessions.Transition(sess.ID, types.SessionStatusFailed); terr != nil {
			logger.Error().Err(terr).Msg("failed to fail session")
		}
		result.Status = types.SessionStatusFailed
		result.Duration = time.Since(started)
		return result
	}

	if err := e.sessions.Attach(sess.ID, &plan, &secCtx); err != nil {
		logger.Error().Err(err).Msg("failed to attach plan to session")
	}
	if err := e.sessions.Transition(sess.ID, types.SessionStatusInProgress); err != nil {
		logger.Error().Err(err).Msg("failed to start session")
		result.Status = types.SessionStatusFailed
		result.Duration = time.Since(started)
		return result
	}

	timeout := op.Timeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan types.NodeResult, len(plan.Allocations))
	for _, alloc := range plan.Allocations {
		go e.dispatchNode(execCtx, alloc, op, results)
	}

	for range plan.Allocations {
		result.NodeResults = append(result.NodeResults, <-results)
	}
	sort.Slice(result.NodeResults, func(i, j int) bool {
		return result.NodeResults[i].NodeID < result.NodeResults[j].NodeID
	})

	succeeded := 0
	for _, nr := range result.NodeResults {
		if nr.Outcome == types.NodeOutcomeSucceeded {
			succeeded++
		}
	}

	switch {
	case succeeded == len(result.NodeResults):
		result.Status = types.SessionStatusCompleted
	case succeeded > 0:
		result.Status = types.SessionStatusPartiallyCompleted
	default:
		result.Status = types.SessionStatusFailed
	}
	result.Duration = time.Since(started)

	if err := e.sessions.Transition(sess.ID, result.Status); err != nil {
		logger.Error().Err(err).Msg("failed to finalize session")
	}

	logger.Info().
		Str("status", string(result.Status)).
		Int("nodes", len(result.NodeResults)).
		Int("succeeded", succeeded).
		Dur("duration", result.Duration).
		Msg("execution complete")

	return result
}

// dispatchNode runs the operation on one node and classifies the outcome.
// Cancellation before or during dispatch yields an abandoned result; a
// missed deadline is that node's failure.
func (e *Executor) dispatchNode(ctx context.Context, alloc types.ResourceAllocation, op types.OperationSpec, results chan<- types.NodeResult) {
	if err := ctx.Err(); err != nil {
		results <- types.NodeResult{
			NodeID:  alloc.NodeID,
			Outcome: types.NodeOutcomeAbandoned,
			Error:   "cancelled before dispatch",
		}
		return
	}

	start := time.Now()
	err := e.dispatch(ctx, alloc.NodeID, alloc, op)
	took := time.Since(start)

	nr := types.NodeResult{NodeID: alloc.NodeID, Duration: took}
	switch {
	case err == nil:
		nr.Outcome = types.NodeOutcomeSucceeded
	case errors.Is(err, context.Canceled):
		nr.Outcome = types.NodeOutcomeAbandoned
		nr.Error = "cancelled in flight"
	case errors.Is(err, context.DeadlineExceeded):
		nr.Outcome = types.NodeOutcomeFailed
		nr.Error = "node dispatch timed out"
	default:
		nr.Outcome = types.NodeOutcomeFailed
		nr.Error = err.Error()
	}
	results <- nr
}
