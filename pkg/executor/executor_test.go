package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecomesh/ecomesh/pkg/session"
	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannels struct {
	fail bool
}

func (s stubChannels) EstablishSecureChannel(nodeIDs []string) (types.SecurityContext, error) {
	if s.fail {
		return types.SecurityContext{}, fmt.Errorf("channel establishment refused")
	}
	return types.SecurityContext{ChannelID: "chan-1", NodeIDs: nodeIDs}, nil
}

func planFor(nodeIDs ...string) types.AllocationPlan {
	plan := types.AllocationPlan{OperationID: "op-1", Feasible: true}
	for _, id := range nodeIDs {
		plan.Allocations = append(plan.Allocations, types.ResourceAllocation{NodeID: id, CPUCores: 1})
	}
	return plan
}

func newSession(t *testing.T, sessions *session.Manager, participants ...string) types.CoordinationSession {
	t.Helper()
	sess, err := sessions.Create("op-1", types.SessionTypeCrossDevice, participants)
	require.NoError(t, err)
	return sess
}

func TestExecuteAllSucceed(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)
	e := NewExecutor(stubChannels{}, func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		return nil
	}, sessions)

	sess := newSession(t, sessions, "a", "b", "c")
	result := e.Execute(context.Background(), sess, planFor("c", "a", "b"), types.OperationSpec{ID: "op-1"})

	assert.Equal(t, types.SessionStatusCompleted, result.Status)
	require.Len(t, result.NodeResults, 3)

	// Results come back sorted by node ID
	assert.Equal(t, "a", result.NodeResults[0].NodeID)
	assert.Equal(t, "b", result.NodeResults[1].NodeID)
	assert.Equal(t, "c", result.NodeResults[2].NodeID)
	for _, nr := range result.NodeResults {
		assert.Equal(t, types.NodeOutcomeSucceeded, nr.Outcome)
	}

	got, ok := sessions.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, types.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.Security)
	assert.Equal(t, "chan-1", got.Security.ChannelID)
}

func TestExecutePartialFailure(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)
	e := NewExecutor(stubChannels{}, func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		if nodeID == "b" {
			return fmt.Errorf("disk full")
		}
		return nil
	}, sessions)

	sess := newSession(t, sessions, "a", "b")
	result := e.Execute(context.Background(), sess, planFor("a", "b"), types.OperationSpec{ID: "op-1"})

	assert.Equal(t, types.SessionStatusPartiallyCompleted, result.Status)
	assert.Equal(t, types.NodeOutcomeSucceeded, result.NodeResults[0].Outcome)
	assert.Equal(t, types.NodeOutcomeFailed, result.NodeResults[1].Outcome)
	assert.Equal(t, "disk full", result.NodeResults[1].Error)
}

func TestExecuteAllFail(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)
	e := NewExecutor(stubChannels{}, func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		return fmt.Errorf("unreachable")
	}, sessions)

	sess := newSession(t, sessions, "a", "b")
	result := e.Execute(context.Background(), sess, planFor("a", "b"), types.OperationSpec{ID: "op-1"})

	assert.Equal(t, types.SessionStatusFailed, result.Status)

	got, _ := sessions.Get(sess.ID)
	assert.Equal(t, types.SessionStatusFailed, got.Status)
}

func TestExecuteChannelFailureFailsSession(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)
	dispatched := atomic.Bool{}
	e := NewExecutor(stubChannels{fail: true}, func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		dispatched.Store(true)
		return nil
	}, sessions)

	sess := newSession(t, sessions, "a")
	result := e.Execute(context.Background(), sess, planFor("a"), types.OperationSpec{ID: "op-1"})

	assert.Equal(t, types.SessionStatusFailed, result.Status)
	assert.False(t, dispatched.Load(), "nothing may dispatch without a secure channel")

	got, _ := sessions.Get(sess.ID)
	assert.Equal(t, types.SessionStatusFailed, got.Status)
}

// Cancellation mid-run: nodes already finished stay succeeded, the rest are
// abandoned, and the session still ends terminal.
func TestExecuteCancellationAbandonsRemaining(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	fastDone := make(chan struct{}, 2)

	e := NewExecutor(stubChannels{}, func(dctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		switch nodeID {
		case "a", "b":
			fastDone <- struct{}{}
			return nil
		default:
			// Slow nodes wait for cancellation
			<-dctx.Done()
			return dctx.Err()
		}
	}, sessions)

	go func() {
		<-fastDone
		<-fastDone
		cancel()
	}()

	sess := newSession(t, sessions, "a", "b", "c", "d")
	result := e.Execute(ctx, sess, planFor("a", "b", "c", "d"), types.OperationSpec{ID: "op-1"})

	assert.Equal(t, types.SessionStatusPartiallyCompleted, result.Status)
	require.Len(t, result.NodeResults, 4)

	outcomes := map[string]types.NodeOutcome{}
	for _, nr := range result.NodeResults {
		outcomes[nr.NodeID] = nr.Outcome
	}
	assert.Equal(t, types.NodeOutcomeSucceeded, outcomes["a"])
	assert.Equal(t, types.NodeOutcomeSucceeded, outcomes["b"])
	assert.Equal(t, types.NodeOutcomeAbandoned, outcomes["c"])
	assert.Equal(t, types.NodeOutcomeAbandoned, outcomes["d"])

	got, _ := sessions.Get(sess.ID)
	assert.True(t, got.Status.Terminal(), "the session must never stay in-progress")
}

// A node that misses the operation deadline is that node's failure
func TestExecuteTimeoutFailsSlowNode(t *testing.T) {
	sessions := session.NewManager(0, nil, nil)
	e := NewExecutor(stubChannels{}, func(ctx context.Context, nodeID string, alloc types.ResourceAllocation, op types.OperationSpec) error {
		if nodeID == "slow" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, sessions)

	sess := newSession(t, sessions, "fast", "slow")
	result := e.Execute(context.Background(), sess, planFor("fast", "slow"), types.OperationSpec{
		ID:      "op-1",
		Timeout: 50 * time.Millisecond,
	})

	assert.Equal(t, types.SessionStatusPartiallyCompleted, result.Status)

	outcomes := map[string]types.NodeResult{}
	for _, nr := range result.NodeResults {
		outcomes[nr.NodeID] = nr
	}
	assert.Equal(t, types.NodeOutcomeSucceeded, outcomes["fast"].Outcome)
	assert.Equal(t, types.NodeOutcomeFailed, outcomes["slow"].Outcome)
	assert.Equal(t, "node dispatch timed out", outcomes["slow"].Error)
}
