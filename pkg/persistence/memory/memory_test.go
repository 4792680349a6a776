package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

func testExecution(id string, status models.ExecutionStatus) *models.Execution {
	return &models.Execution{
		ID:        id,
		TenantID:  "tenant-1",
		FlowID:    "flow-1",
		ContactID: "contact-1",
		Status:    status,
		StartedAt: time.Now().UTC(),
	}
}

func TestCreateAndUpdateExecution(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	execution := testExecution("exec-1", models.ExecutionRunning)
	require.NoError(t, store.Executions().CreateExecution(ctx, execution))

	err := store.Executions().CreateExecution(ctx, execution)
	assert.ErrorIs(t, err, persistence.ErrExecutionAlreadyExists)

	execution.Status = models.ExecutionCompleted
	require.NoError(t, store.Executions().UpdateExecution(ctx, execution))

	loaded, err := store.Executions().ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, loaded.Status)

	err = store.Executions().UpdateExecution(ctx, testExecution("ghost", models.ExecutionRunning))
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestClaim_TransitionsToRunning(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	execution := testExecution("exec-1", models.ExecutionWaiting)
	resumeAt := time.Now().UTC().Add(-time.Minute)
	execution.NextExecutionAt = &resumeAt
	require.NoError(t, store.Executions().CreateExecution(ctx, execution))

	claimed, err := store.Executions().Claim(ctx, "exec-1", models.ExecutionWaiting, models.ExecutionWaitingMenu)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, claimed.Status)
	assert.Nil(t, claimed.NextExecutionAt)

	// Already running: nobody else can claim it.
	_, err = store.Executions().Claim(ctx, "exec-1", models.ExecutionWaiting, models.ExecutionWaitingMenu)
	assert.ErrorIs(t, err, persistence.ErrExecutionNotClaimable)
}

func TestClaim_WrongStatus(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	require.NoError(t, store.Executions().CreateExecution(ctx, testExecution("exec-1", models.ExecutionCompleted)))

	_, err := store.Executions().Claim(ctx, "exec-1", models.ExecutionWaiting)
	assert.ErrorIs(t, err, persistence.ErrExecutionNotClaimable)

	_, err = store.Executions().Claim(ctx, "ghost", models.ExecutionWaiting)
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestClaim_Contention(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	require.NoError(t, store.Executions().CreateExecution(ctx, testExecution("exec-1", models.ExecutionWaitingMenu)))

	const claimers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range claimers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := store.Executions().Claim(ctx, "exec-1", models.ExecutionWaitingMenu); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDueExecutions(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := testExecution("exec-due", models.ExecutionWaiting)
	due.NextExecutionAt = &past

	menuDue := testExecution("exec-menu", models.ExecutionWaitingMenu)
	menuDue.NextExecutionAt = &past

	notYet := testExecution("exec-later", models.ExecutionWaiting)
	notYet.NextExecutionAt = &future

	noTimer := testExecution("exec-no-timer", models.ExecutionWaitingMenu)

	for _, execution := range []*models.Execution{due, menuDue, notYet, noTimer} {
		require.NoError(t, store.Executions().CreateExecution(ctx, execution))
	}

	found, err := store.Executions().DueExecutions(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 2)

	ids := []string{found[0].ID, found[1].ID}
	assert.ElementsMatch(t, []string{"exec-due", "exec-menu"}, ids)
}

func TestLatestWaitingMenu(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	older := testExecution("exec-old", models.ExecutionWaitingMenu)
	older.StartedAt = time.Now().UTC().Add(-time.Hour)

	newer := testExecution("exec-new", models.ExecutionWaitingMenu)

	otherContact := testExecution("exec-other", models.ExecutionWaitingMenu)
	otherContact.ContactID = "contact-2"

	for _, execution := range []*models.Execution{older, newer, otherContact} {
		require.NoError(t, store.Executions().CreateExecution(ctx, execution))
	}

	found, err := store.Executions().LatestWaitingMenu(ctx, "tenant-1", "contact-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-new", found.ID)

	_, err = store.Executions().LatestWaitingMenu(ctx, "tenant-1", "contact-9")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestSaveFlowAndGraph(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	flow := &models.Flow{
		ID:          "flow-1",
		TenantID:    "tenant-1",
		Name:        "Boas-vindas",
		IsActive:    true,
		TriggerType: models.TriggerKeyword,
		TriggerConfig: models.TriggerConfig{
			Keywords: []string{"oi"},
		},
	}

	nodes := []*models.Node{
		{ID: "start-1", FlowID: "flow-1", Type: models.NodeTypeStart},
		{ID: "msg-1", FlowID: "flow-1", Type: models.NodeTypeMessage},
	}
	edges := []*models.Edge{
		{ID: "e1", FlowID: "flow-1", SourceNodeID: "start-1", TargetNodeID: "msg-1"},
	}

	require.NoError(t, store.Flows().SaveFlow(ctx, flow, nodes, edges))

	loaded, err := store.Flows().FlowByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Boas-vindas", loaded.Name)

	loadedNodes, loadedEdges, err := store.Flows().FlowGraph(ctx, "flow-1")
	require.NoError(t, err)
	assert.Len(t, loadedNodes, 2)
	assert.Len(t, loadedEdges, 1)

	active, err := store.Flows().ActiveFlowsByTrigger(ctx, "tenant-1", models.TriggerKeyword)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// Deactivated flows disappear from trigger matching.
	flow.IsActive = false
	require.NoError(t, store.Flows().SaveFlow(ctx, flow, nodes, edges))

	active, err = store.Flows().ActiveFlowsByTrigger(ctx, "tenant-1", models.TriggerKeyword)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, _, err = store.Flows().FlowGraph(ctx, "ghost")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestSaveFlowRejectsInvalidDefinition(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	flow := &models.Flow{
		ID:          "flow-1",
		TenantID:    "tenant-1",
		TriggerType: models.TriggerKeyword,
	}

	err := store.Flows().SaveFlow(ctx, flow, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow")

	_, err = store.Flows().FlowByID(ctx, "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}
