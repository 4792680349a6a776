package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/mocks"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence/memory"
)

// harness wires the engine components against the in-memory store and mocked
// adapters, with pacing disabled.
type harness struct {
	store       *memory.Persistence
	contacts    *mocks.MockContactStore
	messages    *mocks.MockMessageAdapter
	notifier    *mocks.MockNotifier
	interpreter *Interpreter
	dispatcher  *Dispatcher
	router      *MenuRouter
	sweeper     *Sweeper
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewPersistence()
	contacts := &mocks.MockContactStore{}
	messages := &mocks.MockMessageAdapter{}
	notifier := &mocks.MockNotifier{}
	logger := testLogger()

	interpreter := NewInterpreter(store, contacts, messages, notifier, nil, logger)
	interpreter.Pacing = 0

	return &harness{
		store:       store,
		contacts:    contacts,
		messages:    messages,
		notifier:    notifier,
		interpreter: interpreter,
		dispatcher:  NewDispatcher(store, contacts, interpreter, nil, logger),
		router:      NewMenuRouter(store, contacts, interpreter, logger),
		sweeper:     NewSweeper(store, contacts, interpreter, logger),
	}
}

func testContact() *models.Contact {
	return &models.Contact{
		ID:         "contact-1",
		TenantID:   "tenant-1",
		Name:       "Maria Silva",
		Phone:      "+5511999990000",
		Email:      "maria@example.com",
		Tags:       []string{"vip"},
		TotalSpent: 149.9,
	}
}

func rawConfig(t *testing.T, config any) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(config)
	require.NoError(t, err)

	return raw
}

func keywordFlow(id string, keywords []string, mode models.MatchMode) *models.Flow {
	return &models.Flow{
		ID:          id,
		TenantID:    "tenant-1",
		Name:        "Fluxo " + id,
		IsActive:    true,
		TriggerType: models.TriggerKeyword,
		TriggerConfig: models.TriggerConfig{
			Keywords:  keywords,
			MatchMode: mode,
		},
	}
}

// saveLinearFlow persists a flow whose nodes are chained with unlabeled edges
// in the order given.
func saveLinearFlow(t *testing.T, h *harness, flow *models.Flow, nodes ...*models.Node) {
	t.Helper()

	edges := make([]*models.Edge, 0, len(nodes)-1)

	for i := 0; i < len(nodes)-1; i++ {
		edges = append(edges, &models.Edge{
			ID:           "edge-" + nodes[i].ID + "-" + nodes[i+1].ID,
			FlowID:       flow.ID,
			SourceNodeID: nodes[i].ID,
			TargetNodeID: nodes[i+1].ID,
		})
	}

	require.NoError(t, h.store.Flows().SaveFlow(context.Background(), flow, nodes, edges))
}

func startNode(flowID string) *models.Node {
	return &models.Node{ID: "start-" + flowID, FlowID: flowID, Type: models.NodeTypeStart}
}

func messageNode(t *testing.T, flowID, id, content string) *models.Node {
	t.Helper()

	return &models.Node{
		ID:     id,
		FlowID: flowID,
		Type:   models.NodeTypeMessage,
		Config: rawConfig(t, models.MessageConfig{Content: content}),
	}
}

func loadExecution(t *testing.T, h *harness, id string) *models.Execution {
	t.Helper()

	execution, err := h.store.Executions().ExecutionByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

// singleExecution returns the only execution the dispatcher created for a
// flow, failing the test when there is none.
func singleExecution(t *testing.T, h *harness, flowID string) *models.Execution {
	t.Helper()

	executions := allExecutions(t, h, flowID)
	require.Len(t, executions, 1)

	return executions[0]
}

func allExecutions(t *testing.T, h *harness, flowID string) []*models.Execution {
	t.Helper()

	executions, err := h.store.Executions().ExecutionsByFlow(context.Background(), flowID)
	require.NoError(t, err)

	return executions
}
