package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

func TestInterpreter_EndToEndKeywordScenario(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.messages.On("SendText", mock.Anything, "+5511999990000", "Olá Maria, tudo bem?").Return("msg-1", nil)
	h.messages.On("SendText", mock.Anything, "+5511999990000", "Como posso ajudar?").Return("msg-2", nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	saveLinearFlow(t, h, flow,
		startNode("flow-1"),
		messageNode(t, "flow-1", "msg-1", "Olá {{primeiro_nome}}, tudo bem?"),
		messageNode(t, "flow-1", "msg-2", "Como posso ajudar?"),
	)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	require.NotNil(t, execution.CompletedAt)

	h.messages.AssertNumberOfCalls(t, "SendText", 2)

	// Log records start, both node executions and the completion.
	events := make([]string, 0, len(execution.Log))
	for _, entry := range execution.Log {
		events = append(events, entry.Event)
	}

	assert.Equal(t, []string{
		models.LogEventStarted,
		models.LogEventNode,
		models.LogEventNode,
		models.LogEventCompleted,
	}, events)
	assert.Equal(t, "flow completed successfully", execution.Log[len(execution.Log)-1].Detail)
}

func TestInterpreter_DelaySuspension(t *testing.T) {
	h := newHarness(t)
	expectContact(h)
	expectAnySend(h)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	delayNode := &models.Node{
		ID:     "delay-1",
		FlowID: "flow-1",
		Type:   models.NodeTypeDelay,
		Config: rawConfig(t, models.DelayConfig{DelayMinutes: 30}),
	}
	saveLinearFlow(t, h, flow,
		startNode("flow-1"),
		messageNode(t, "flow-1", "msg-1", "Já volto"),
		delayNode,
		messageNode(t, "flow-1", "msg-2", "Voltei"),
	)

	before := time.Now().UTC()

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionWaiting, execution.Status)

	// The continuation points past the delay node.
	assert.Equal(t, "msg-2", execution.CurrentNodeID)

	require.NotNil(t, execution.NextExecutionAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *execution.NextExecutionAt, 5*time.Second)

	// Only the pre-delay message went out.
	h.messages.AssertNumberOfCalls(t, "SendText", 1)
}

func TestInterpreter_DelayAsLastNodeCompletes(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	delayNode := &models.Node{
		ID:     "delay-1",
		FlowID: "flow-1",
		Type:   models.NodeTypeDelay,
		Config: rawConfig(t, models.DelayConfig{DelayMinutes: 10}),
	}
	saveLinearFlow(t, h, flow, startNode("flow-1"), delayNode)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Nil(t, execution.NextExecutionAt)
}

func TestInterpreter_ConditionBranching(t *testing.T) {
	tests := []struct {
		name     string
		config   models.ConditionConfig
		expected string
	}{
		{
			"field condition true takes yes",
			models.ConditionConfig{Field: "total_spent", Operator: "greater_than", Value: "100"},
			"Cliente VIP",
		},
		{
			"field condition false takes no",
			models.ConditionConfig{Field: "total_spent", Operator: "greater_than", Value: "1000"},
			"Cliente regular",
		},
		{
			"expression condition",
			models.ConditionConfig{Expression: `"vip" in contact.tags`},
			"Cliente VIP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			expectContact(h)

			h.messages.On("SendText", mock.Anything, mock.Anything, tt.expected).Return("msg-id", nil)

			flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
			nodes := []*models.Node{
				startNode("flow-1"),
				{
					ID:     "cond-1",
					FlowID: "flow-1",
					Type:   models.NodeTypeCondition,
					Config: rawConfig(t, tt.config),
				},
				messageNode(t, "flow-1", "msg-yes", "Cliente VIP"),
				messageNode(t, "flow-1", "msg-no", "Cliente regular"),
			}
			edges := []*models.Edge{
				{ID: "e0", FlowID: "flow-1", SourceNodeID: "start-flow-1", TargetNodeID: "cond-1"},
				{ID: "e1", FlowID: "flow-1", SourceNodeID: "cond-1", TargetNodeID: "msg-yes", SourceHandle: models.HandleYes},
				{ID: "e2", FlowID: "flow-1", SourceNodeID: "cond-1", TargetNodeID: "msg-no", SourceHandle: models.HandleNo},
			}
			require.NoError(t, h.store.Flows().SaveFlow(context.Background(), flow, nodes, edges))

			started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
			require.NoError(t, err)
			require.Equal(t, 1, started)

			execution := singleExecution(t, h, "flow-1")
			assert.Equal(t, models.ExecutionCompleted, execution.Status)

			h.messages.AssertCalled(t, "SendText", mock.Anything, "+5511999990000", tt.expected)
			h.messages.AssertNumberOfCalls(t, "SendText", 1)
		})
	}
}

func TestInterpreter_ActionNodes(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.contacts.On("AddTag", mock.Anything, "tenant-1", "contact-1", "interessado").Return(nil)
	h.contacts.On("SetPipelineStage", mock.Anything, "tenant-1", "contact-1", "stage-42").Return(nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	saveLinearFlow(t, h, flow,
		startNode("flow-1"),
		&models.Node{
			ID: "act-1", FlowID: "flow-1", Type: models.NodeTypeAction,
			Config: rawConfig(t, models.ActionConfig{Action: models.ActionAddTag, Tag: "interessado"}),
		},
		&models.Node{
			ID: "act-2", FlowID: "flow-1", Type: models.NodeTypeAction,
			Config: rawConfig(t, models.ActionConfig{Action: models.ActionChangePipelineStage, StageID: "stage-42"}),
		},
	)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionCompleted, execution.Status)

	h.contacts.AssertCalled(t, "AddTag", mock.Anything, "tenant-1", "contact-1", "interessado")
	h.contacts.AssertCalled(t, "SetPipelineStage", mock.Anything, "tenant-1", "contact-1", "stage-42")
}

func TestInterpreter_NotifyTeamFallsBackToAllMembers(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.contacts.On("TeamMemberIDs", mock.Anything, "tenant-1").Return([]string{"user-1", "user-2"}, nil)
	h.notifier.On("Notify", mock.Anything, []string{"user-1", "user-2"}, mock.Anything, "Maria Silva respondeu", mock.Anything).Return(nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	saveLinearFlow(t, h, flow,
		startNode("flow-1"),
		&models.Node{
			ID: "act-1", FlowID: "flow-1", Type: models.NodeTypeAction,
			Config: rawConfig(t, models.ActionConfig{Action: models.ActionNotifyTeam, Message: "{{nome}} respondeu"}),
		},
	)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	h.notifier.AssertExpectations(t)
}

func TestInterpreter_NodeFailureFailsOnlyThisExecution(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.messages.On("SendText", mock.Anything, mock.Anything, mock.Anything).
		Return("", &AdapterError{Kind: ChannelUnavailable, Message: "session disconnected"})

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	saveLinearFlow(t, h, flow,
		startNode("flow-1"),
		messageNode(t, "flow-1", "msg-1", "Olá!"),
		messageNode(t, "flow-1", "msg-2", "Nunca enviado"),
	)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "session disconnected")
	assert.Equal(t, "msg-1", execution.CurrentNodeID)

	// Traversal stopped at the failing node.
	h.messages.AssertNumberOfCalls(t, "SendText", 1)
}

func TestInterpreter_StepLimitGuardsCycles(t *testing.T) {
	h := newHarness(t)
	expectContact(h)
	expectAnySend(h)

	h.interpreter.MaxSteps = 10

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	nodes := []*models.Node{
		startNode("flow-1"),
		messageNode(t, "flow-1", "msg-a", "A"),
		messageNode(t, "flow-1", "msg-b", "B"),
	}
	edges := []*models.Edge{
		{ID: "e0", FlowID: "flow-1", SourceNodeID: "start-flow-1", TargetNodeID: "msg-a"},
		{ID: "e1", FlowID: "flow-1", SourceNodeID: "msg-a", TargetNodeID: "msg-b"},
		{ID: "e2", FlowID: "flow-1", SourceNodeID: "msg-b", TargetNodeID: "msg-a"},
	}
	require.NoError(t, h.store.Flows().SaveFlow(context.Background(), flow, nodes, edges))

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "step limit exceeded")
}

func TestInterpreter_MenuSendsPromptAndSuspends(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	expected := "Maria, escolha uma opção:\n1. Sim\n2. Não"
	h.messages.On("SendText", mock.Anything, "+5511999990000", expected).Return("msg-id", nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	menuNode := &models.Node{
		ID:     "menu-1",
		FlowID: "flow-1",
		Type:   models.NodeTypeMenu,
		Config: rawConfig(t, models.MenuConfig{
			Message:        "{{primeiro_nome}}, escolha uma opção:",
			Options:        []string{"Sim", "Não"},
			TimeoutMinutes: 60,
		}),
	}
	saveLinearFlow(t, h, flow, startNode("flow-1"), menuNode)

	before := time.Now().UTC()

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionWaitingMenu, execution.Status)
	assert.Equal(t, "menu-1", execution.CurrentNodeID)
	require.NotNil(t, execution.NextExecutionAt)
	assert.WithinDuration(t, before.Add(time.Hour), *execution.NextExecutionAt, 5*time.Second)

	h.messages.AssertExpectations(t)
}

func TestInterpreter_MenuWithoutTimeoutHasNoTimer(t *testing.T) {
	h := newHarness(t)
	expectContact(h)
	expectAnySend(h)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	menuNode := &models.Node{
		ID:     "menu-1",
		FlowID: "flow-1",
		Type:   models.NodeTypeMenu,
		Config: rawConfig(t, models.MenuConfig{Message: "Escolha:", Options: []string{"A"}}),
	}
	saveLinearFlow(t, h, flow, startNode("flow-1"), menuNode)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	execution := singleExecution(t, h, "flow-1")
	assert.Equal(t, models.ExecutionWaitingMenu, execution.Status)
	assert.Nil(t, execution.NextExecutionAt)
}

func TestInterpreter_MediaNode(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.messages.On("SendMedia", mock.Anything, "+5511999990000", "image", "https://cdn.example.com/oferta.png", "Oferta para Maria").
		Return("msg-id", nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	mediaNode := &models.Node{
		ID:     "media-1",
		FlowID: "flow-1",
		Type:   models.NodeTypeMedia,
		Config: rawConfig(t, models.MediaConfig{
			MediaType: "image",
			URL:       "https://cdn.example.com/oferta.png",
			Caption:   "Oferta para {{primeiro_nome}}",
		}),
	}
	saveLinearFlow(t, h, flow, startNode("flow-1"), mediaNode)

	started, err := h.dispatcher.DispatchMessage(context.Background(), messageEvent("oi"))
	require.NoError(t, err)
	require.Equal(t, 1, started)

	h.messages.AssertExpectations(t)
	assert.Equal(t, models.ExecutionCompleted, singleExecution(t, h, "flow-1").Status)
}

func TestInterpreter_ConversationIDPreferredOverPhone(t *testing.T) {
	h := newHarness(t)
	expectContact(h)

	h.messages.On("SendText", mock.Anything, "conv-9", mock.Anything).Return("msg-id", nil)

	flow := keywordFlow("flow-1", []string{"oi"}, models.MatchExact)
	saveLinearFlow(t, h, flow, startNode("flow-1"), messageNode(t, "flow-1", "msg-1", "Olá!"))

	event := messageEvent("oi")
	event.ConversationID = "conv-9"

	started, err := h.dispatcher.DispatchMessage(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 1, started)

	h.messages.AssertExpectations(t)
}
