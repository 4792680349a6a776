package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/graph"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

// MenuRouter intercepts inbound messages from contacts with a pending menu
// and resumes the matching execution. Messages that do not answer a pending
// menu fall through to the trigger dispatcher.
type MenuRouter struct {
	persistence persistence.Persistence
	contacts    ContactStore
	interpreter *Interpreter
	logger      *slog.Logger
}

func NewMenuRouter(
	persistence persistence.Persistence,
	contacts ContactStore,
	interpreter *Interpreter,
	logger *slog.Logger,
) *MenuRouter {
	return &MenuRouter{
		persistence: persistence,
		contacts:    contacts,
		interpreter: interpreter,
		logger:      logger.With("module", "menu_router"),
	}
}

// Route resumes the contact's most recent waiting_menu execution when the
// message matches one of its options. It reports handled=true only when an
// execution was resumed; every other case leaves the message for the
// dispatcher.
func (r *MenuRouter) Route(ctx context.Context, event *events.ContactMessageReceived) (bool, error) {
	if err := event.Validate(); err != nil {
		return false, err
	}

	logger := r.logger.With("tenant_id", event.TenantID, "contact_id", event.ContactID)

	execution, err := r.persistence.Executions().LatestWaitingMenu(ctx, event.TenantID, event.ContactID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to look up pending menu: %w", err)
	}

	flow, err := r.persistence.Flows().FlowByID(ctx, execution.FlowID)
	if err != nil {
		return false, fmt.Errorf("failed to load flow: %w", err)
	}

	nodes, edges, err := r.persistence.Flows().FlowGraph(ctx, execution.FlowID)
	if err != nil {
		return false, fmt.Errorf("failed to load flow graph: %w", err)
	}

	flowGraph := graph.New(execution.FlowID, nodes, edges, r.logger)

	menuNode, ok := flowGraph.Node(execution.CurrentNodeID)
	if !ok {
		return false, fmt.Errorf("menu node %s not found in flow %s", execution.CurrentNodeID, execution.FlowID)
	}

	var config models.MenuConfig
	if err := menuNode.DecodeConfig(&config); err != nil {
		return false, fmt.Errorf("failed to decode menu config: %w", err)
	}

	index, ok := matchMenuOption(config.Options, event.Message)
	if !ok {
		logger.Debug("Message does not answer the pending menu", "execution_id", execution.ID)

		return false, nil
	}

	claimed, err := r.persistence.Executions().Claim(ctx, execution.ID, models.ExecutionWaitingMenu)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotClaimable) {
			logger.Debug("Pending menu already claimed by another worker", "execution_id", execution.ID)

			return false, nil
		}

		return false, fmt.Errorf("failed to claim execution: %w", err)
	}

	claimed.SetVariable("menu_choice", config.Options[index])
	claimed.SetVariable("menu_choice_number", index+1)
	claimed.AppendLog(models.LogEventResumed, claimed.CurrentNodeID, "menu_reply")

	r.interpreter.publish(ctx, claimed.ContactID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, claimed.TenantID),
		ExecutionID: claimed.ID,
		FlowID:      claimed.FlowID,
		NodeID:      claimed.CurrentNodeID,
		Reason:      "menu_reply",
	})

	contact, err := r.contacts.ContactByID(ctx, claimed.TenantID, claimed.ContactID)
	if err != nil {
		// The claim already moved the execution to running; leaving it there
		// would strand it, so the load error becomes a terminal failure.
		loadErr := fmt.Errorf("failed to load contact: %w", err)
		claimed.Fail(loadErr.Error())

		if finishErr := r.interpreter.finish(ctx, claimed); finishErr != nil {
			return true, errors.Join(loadErr, finishErr)
		}

		return true, loadErr
	}

	env := &Env{Flow: flow, Graph: flowGraph, Contact: contact, Message: event.Message}

	next, ok := flowGraph.NextNode(claimed.CurrentNodeID, models.MenuOptionHandle(index))
	if !ok {
		claimed.Complete("next node not found")

		return true, r.interpreter.finish(ctx, claimed)
	}

	return true, r.interpreter.RunFrom(ctx, env, claimed, next)
}

// matchMenuOption resolves a reply to an option index: a bare number selects
// by position, any other text must equal an option label ignoring case.
func matchMenuOption(options []string, message string) (int, bool) {
	reply := strings.TrimSpace(message)
	if reply == "" {
		return 0, false
	}

	if number, err := strconv.Atoi(reply); err == nil {
		if number >= 1 && number <= len(options) {
			return number - 1, true
		}

		return 0, false
	}

	for index, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), reply) {
			return index, true
		}
	}

	return 0, false
}
