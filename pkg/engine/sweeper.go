package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/graph"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

// Sweeper resumes suspended executions whose timers have elapsed: delay nodes
// that reached their resume time and menus that timed out waiting for a reply.
type Sweeper struct {
	persistence persistence.Persistence
	contacts    ContactStore
	interpreter *Interpreter
	logger      *slog.Logger
}

func NewSweeper(
	persistence persistence.Persistence,
	contacts ContactStore,
	interpreter *Interpreter,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		persistence: persistence,
		contacts:    contacts,
		interpreter: interpreter,
		logger:      logger.With("module", "sweeper"),
	}
}

// Sweep claims and resumes every due execution. A failure on one execution
// never aborts the rest. Returns the number of executions resumed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.persistence.Executions().DueExecutions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due executions: %w", err)
	}

	resumed := 0

	for _, execution := range due {
		if err := s.resume(ctx, execution); err != nil {
			if errors.Is(err, persistence.ErrExecutionNotClaimable) {
				// Another worker got here first.
				continue
			}

			s.logger.Error("Failed to resume execution", "execution_id", execution.ID, "error", err)

			continue
		}

		resumed++
	}

	return resumed, nil
}

func (s *Sweeper) resume(ctx context.Context, due *models.Execution) error {
	priorStatus := due.Status

	execution, err := s.persistence.Executions().Claim(ctx, due.ID, models.ExecutionWaiting, models.ExecutionWaitingMenu)
	if err != nil {
		return err
	}

	execution.AppendLog(models.LogEventResumed, execution.CurrentNodeID, "timer")

	s.interpreter.publish(ctx, execution.ContactID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.TenantID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		NodeID:      execution.CurrentNodeID,
		Reason:      "timer",
	})

	flow, err := s.persistence.Flows().FlowByID(ctx, execution.FlowID)
	if err != nil {
		return s.fail(ctx, execution, fmt.Errorf("failed to load flow: %w", err))
	}

	nodes, edges, err := s.persistence.Flows().FlowGraph(ctx, execution.FlowID)
	if err != nil {
		return s.fail(ctx, execution, fmt.Errorf("failed to load flow graph: %w", err))
	}

	flowGraph := graph.New(execution.FlowID, nodes, edges, s.logger)

	contact, err := s.contacts.ContactByID(ctx, execution.TenantID, execution.ContactID)
	if err != nil {
		return s.fail(ctx, execution, fmt.Errorf("failed to load contact: %w", err))
	}

	env := &Env{Flow: flow, Graph: flowGraph, Contact: contact}

	if priorStatus == models.ExecutionWaitingMenu {
		return s.interpreter.ResumeMenuTimeout(ctx, env, execution)
	}

	node, ok := flowGraph.Node(execution.CurrentNodeID)
	if !ok {
		execution.Fail(fmt.Sprintf("resume node %s not found", execution.CurrentNodeID))

		return s.interpreter.finish(ctx, execution)
	}

	return s.interpreter.RunFrom(ctx, env, execution, node)
}

// fail terminally records err on a claimed execution. Once the claim moved it
// to running, returning early would leave it invisible to every later sweep.
func (s *Sweeper) fail(ctx context.Context, execution *models.Execution, err error) error {
	execution.Fail(err.Error())

	if finishErr := s.interpreter.finish(ctx, execution); finishErr != nil {
		return errors.Join(err, finishErr)
	}

	return err
}
