package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/condition"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/eventbus"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/graph"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/template"
)

const (
	// defaultPacing spaces consecutive sends to respect downstream channel
	// rate limits.
	defaultPacing = 300 * time.Millisecond

	// defaultMaxSteps bounds synchronous traversal per invocation. Flow graphs
	// are author-controlled and may contain cycles.
	defaultMaxSteps = 100
)

// Env is the immutable context of one interpreter invocation: the flow, its
// indexed graph and a contact snapshot taken when the invocation began.
type Env struct {
	Flow    *models.Flow
	Graph   *graph.Graph
	Contact *models.Contact
	Message string
}

// Interpreter is the state machine core. It performs each node's effect,
// resolves the next node through the graph, and either continues
// synchronously or suspends by persisting state and returning.
type Interpreter struct {
	persistence persistence.Persistence
	contacts    ContactStore
	messages    MessageAdapter
	notifier    Notifier
	bus         eventbus.EventBus
	logger      *slog.Logger

	// Pacing is the inter-node delay between synchronous steps; zero disables
	// it (tests).
	Pacing time.Duration
	// MaxSteps is the per-invocation synchronous step bound.
	MaxSteps int
}

func NewInterpreter(
	persistence persistence.Persistence,
	contacts ContactStore,
	messages MessageAdapter,
	notifier Notifier,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Interpreter {
	return &Interpreter{
		persistence: persistence,
		contacts:    contacts,
		messages:    messages,
		notifier:    notifier,
		bus:         bus,
		logger:      logger.With("module", "interpreter"),
		Pacing:      defaultPacing,
		MaxSteps:    defaultMaxSteps,
	}
}

// stepOutcome is the result of one node effect.
type stepOutcome struct {
	handle    string
	suspended bool
	completed bool
	reason    string
}

// Start begins a freshly created execution at the flow's start node. The
// execution must already be persisted in running status.
func (i *Interpreter) Start(ctx context.Context, env *Env, execution *models.Execution) error {
	i.publish(ctx, execution.ContactID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, execution.TenantID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		ContactID:   execution.ContactID,
	})

	next, ok := env.Graph.NextNode(execution.CurrentNodeID, "")
	if !ok {
		execution.Complete("no nodes after start")

		return i.finish(ctx, execution)
	}

	return i.RunFrom(ctx, env, execution, next)
}

// RunFrom executes nodes synchronously starting at node until the execution
// suspends or terminates. Node-effect errors never propagate: they fail this
// execution only. The returned error is reserved for persistence failures.
func (i *Interpreter) RunFrom(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) error {
	logger := i.logger.With("execution_id", execution.ID, "flow_id", execution.FlowID)

	for steps := 0; ; steps++ {
		if steps >= i.MaxSteps {
			logger.Warn("Execution exceeded step limit, failing", "max_steps", i.MaxSteps)
			execution.Fail(fmt.Sprintf("step limit exceeded after %d nodes", i.MaxSteps))

			return i.finish(ctx, execution)
		}

		execution.CurrentNodeID = node.ID

		outcome, err := i.executeNode(ctx, env, execution, node)
		if err != nil {
			logger.Error("Node execution failed", "node_id", node.ID, "node_type", node.Type, "error", err)
			execution.Fail(err.Error())

			return i.finish(ctx, execution)
		}

		if outcome.suspended {
			if err := i.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
				return fmt.Errorf("failed to persist suspended execution: %w", err)
			}

			i.publish(ctx, execution.ContactID, events.ExecutionSuspended{
				BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, execution.TenantID),
				ExecutionID: execution.ID,
				FlowID:      execution.FlowID,
				NodeID:      node.ID,
				Status:      string(execution.Status),
				ResumeAt:    execution.NextExecutionAt,
			})

			return nil
		}

		if outcome.completed {
			execution.Complete(outcome.reason)

			return i.finish(ctx, execution)
		}

		execution.AppendLog(models.LogEventNode, node.ID, string(node.Type))

		next, ok := env.Graph.NextNode(node.ID, outcome.handle)
		if !ok {
			reason := "flow completed successfully"
			if outcome.handle != "" {
				reason = "next node not found"
			}

			execution.Complete(reason)

			return i.finish(ctx, execution)
		}

		if i.Pacing > 0 {
			select {
			case <-time.After(i.Pacing):
			case <-ctx.Done():
				execution.Fail("execution cancelled: " + ctx.Err().Error())

				return i.finish(ctx, execution)
			}
		}

		node = next
	}
}

// ResumeMenuTimeout handles a waiting_menu execution whose timeout elapsed:
// the timeout edge is followed when the author drew one, otherwise the
// execution ends. Re-running the menu node would resend the prompt on every
// sweep.
func (i *Interpreter) ResumeMenuTimeout(ctx context.Context, env *Env, execution *models.Execution) error {
	next, ok := env.Graph.NextNode(execution.CurrentNodeID, models.HandleTimeout)
	if !ok {
		execution.Complete("menu timed out")

		return i.finish(ctx, execution)
	}

	return i.RunFrom(ctx, env, execution, next)
}

func (i *Interpreter) executeNode(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	switch node.Type {
	case models.NodeTypeStart:
		return stepOutcome{}, nil
	case models.NodeTypeMessage:
		return i.executeMessage(ctx, env, execution, node)
	case models.NodeTypeMedia:
		return i.executeMedia(ctx, env, execution, node)
	case models.NodeTypeCondition:
		return i.executeCondition(env, execution, node)
	case models.NodeTypeAction:
		return i.executeAction(ctx, env, execution, node)
	case models.NodeTypeDelay:
		return i.executeDelay(env, execution, node)
	case models.NodeTypeMenu:
		return i.executeMenu(ctx, env, execution, node)
	default:
		return stepOutcome{}, fmt.Errorf("node %s: unknown node type %q", node.ID, node.Type)
	}
}

func (i *Interpreter) executeMessage(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.MessageConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	text := template.Render(config.Content, i.templateContext(env, execution))

	if _, err := i.messages.SendText(ctx, i.channelRef(env, execution), text); err != nil {
		return stepOutcome{}, fmt.Errorf("node %s: send failed: %w", node.ID, err)
	}

	return stepOutcome{}, nil
}

func (i *Interpreter) executeMedia(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.MediaConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	caption := template.Render(config.Caption, i.templateContext(env, execution))

	if _, err := i.messages.SendMedia(ctx, i.channelRef(env, execution), config.MediaType, config.URL, caption); err != nil {
		return stepOutcome{}, fmt.Errorf("node %s: media send failed: %w", node.ID, err)
	}

	return stepOutcome{}, nil
}

func (i *Interpreter) executeCondition(env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.ConditionConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	var (
		result bool
		err    error
	)

	if config.Expression != "" {
		result, err = condition.EvaluateExpression(config.Expression, map[string]any{
			"contact":   env.Contact.Snapshot(),
			"variables": execution.Variables,
			"message":   env.Message,
		})
	} else {
		result, err = condition.Evaluate(env.Contact.Snapshot(), config.Field, condition.Operator(config.Operator), config.Value)
	}

	if err != nil {
		return stepOutcome{}, fmt.Errorf("node %s: %w", node.ID, err)
	}

	handle := models.HandleNo
	if result {
		handle = models.HandleYes
	}

	return stepOutcome{handle: handle}, nil
}

func (i *Interpreter) executeAction(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.ActionConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	tenantID, contactID := execution.TenantID, execution.ContactID

	var err error

	switch config.Action {
	case models.ActionAddTag:
		err = i.contacts.AddTag(ctx, tenantID, contactID, config.Tag)
	case models.ActionRemoveTag:
		err = i.contacts.RemoveTag(ctx, tenantID, contactID, config.Tag)
	case models.ActionChangePipelineStage:
		err = i.contacts.SetPipelineStage(ctx, tenantID, contactID, config.StageID)
	case models.ActionChangeRecoveryStage:
		err = i.contacts.SetRecoveryStage(ctx, tenantID, contactID, config.StageID)
	case models.ActionNotifyTeam:
		err = i.notifyTeam(ctx, env, execution, config)
	default:
		err = fmt.Errorf("unknown action type %q", config.Action)
	}

	if err != nil {
		return stepOutcome{}, fmt.Errorf("node %s: action %s failed: %w", node.ID, config.Action, err)
	}

	return stepOutcome{}, nil
}

func (i *Interpreter) notifyTeam(ctx context.Context, env *Env, execution *models.Execution, config models.ActionConfig) error {
	userIDs := config.UserIDs

	if len(userIDs) == 0 {
		members, err := i.contacts.TeamMemberIDs(ctx, execution.TenantID)
		if err != nil {
			return fmt.Errorf("failed to list team members: %w", err)
		}

		userIDs = members
	}

	message := template.Render(config.Message, i.templateContext(env, execution))

	return i.notifier.Notify(ctx, userIDs, "Automation notification", message, map[string]any{
		"execution_id": execution.ID,
		"flow_id":      execution.FlowID,
		"contact_id":   execution.ContactID,
	})
}

func (i *Interpreter) executeDelay(env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.DelayConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	if config.DelayMinutes < 0 {
		return stepOutcome{}, fmt.Errorf("node %s: negative delay_minutes", node.ID)
	}

	// The continuation node is resolved now so resumption re-enters at the
	// right place without revisiting the delay node.
	next, ok := env.Graph.NextNode(node.ID, "")
	if !ok {
		return stepOutcome{completed: true, reason: "flow completed successfully"}, nil
	}

	resumeAt := time.Now().UTC().Add(time.Duration(config.DelayMinutes) * time.Minute)
	execution.Suspend(models.ExecutionWaiting, next.ID, &resumeAt)

	return stepOutcome{suspended: true}, nil
}

func (i *Interpreter) executeMenu(ctx context.Context, env *Env, execution *models.Execution, node *models.Node) (stepOutcome, error) {
	var config models.MenuConfig
	if err := node.DecodeConfig(&config); err != nil {
		return stepOutcome{}, err
	}

	if len(config.Options) == 0 {
		return stepOutcome{}, fmt.Errorf("node %s: menu has no options", node.ID)
	}

	var builder strings.Builder

	builder.WriteString(template.Render(config.Message, i.templateContext(env, execution)))

	for index, option := range config.Options {
		builder.WriteString(fmt.Sprintf("\n%d. %s", index+1, option))
	}

	if _, err := i.messages.SendText(ctx, i.channelRef(env, execution), builder.String()); err != nil {
		return stepOutcome{}, fmt.Errorf("node %s: menu send failed: %w", node.ID, err)
	}

	var resumeAt *time.Time

	if config.TimeoutMinutes > 0 {
		at := time.Now().UTC().Add(time.Duration(config.TimeoutMinutes) * time.Minute)
		resumeAt = &at
	}

	execution.Suspend(models.ExecutionWaitingMenu, node.ID, resumeAt)

	return stepOutcome{suspended: true}, nil
}

// finish persists a terminal transition and publishes the matching lifecycle
// event.
func (i *Interpreter) finish(ctx context.Context, execution *models.Execution) error {
	if err := i.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist terminal execution: %w", err)
	}

	switch execution.Status {
	case models.ExecutionCompleted:
		i.publish(ctx, execution.ContactID, events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.TenantID),
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
			Reason:      lastDetail(execution),
		})
	case models.ExecutionFailed:
		i.publish(ctx, execution.ContactID, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.TenantID),
			ExecutionID: execution.ID,
			FlowID:      execution.FlowID,
			Error:       execution.ErrorMessage,
		})
	}

	return nil
}

func (i *Interpreter) publish(ctx context.Context, key string, event events.Event) {
	if i.bus == nil {
		return
	}

	if err := i.bus.Publish(ctx, key, event); err != nil {
		i.logger.Warn("Failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

func (i *Interpreter) templateContext(env *Env, execution *models.Execution) *template.Context {
	return &template.Context{
		Contact:   env.Contact,
		Variables: execution.Variables,
		Message:   env.Message,
	}
}

func (i *Interpreter) channelRef(env *Env, execution *models.Execution) string {
	if execution.ConversationID != "" {
		return execution.ConversationID
	}

	return env.Contact.Phone
}

func lastDetail(execution *models.Execution) string {
	if len(execution.Log) == 0 {
		return ""
	}

	return execution.Log[len(execution.Log)-1].Detail
}
