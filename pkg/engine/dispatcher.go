package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/dedup"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/graph"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

// dedupWindow is how long a repeated identical inbound event is suppressed.
const dedupWindow = 2 * time.Minute

// Dispatcher matches inbound domain events against active flow trigger
// configurations and starts new executions.
type Dispatcher struct {
	persistence persistence.Persistence
	contacts    ContactStore
	interpreter *Interpreter
	deduper     dedup.Deduper // nil disables de-duplication
	logger      *slog.Logger
}

func NewDispatcher(
	persistence persistence.Persistence,
	contacts ContactStore,
	interpreter *Interpreter,
	deduper dedup.Deduper,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		persistence: persistence,
		contacts:    contacts,
		interpreter: interpreter,
		deduper:     deduper,
		logger:      logger.With("module", "trigger_dispatcher"),
	}
}

// match is the result of evaluating one flow's trigger against an event.
type match struct {
	matched   bool
	variables map[string]any
	// fingerprint distinguishes repeated deliveries of the same event for
	// de-duplication.
	fingerprint string
}

// DispatchMessage starts executions for keyword flows matching an inbound
// message. Returns the number of executions started.
func (d *Dispatcher) DispatchMessage(ctx context.Context, event *events.ContactMessageReceived) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	return d.dispatch(ctx, event.TenantID, event.ContactID, event.ConversationID, event.Message,
		models.TriggerKeyword, func(flow *models.Flow) match {
			return matchKeyword(flow.TriggerConfig, event.Message)
		})
}

// DispatchContactCreated starts executions for new-contact flows.
func (d *Dispatcher) DispatchContactCreated(ctx context.Context, event *events.ContactCreated) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	return d.dispatch(ctx, event.TenantID, event.ContactID, "", "",
		models.TriggerNewContact, func(_ *models.Flow) match {
			return match{matched: true, fingerprint: "new_contact"}
		})
}

// DispatchTagAdded starts executions for tag flows matching the added tag.
func (d *Dispatcher) DispatchTagAdded(ctx context.Context, event *events.ContactTagAdded) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	return d.dispatch(ctx, event.TenantID, event.ContactID, "", "",
		models.TriggerTagAdded, func(flow *models.Flow) match {
			return matchTag(flow.TriggerConfig, event.Tag)
		})
}

// DispatchTransaction starts executions for transaction flows matching the
// reported status.
func (d *Dispatcher) DispatchTransaction(ctx context.Context, event *events.TransactionUpdated) (int, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	return d.dispatch(ctx, event.TenantID, event.ContactID, "", "",
		models.TriggerTransactionEvent, func(flow *models.Flow) match {
			return matchTransaction(flow.TriggerConfig, event)
		})
}

// dispatch runs the per-flow match/start loop. A failure in one flow never
// aborts iteration over the others.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	tenantID, contactID, conversationID, message string,
	trigger models.TriggerType,
	matchFn func(flow *models.Flow) match,
) (int, error) {
	logger := d.logger.With("tenant_id", tenantID, "contact_id", contactID, "trigger_type", trigger)

	flows, err := d.persistence.Flows().ActiveFlowsByTrigger(ctx, tenantID, trigger)
	if err != nil {
		return 0, fmt.Errorf("failed to list active flows: %w", err)
	}

	started := 0

	for _, flow := range flows {
		if err := flow.ValidateTriggerConfig(); err != nil {
			logger.Warn("Skipping flow with malformed trigger config", "flow_id", flow.ID, "error", err)

			continue
		}

		result := matchFn(flow)
		if !result.matched {
			continue
		}

		if d.suppressed(ctx, logger, flow, contactID, result.fingerprint) {
			continue
		}

		if err := d.startExecution(ctx, flow, contactID, conversationID, message, result.variables); err != nil {
			logger.Error("Failed to start execution", "flow_id", flow.ID, "error", err)

			continue
		}

		started++
	}

	return started, nil
}

// suppressed consults the deduper; deduper failures fail open so a broken
// Redis never silences triggers.
func (d *Dispatcher) suppressed(ctx context.Context, logger *slog.Logger, flow *models.Flow, contactID, fingerprint string) bool {
	if d.deduper == nil {
		return false
	}

	key := fmt.Sprintf("%s:%s:%s:%s", flow.TenantID, flow.ID, contactID, fingerprint)

	seen, err := d.deduper.Seen(ctx, key, dedupWindow)
	if err != nil {
		logger.Warn("Deduper check failed, dispatching anyway", "flow_id", flow.ID, "error", err)

		return false
	}

	if seen {
		logger.Info("Suppressed duplicate trigger event", "flow_id", flow.ID)
	}

	return seen
}

func (d *Dispatcher) startExecution(ctx context.Context, flow *models.Flow, contactID, conversationID, message string, variables map[string]any) error {
	nodes, edges, err := d.persistence.Flows().FlowGraph(ctx, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to load flow graph: %w", err)
	}

	flowGraph := graph.New(flow.ID, nodes, edges, d.logger)

	start, err := flowGraph.StartNode()
	if err != nil {
		if errors.Is(err, graph.ErrNoStartNode) {
			d.logger.Warn("Flow has no start node, not starting execution", "flow_id", flow.ID)

			return nil
		}

		// Multiple start nodes: invariant violation already logged, first wins.
	}

	contact, err := d.contacts.ContactByID(ctx, flow.TenantID, contactID)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}

	execution := &models.Execution{
		ID:             "exec-" + uuid.New().String()[:8],
		TenantID:       flow.TenantID,
		FlowID:         flow.ID,
		ContactID:      contactID,
		ConversationID: conversationID,
		Status:         models.ExecutionRunning,
		CurrentNodeID:  start.ID,
		Variables:      variables,
		StartedAt:      time.Now().UTC(),
	}
	execution.AppendLog(models.LogEventStarted, start.ID, "")

	if err := d.persistence.Executions().CreateExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	env := &Env{Flow: flow, Graph: flowGraph, Contact: contact, Message: message}

	return d.interpreter.Start(ctx, env, execution)
}

// matchKeyword applies the configured match mode to the lower-cased, trimmed
// message. First matching keyword wins.
func matchKeyword(config models.TriggerConfig, message string) match {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return match{}
	}

	mode := config.MatchMode
	if mode == "" {
		mode = models.MatchContains
	}

	for _, keyword := range config.Keywords {
		candidate := strings.ToLower(strings.TrimSpace(keyword))
		if candidate == "" {
			continue
		}

		var matched bool

		switch mode {
		case models.MatchExact:
			matched = normalized == candidate
		case models.MatchStartsWith:
			matched = strings.HasPrefix(normalized, candidate)
		case models.MatchContains:
			matched = strings.Contains(normalized, candidate)
		}

		if matched {
			return match{matched: true, fingerprint: "keyword:" + candidate}
		}
	}

	return match{}
}

// matchTag matches an incoming tag against the configured tag list. An empty
// list matches any tag. A configured tag ending in ":" is a prefix match; a
// plain tag matches exact equality or itself plus ":" as a prefix, so
// contextual tags like "abandonou:ProductA|OfferX" hit the "abandonou" filter.
func matchTag(config models.TriggerConfig, tag string) match {
	matched := len(config.Tags) == 0

	for _, configured := range config.Tags {
		if configured == "" {
			continue
		}

		if strings.HasSuffix(configured, ":") {
			if strings.HasPrefix(tag, configured) {
				matched = true

				break
			}

			continue
		}

		if tag == configured || strings.HasPrefix(tag, configured+":") {
			matched = true

			break
		}
	}

	if !matched {
		return match{}
	}

	return match{matched: true, variables: parseTagVariables(tag), fingerprint: "tag:" + tag}
}

// parseTagVariables splits a contextual tag "evento:Produto|Oferta" into the
// named variables flows reference in templates and conditions.
func parseTagVariables(tag string) map[string]any {
	variables := map[string]any{"evento": tag, "produto": "", "oferta": ""}

	event, rest, ok := strings.Cut(tag, ":")
	if !ok {
		return variables
	}

	variables["evento"] = event

	product, offer, _ := strings.Cut(rest, "|")
	variables["produto"] = product
	variables["oferta"] = offer

	return variables
}

// matchTransaction matches the normalized status against the configured
// filter. An empty status list matches any status.
func matchTransaction(config models.TriggerConfig, event *events.TransactionUpdated) match {
	status := models.NormalizeTransactionStatus(event.Status)

	matched := len(config.TransactionStatuses) == 0

	for _, configured := range config.TransactionStatuses {
		if models.NormalizeTransactionStatus(configured) == status {
			matched = true

			break
		}
	}

	if !matched {
		return match{}
	}

	return match{
		matched: true,
		variables: map[string]any{
			"produto": event.Product,
			"oferta":  event.Offer,
			"status":  status,
		},
		fingerprint: "transaction:" + event.TransactionID + ":" + status,
	}
}
