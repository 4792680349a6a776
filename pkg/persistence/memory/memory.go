// Package memory provides an in-memory persistence implementation for
// development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

type Persistence struct {
	mu         sync.RWMutex
	flows      map[string]*models.Flow
	nodes      map[string][]*models.Node // by flow ID
	edges      map[string][]*models.Edge // by flow ID
	executions map[string]*models.Execution
}

func NewPersistence() *Persistence {
	return &Persistence{
		flows:      make(map[string]*models.Flow),
		nodes:      make(map[string][]*models.Node),
		edges:      make(map[string][]*models.Edge),
		executions: make(map[string]*models.Execution),
	}
}

func (p *Persistence) Flows() persistence.FlowRepository {
	return p
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// FlowRepository

func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow, ok := p.flows[id]
	if !ok {
		return nil, persistence.ErrFlowNotFound
	}

	return clone(flow), nil
}

func (p *Persistence) ActiveFlowsByTrigger(_ context.Context, tenantID string, trigger models.TriggerType) ([]*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matches []*models.Flow

	for _, flow := range p.flows {
		if flow.TenantID == tenantID && flow.TriggerType == trigger && flow.IsActive {
			matches = append(matches, clone(flow))
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	return matches, nil
}

func (p *Persistence) FlowGraph(_ context.Context, flowID string) ([]*models.Node, []*models.Edge, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.flows[flowID]; !ok {
		return nil, nil, persistence.ErrFlowNotFound
	}

	nodes := make([]*models.Node, len(p.nodes[flowID]))
	for i, node := range p.nodes[flowID] {
		nodes[i] = clone(node)
	}

	edges := make([]*models.Edge, len(p.edges[flowID]))
	for i, edge := range p.edges[flowID] {
		edges[i] = clone(edge)
	}

	return nodes, edges, nil
}

func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow, nodes []*models.Node, edges []*models.Edge) error {
	if err := models.ValidateDefinition(flow, nodes, edges); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.flows[flow.ID] = clone(flow)

	p.nodes[flow.ID] = nil
	for _, node := range nodes {
		p.nodes[flow.ID] = append(p.nodes[flow.ID], clone(node))
	}

	p.edges[flow.ID] = nil
	for _, edge := range edges {
		p.edges[flow.ID] = append(p.edges[flow.ID], clone(edge))
	}

	return nil
}

// ExecutionRepository

func (p *Persistence) CreateExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.executions[execution.ID]; exists {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	p.executions[execution.ID] = clone(execution)

	return nil
}

func (p *Persistence) UpdateExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.executions[execution.ID]; !exists {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	p.executions[execution.ID] = clone(execution)

	return nil
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return clone(execution), nil
}

func (p *Persistence) ExecutionsByFlow(_ context.Context, flowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var executions []*models.Execution

	for _, execution := range p.executions {
		if execution.FlowID == flowID {
			executions = append(executions, clone(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (p *Persistence) DueExecutions(_ context.Context, now time.Time) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var due []*models.Execution

	for _, execution := range p.executions {
		waiting := execution.Status == models.ExecutionWaiting || execution.Status == models.ExecutionWaitingMenu
		if waiting && execution.NextExecutionAt != nil && !execution.NextExecutionAt.After(now) {
			due = append(due, clone(execution))
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextExecutionAt.Before(*due[j].NextExecutionAt)
	})

	return due, nil
}

func (p *Persistence) LatestWaitingMenu(_ context.Context, tenantID, contactID string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var latest *models.Execution

	for _, execution := range p.executions {
		if execution.TenantID != tenantID || execution.ContactID != contactID {
			continue
		}

		if execution.Status != models.ExecutionWaitingMenu {
			continue
		}

		if latest == nil || execution.StartedAt.After(latest.StartedAt) {
			latest = execution
		}
	}

	if latest == nil {
		return nil, persistence.ErrExecutionNotFound
	}

	return clone(latest), nil
}

func (p *Persistence) Claim(_ context.Context, id string, from ...models.ExecutionStatus) (*models.Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	claimable := false

	for _, status := range from {
		if execution.Status == status {
			claimable = true

			break
		}
	}

	if !claimable {
		return nil, persistence.ErrExecutionNotClaimable
	}

	execution.Status = models.ExecutionRunning
	execution.NextExecutionAt = nil

	return clone(execution), nil
}

// clone deep-copies via JSON so callers never share state with the store.
func clone[T any](value *T) *T {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}

	return out
}
