// Package persistence provides the data storage abstraction for flows and
// executions.
package persistence

import (
	"context"
	"time"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

// FlowRepository reads flow definitions. Flow graphs are authored elsewhere
// and are read-only from the engine's perspective; Save exists for seeding
// and tests.
type FlowRepository interface {
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	ActiveFlowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Flow, error)
	FlowGraph(ctx context.Context, flowID string) ([]*models.Node, []*models.Edge, error)
	SaveFlow(ctx context.Context, flow *models.Flow, nodes []*models.Node, edges []*models.Edge) error
}

// ExecutionRepository stores execution state. Claim is the concurrency
// primitive: it must atomically transition an execution out of a waiting
// status so two resumers can never both win.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)

	// ExecutionsByFlow lists every execution of one flow, newest first.
	ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)

	// DueExecutions returns executions in a waiting status whose
	// next_execution_at has elapsed.
	DueExecutions(ctx context.Context, now time.Time) ([]*models.Execution, error)

	// LatestWaitingMenu returns the contact's most recent execution suspended
	// on a menu node, or ErrExecutionNotFound.
	LatestWaitingMenu(ctx context.Context, tenantID, contactID string) (*models.Execution, error)

	// Claim transitions the execution to running iff its current status is one
	// of from, returning the claimed record. A lost race returns
	// ErrExecutionNotClaimable and the caller must treat the execution as
	// already handled.
	Claim(ctx context.Context, id string, from ...models.ExecutionStatus) (*models.Execution, error)
}

type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
