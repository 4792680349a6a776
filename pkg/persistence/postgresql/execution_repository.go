package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

const executionColumns = `
	id, tenant_id, flow_id, contact_id, conversation_id, status, current_node_id,
	variables, execution_log, error_message, started_at, completed_at, next_execution_at
`

// ExecutionRepository handles execution state persistence, including the
// atomic claim used to serialize resumption.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (er *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	variablesJSON, logJSON, err := marshalExecutionFields(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.TenantID,
		execution.FlowID,
		execution.ContactID,
		nullable(execution.ConversationID),
		execution.Status,
		execution.CurrentNodeID,
		variablesJSON,
		logJSON,
		nullable(execution.ErrorMessage),
		execution.StartedAt,
		execution.CompletedAt,
		execution.NextExecutionAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	variablesJSON, logJSON, err := marshalExecutionFields(execution)
	if err != nil {
		return err
	}

	query := `
		UPDATE executions SET
			status = $2,
			current_node_id = $3,
			variables = $4,
			execution_log = $5,
			error_message = $6,
			completed_at = $7,
			next_execution_at = $8
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.CurrentNodeID,
		variablesJSON,
		logJSON,
		nullable(execution.ErrorMessage),
		execution.CompletedAt,
		execution.NextExecutionAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (er *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (er *ExecutionRepository) ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE flow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := er.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions by flow: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (er *ExecutionRepository) DueExecutions(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status IN ('waiting', 'waiting_menu')
		  AND next_execution_at IS NOT NULL
		  AND next_execution_at <= $1
		ORDER BY next_execution_at
	`

	rows, err := er.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (er *ExecutionRepository) LatestWaitingMenu(ctx context.Context, tenantID, contactID string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE tenant_id = $1 AND contact_id = $2 AND status = 'waiting_menu'
		ORDER BY started_at DESC
		LIMIT 1
	`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, tenantID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// Claim performs the conditional update in a single statement so concurrent
// resumers serialize on the row: exactly one caller observes an affected row.
func (er *ExecutionRepository) Claim(ctx context.Context, id string, from ...models.ExecutionStatus) (*models.Execution, error) {
	statuses := make([]string, len(from))
	for i, status := range from {
		statuses[i] = string(status)
	}

	query := `
		UPDATE executions
		SET status = 'running', next_execution_at = NULL
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + executionColumns

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id, pq.Array(statuses)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotClaimable
		}

		return nil, persistence.NewExecutionError("Claim", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.Execution, error) {
	var (
		execution                models.Execution
		conversationID, errorMsg sql.NullString
		variablesJSON, logJSON   []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.TenantID,
		&execution.FlowID,
		&execution.ContactID,
		&conversationID,
		&execution.Status,
		&execution.CurrentNodeID,
		&variablesJSON,
		&logJSON,
		&errorMsg,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.NextExecutionAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ConversationID = conversationID.String
	execution.ErrorMessage = errorMsg.String

	if variablesJSON != nil {
		if err := json.Unmarshal(variablesJSON, &execution.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	if logJSON != nil {
		if err := json.Unmarshal(logJSON, &execution.Log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution log: %w", err)
		}
	}

	return &execution, nil
}

func marshalExecutionFields(execution *models.Execution) ([]byte, []byte, error) {
	variables := execution.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	log := execution.Log
	if log == nil {
		log = []models.LogEntry{}
	}

	logJSON, err := json.Marshal(log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal execution log: %w", err)
	}

	return variablesJSON, logJSON, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
