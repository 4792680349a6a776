package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

// FlowRepository handles flow definition reads and (for seeding) writes.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

func (fr *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT id, tenant_id, name, is_active, trigger_type, trigger_config, created_at, updated_at
		FROM flows
		WHERE id = $1
	`

	flow, err := fr.scanFlow(fr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (fr *FlowRepository) ActiveFlowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Flow, error) {
	query := `
		SELECT id, tenant_id, name, is_active, trigger_type, trigger_config, created_at, updated_at
		FROM flows
		WHERE tenant_id = $1 AND trigger_type = $2 AND is_active
		ORDER BY created_at
	`

	rows, err := fr.db.QueryContext(ctx, query, tenantID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			fr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var flows []*models.Flow

	for rows.Next() {
		flow, err := fr.scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (fr *FlowRepository) FlowGraph(ctx context.Context, flowID string) ([]*models.Node, []*models.Edge, error) {
	nodes, err := fr.nodesByFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	edges, err := fr.edgesByFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

func (fr *FlowRepository) nodesByFlow(ctx context.Context, flowID string) ([]*models.Node, error) {
	query := `SELECT id, flow_id, node_type, config FROM flow_nodes WHERE flow_id = $1 ORDER BY id`

	rows, err := fr.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow nodes: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			fr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var nodes []*models.Node

	for rows.Next() {
		var (
			node       models.Node
			configJSON []byte
		)

		if err := rows.Scan(&node.ID, &node.FlowID, &node.Type, &configJSON); err != nil {
			return nil, fmt.Errorf("failed to scan flow node: %w", err)
		}

		node.Config = json.RawMessage(configJSON)
		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flow nodes: %w", err)
	}

	return nodes, nil
}

func (fr *FlowRepository) edgesByFlow(ctx context.Context, flowID string) ([]*models.Edge, error) {
	query := `
		SELECT id, flow_id, source_node_id, target_node_id, source_handle
		FROM flow_edges
		WHERE flow_id = $1
		ORDER BY id
	`

	rows, err := fr.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow edges: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			fr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var edges []*models.Edge

	for rows.Next() {
		var edge models.Edge

		if err := rows.Scan(&edge.ID, &edge.FlowID, &edge.SourceNodeID, &edge.TargetNodeID, &edge.SourceHandle); err != nil {
			return nil, fmt.Errorf("failed to scan flow edge: %w", err)
		}

		edges = append(edges, &edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flow edges: %w", err)
	}

	return edges, nil
}

func (fr *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow, nodes []*models.Node, edges []*models.Edge) error {
	if err := models.ValidateDefinition(flow, nodes, edges); err != nil {
		return err
	}

	configJSON, err := json.Marshal(flow.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	transaction, err := fr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	_, err = transaction.ExecContext(ctx, `
		INSERT INTO flows (id, tenant_id, name, is_active, trigger_type, trigger_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			updated_at = EXCLUDED.updated_at
	`, flow.ID, flow.TenantID, flow.Name, flow.IsActive, flow.TriggerType, configJSON, flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	_, err = transaction.ExecContext(ctx, `DELETE FROM flow_nodes WHERE flow_id = $1`, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear flow nodes: %w", err)
	}

	for _, node := range nodes {
		config := node.Config
		if len(config) == 0 {
			config = json.RawMessage("{}")
		}

		_, err = transaction.ExecContext(ctx, `
			INSERT INTO flow_nodes (flow_id, id, node_type, config) VALUES ($1, $2, $3, $4)
		`, flow.ID, node.ID, node.Type, []byte(config))
		if err != nil {
			return fmt.Errorf("failed to save flow node %s: %w", node.ID, err)
		}
	}

	_, err = transaction.ExecContext(ctx, `DELETE FROM flow_edges WHERE flow_id = $1`, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear flow edges: %w", err)
	}

	for _, edge := range edges {
		_, err = transaction.ExecContext(ctx, `
			INSERT INTO flow_edges (flow_id, id, source_node_id, target_node_id, source_handle)
			VALUES ($1, $2, $3, $4, $5)
		`, flow.ID, edge.ID, edge.SourceNodeID, edge.TargetNodeID, edge.SourceHandle)
		if err != nil {
			return fmt.Errorf("failed to save flow edge %s: %w", edge.ID, err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit flow save: %w", err)
	}

	return nil
}

func (fr *FlowRepository) scanFlow(scanner interface{ Scan(dest ...any) error }) (*models.Flow, error) {
	var (
		flow       models.Flow
		configJSON []byte
	)

	err := scanner.Scan(
		&flow.ID,
		&flow.TenantID,
		&flow.Name,
		&flow.IsActive,
		&flow.TriggerType,
		&configJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &flow.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	return &flow, nil
}
