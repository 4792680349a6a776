package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_flows_tenant_trigger ON flows(tenant_id, trigger_type) WHERE is_active;

			CREATE TABLE flow_nodes (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				PRIMARY KEY (flow_id, id)
			);

			CREATE TABLE flow_edges (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (flow_id, id)
			);

			CREATE INDEX idx_flow_edges_source ON flow_edges(flow_id, source_node_id);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL REFERENCES flows(id),
				contact_id VARCHAR(255) NOT NULL,
				conversation_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				variables JSONB NOT NULL DEFAULT '{}',
				execution_log JSONB NOT NULL DEFAULT '[]',
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE,
				next_execution_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_due ON executions(next_execution_at)
				WHERE status IN ('waiting', 'waiting_menu');
			CREATE INDEX idx_executions_waiting_menu ON executions(tenant_id, contact_id, started_at DESC)
				WHERE status = 'waiting_menu';
			CREATE INDEX idx_executions_flow ON executions(flow_id);
		`,
	}
}
