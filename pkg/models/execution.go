package models

import "time"

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	// ExecutionRunning is transient and only observed mid-step.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionWaiting means suspended on a delay timer.
	ExecutionWaiting ExecutionStatus = "waiting"
	// ExecutionWaitingMenu means suspended until the contact replies to a menu.
	ExecutionWaitingMenu ExecutionStatus = "waiting_menu"
	ExecutionCompleted   ExecutionStatus = "completed"
	ExecutionFailed      ExecutionStatus = "failed"
)

// IsTerminal reports whether the status never transitions further.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Execution log event names.
const (
	LogEventStarted   = "started"
	LogEventSuspended = "suspended"
	LogEventResumed   = "resumed"
	LogEventCompleted = "completed"
	LogEventFailed    = "failed"
	LogEventNode      = "node_executed"
)

// LogEntry is one append-only record in an execution's log.
type LogEntry struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	NodeID string    `json:"node_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Execution is one running, suspended or finished instance of a flow for a
// specific contact. It is the unit of mutual exclusion: resuming requires an
// atomic claim out of a waiting status.
type Execution struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	FlowID         string          `json:"flow_id"`
	ContactID      string          `json:"contact_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Status         ExecutionStatus `json:"status"`

	// CurrentNodeID is the persisted continuation: the node the interpreter
	// re-enters at on resumption.
	CurrentNodeID string `json:"current_node_id"`

	Variables map[string]any `json:"variables,omitempty"`

	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`

	Log          []LogEntry `json:"execution_log"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// AppendLog extends the execution log. The log is never rewritten, only
// extended.
func (e *Execution) AppendLog(event, nodeID, detail string) {
	e.Log = append(e.Log, LogEntry{
		At:     time.Now().UTC(),
		Event:  event,
		NodeID: nodeID,
		Detail: detail,
	})
}

// SetVariable records an execution-scoped variable, initializing the map on
// first use.
func (e *Execution) SetVariable(key string, value any) {
	if e.Variables == nil {
		e.Variables = make(map[string]any)
	}

	e.Variables[key] = value
}

// Complete marks the execution terminally successful.
func (e *Execution) Complete(reason string) {
	now := time.Now().UTC()
	e.Status = ExecutionCompleted
	e.CompletedAt = &now
	e.NextExecutionAt = nil
	e.AppendLog(LogEventCompleted, e.CurrentNodeID, reason)
}

// Fail marks the execution terminally failed with the captured error message.
func (e *Execution) Fail(message string) {
	now := time.Now().UTC()
	e.Status = ExecutionFailed
	e.CompletedAt = &now
	e.NextExecutionAt = nil
	e.ErrorMessage = message
	e.AppendLog(LogEventFailed, e.CurrentNodeID, message)
}

// Suspend parks the execution at nodeID in the given waiting status,
// optionally scheduling a timer resumption.
func (e *Execution) Suspend(status ExecutionStatus, nodeID string, resumeAt *time.Time) {
	e.Status = status
	e.CurrentNodeID = nodeID
	e.NextExecutionAt = resumeAt

	detail := ""
	if resumeAt != nil {
		detail = "until " + resumeAt.Format(time.RFC3339)
	}

	e.AppendLog(LogEventSuspended, nodeID, detail)
}
