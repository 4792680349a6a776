package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeType identifies the kind of step a node performs.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeMessage   NodeType = "message"
	NodeTypeMedia     NodeType = "media"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeMenu      NodeType = "menu"
)

// Edge handles computed by branching nodes.
const (
	HandleYes     = "yes"
	HandleNo      = "no"
	HandleTimeout = "timeout"
)

// MenuOptionHandle returns the edge handle for the menu option at index.
func MenuOptionHandle(index int) string {
	return "option-" + strconv.Itoa(index)
}

// Node is a typed step in a flow graph. Config is decoded into the per-type
// config struct before execution; free-form field access is never performed
// past that point.
type Node struct {
	ID     string          `json:"id"      validate:"required"`
	FlowID string          `json:"flow_id" validate:"required"`
	Type   NodeType        `json:"type"    validate:"required"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Edge is a directed connection between two nodes. SourceHandle disambiguates
// which edge to follow out of a branching node; unconditional nodes leave it
// empty.
type Edge struct {
	ID           string `json:"id"             validate:"required"`
	FlowID       string `json:"flow_id"        validate:"required"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// MessageConfig configures a message node.
type MessageConfig struct {
	Content string `json:"content"`
}

// MediaConfig configures a media node.
type MediaConfig struct {
	MediaType string `json:"media_type"`
	URL       string `json:"url"`
	Caption   string `json:"caption,omitempty"`
}

// DelayConfig configures a delay node.
type DelayConfig struct {
	DelayMinutes int `json:"delay_minutes"`
}

// ConditionConfig configures a condition node. Field/Operator/Value is the
// primary form; Expression is an advanced alternative evaluated against the
// whole execution context.
type ConditionConfig struct {
	Field      string `json:"field,omitempty"`
	Operator   string `json:"operator,omitempty"`
	Value      string `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// ActionType identifies the side effect an action node performs.
type ActionType string

const (
	ActionAddTag              ActionType = "add_tag"
	ActionRemoveTag           ActionType = "remove_tag"
	ActionChangePipelineStage ActionType = "change_pipeline_stage"
	ActionChangeRecoveryStage ActionType = "change_recovery_stage"
	ActionNotifyTeam          ActionType = "notify_team"
)

// ActionConfig configures an action node.
type ActionConfig struct {
	Action  ActionType `json:"action"`
	Tag     string     `json:"tag,omitempty"`
	StageID string     `json:"stage_id,omitempty"`
	Message string     `json:"message,omitempty"`
	// Empty UserIDs on notify_team means all tenant members.
	UserIDs []string `json:"user_ids,omitempty"`
}

// MenuConfig configures a menu node. The rendered message is followed by a
// numbered list built from Options.
type MenuConfig struct {
	Message        string   `json:"message"`
	Options        []string `json:"options"`
	TimeoutMinutes int      `json:"timeout_minutes,omitempty"`
}

// DecodeConfig unmarshals the node's raw config into out, reporting the node
// identity on failure so the execution log names the offending step.
func (n *Node) DecodeConfig(out any) error {
	raw := n.Config
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("node %s (%s): malformed config: %w", n.ID, n.Type, err)
	}

	return nil
}
