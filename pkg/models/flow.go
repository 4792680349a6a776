// Package models defines the core domain models for automation flow execution.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// TriggerType identifies which inbound event kind starts a flow.
type TriggerType string

const (
	TriggerKeyword          TriggerType = "keyword"
	TriggerNewContact       TriggerType = "new_contact"
	TriggerTagAdded         TriggerType = "tag_added"
	TriggerTransactionEvent TriggerType = "transaction_event"
)

// MatchMode controls how keyword triggers compare message text.
type MatchMode string

const (
	MatchExact      MatchMode = "exact"
	MatchStartsWith MatchMode = "starts_with"
	MatchContains   MatchMode = "contains" // default
)

var ErrInvalidTriggerConfig = errors.New("invalid trigger config")

// TriggerConfig is the typed payload of a flow trigger. Which fields are
// meaningful depends on the flow's TriggerType.
type TriggerConfig struct {
	// Keyword triggers.
	Keywords  []string  `json:"keywords,omitempty"`
	MatchMode MatchMode `json:"match_mode,omitempty"`

	// Tag triggers. A tag ending in ":" is a prefix match.
	Tags []string `json:"tags,omitempty"`

	// Transaction triggers. Empty means any status.
	TransactionStatuses []string `json:"transaction_statuses,omitempty"`
}

// Flow is an immutable-per-version definition of an automation sequence.
type Flow struct {
	ID            string        `json:"id"         validate:"required"`
	TenantID      string        `json:"tenant_id"  validate:"required"`
	Name          string        `json:"name"       validate:"required,min=3"`
	IsActive      bool          `json:"is_active"`
	TriggerType   TriggerType   `json:"trigger_type" validate:"required"`
	TriggerConfig TriggerConfig `json:"trigger_config"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ValidateTriggerConfig reports whether the trigger config is well formed for
// the flow's trigger type. A malformed config is treated as "no match" by the
// dispatcher, never as a hard failure.
func (f *Flow) ValidateTriggerConfig() error {
	switch f.TriggerType {
	case TriggerKeyword:
		if len(f.TriggerConfig.Keywords) == 0 {
			return errors.New("keyword trigger requires at least one keyword")
		}

		switch f.TriggerConfig.MatchMode {
		case MatchExact, MatchStartsWith, MatchContains, "":
		default:
			return errors.New("unknown keyword match mode: " + string(f.TriggerConfig.MatchMode))
		}

		return nil
	case TriggerNewContact, TriggerTagAdded, TriggerTransactionEvent:
		return nil
	default:
		return errors.New("unknown trigger type: " + string(f.TriggerType))
	}
}

// ValidateDefinition checks a flow and its graph elements against their
// struct constraints. Repositories run it before persisting so malformed
// definitions never reach the dispatcher.
func ValidateDefinition(flow *Flow, nodes []*Node, edges []*Edge) error {
	if err := validate.Struct(flow); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}

	for _, node := range nodes {
		if err := validate.Struct(node); err != nil {
			return fmt.Errorf("invalid node %s: %w", node.ID, err)
		}
	}

	for _, edge := range edges {
		if err := validate.Struct(edge); err != nil {
			return fmt.Errorf("invalid edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

// NormalizeTransactionStatus maps transport-specific statuses onto the
// configured filter vocabulary. COMPLETE and APPROVED are the same outcome
// reported by different billing providers.
func NormalizeTransactionStatus(status string) string {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	if normalized == "COMPLETE" {
		return "APPROVED"
	}

	return normalized
}
