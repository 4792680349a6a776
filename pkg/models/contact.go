package models

import (
	"encoding/json"
	"strings"
)

// Contact is an immutable snapshot of a CRM contact, passed explicitly into
// each interpreter invocation so a multi-node step never sees inconsistent
// reads. The engine never mutates it; tag and stage changes go through the
// contact store adapter.
type Contact struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenant_id"`
	Name            string   `json:"name,omitempty"`
	FirstName       string   `json:"first_name,omitempty"`
	LastName        string   `json:"last_name,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Email           string   `json:"email,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	PipelineStageID string   `json:"pipeline_stage_id,omitempty"`
	RecoveryStageID string   `json:"recovery_stage_id,omitempty"`
	TotalPurchases  int      `json:"total_purchases"`
	TotalSpent      float64  `json:"total_spent"`
	FirstSource     string   `json:"first_source,omitempty"`
	FirstCampaign   string   `json:"first_campaign,omitempty"`
}

// GivenName returns the explicit first name, falling back to the first word
// of the full name.
func (c *Contact) GivenName() string {
	if c.FirstName != "" {
		return c.FirstName
	}

	name, _, _ := strings.Cut(strings.TrimSpace(c.Name), " ")

	return name
}

// FamilyName returns the explicit last name, falling back to everything after
// the first word of the full name.
func (c *Contact) FamilyName() string {
	if c.LastName != "" {
		return c.LastName
	}

	_, rest, _ := strings.Cut(strings.TrimSpace(c.Name), " ")

	return rest
}

// Snapshot returns the contact as a nested document for dot-path field lookup
// by the condition evaluator.
func (c *Contact) Snapshot() map[string]any {
	raw, err := json.Marshal(c)
	if err != nil {
		return map[string]any{}
	}

	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{}
	}

	return doc
}
