// Package events defines the inbound domain events consumed by the engine and
// the execution lifecycle events it publishes.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const ContactTopic = "automation.contact.events"    // Inbound contact/billing events
const ExecutionTopic = "automation.execution.events" // Outbound execution lifecycle events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound domain events.
	ContactMessageReceivedEvent EventType = "contact.message.received"
	ContactCreatedEvent         EventType = "contact.created"
	ContactTagAddedEvent        EventType = "contact.tag.added"
	TransactionUpdatedEvent     EventType = "transaction.updated"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

var ErrInvalidEventData = errors.New("invalid event data")

// Event is anything routable by the event bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
	}
}

// ContactMessageReceived is an inbound message from a contact. It is offered
// to the menu reply router first and falls through to the trigger dispatcher.
type ContactMessageReceived struct {
	BaseEvent

	ContactID      string `json:"contact_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

func (e ContactMessageReceived) GetType() EventType {
	return ContactMessageReceivedEvent
}

func (e ContactMessageReceived) Validate() error {
	if e.TenantID == "" || e.ContactID == "" {
		return ErrInvalidEventData
	}

	return nil
}

// ContactCreated fires when the CRM registers a new contact.
type ContactCreated struct {
	BaseEvent

	ContactID string `json:"contact_id"`
}

func (e ContactCreated) GetType() EventType {
	return ContactCreatedEvent
}

func (e ContactCreated) Validate() error {
	if e.TenantID == "" || e.ContactID == "" {
		return ErrInvalidEventData
	}

	return nil
}

// ContactTagAdded fires when a tag lands on a contact. Contextual tags carry
// event data in the form "evento:Produto|Oferta".
type ContactTagAdded struct {
	BaseEvent

	ContactID string `json:"contact_id"`
	Tag       string `json:"tag"`
}

func (e ContactTagAdded) GetType() EventType {
	return ContactTagAddedEvent
}

func (e ContactTagAdded) Validate() error {
	if e.TenantID == "" || e.ContactID == "" || e.Tag == "" {
		return ErrInvalidEventData
	}

	return nil
}

// TransactionUpdated fires when the billing subsystem reports a transaction
// status change.
type TransactionUpdated struct {
	BaseEvent

	ContactID     string  `json:"contact_id"`
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Product       string  `json:"product,omitempty"`
	Offer         string  `json:"offer,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

func (e TransactionUpdated) GetType() EventType {
	return TransactionUpdatedEvent
}

func (e TransactionUpdated) Validate() error {
	if e.TenantID == "" || e.ContactID == "" {
		return ErrInvalidEventData
	}

	return nil
}

// Execution lifecycle events published for operators.

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string     `json:"execution_id"`
	FlowID      string     `json:"flow_id"`
	NodeID      string     `json:"node_id"`
	Status      string     `json:"status"`
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	NodeID      string `json:"node_id"`
	Reason      string `json:"reason"` // "timer" or "menu_reply"
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
