// Package eventbus routes domain events between the messaging/CRM subsystems
// and the automation engine.
package eventbus

import (
	"context"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
)

type EventHandler func(ctx context.Context, event any) error

// EventBus publishes execution lifecycle events and consumes inbound contact
// events.
type EventBus interface {
	GenerateID() string

	// Publish writes an event to the topic matching its type; key is used for
	// partition affinity (tenant or contact ID).
	Publish(ctx context.Context, key string, event events.Event) error

	// Handle registers a handler for one inbound event type. Must be called
	// before Subscribe.
	Handle(eventType events.EventType, handler EventHandler) error

	// Subscribe starts consuming inbound contact events in the background.
	Subscribe(ctx context.Context) error

	Close() error
}
