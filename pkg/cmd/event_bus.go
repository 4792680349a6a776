package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/channels/gochannel"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/channels/kafka"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider.
func NewEventBus(provider, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "memory":
		pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(logger))

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
