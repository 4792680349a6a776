// Package main provides the automation engine service: it consumes inbound
// contact events, routes them through the menu router and trigger dispatcher,
// and serves the HTTP intake API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/engine"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/eventbus"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/web"
)

type Service struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	dispatcher  *engine.Dispatcher
	menuRouter  *engine.MenuRouter
	sweeper     *engine.Sweeper
	validate    *validator.Validate
}

func NewService(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	dispatcher *engine.Dispatcher,
	menuRouter *engine.MenuRouter,
	sweeper *engine.Sweeper,
) *Service {
	return &Service{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		dispatcher:  dispatcher,
		menuRouter:  menuRouter,
		sweeper:     sweeper,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SubscribeEvents registers the inbound event handlers and starts consuming.
// Messages go through the menu router before falling through to the trigger
// dispatcher; the other event types dispatch directly.
func (s *Service) SubscribeEvents(ctx context.Context) error {
	if s.eventBus == nil {
		s.logger.Warn("No event bus configured, running with HTTP intake only")

		return nil
	}

	handlers := map[events.EventType]eventbus.EventHandler{
		events.ContactMessageReceivedEvent: func(ctx context.Context, payload any) error {
			event, ok := payload.(*events.ContactMessageReceived)
			if !ok {
				return events.ErrInvalidEventData
			}

			handled, err := s.menuRouter.Route(ctx, event)
			if err != nil {
				return err
			}

			if handled {
				return nil
			}

			_, err = s.dispatcher.DispatchMessage(ctx, event)

			return err
		},
		events.ContactCreatedEvent: func(ctx context.Context, payload any) error {
			event, ok := payload.(*events.ContactCreated)
			if !ok {
				return events.ErrInvalidEventData
			}

			_, err := s.dispatcher.DispatchContactCreated(ctx, event)

			return err
		},
		events.ContactTagAddedEvent: func(ctx context.Context, payload any) error {
			event, ok := payload.(*events.ContactTagAdded)
			if !ok {
				return events.ErrInvalidEventData
			}

			_, err := s.dispatcher.DispatchTagAdded(ctx, event)

			return err
		},
		events.TransactionUpdatedEvent: func(ctx context.Context, payload any) error {
			event, ok := payload.(*events.TransactionUpdated)
			if !ok {
				return events.ErrInvalidEventData
			}

			_, err := s.dispatcher.DispatchTransaction(ctx, event)

			return err
		},
	}

	for eventType, handler := range handlers {
		if err := s.eventBus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return s.eventBus.Subscribe(ctx)
}

func (s *Service) App() *fiber.App {
	handlers := web.NewAPIHandlers(s.dispatcher, s.menuRouter, s.sweeper, s.persistence, s.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	v1 := app.Group("/v1")
	v1.Post("/events/message", handlers.ReceiveMessage)
	v1.Post("/events/contact-created", handlers.ReceiveContactCreated)
	v1.Post("/events/tag-added", handlers.ReceiveTagAdded)
	v1.Post("/events/transaction", handlers.ReceiveTransaction)
	v1.Post("/sweep", handlers.Sweep)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (s *Service) Start(ctx context.Context, port int) error {
	if err := s.SubscribeEvents(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	return s.App().Listen(":" + strconv.Itoa(port))
}
