// Package web provides the HTTP intake endpoints: inbound event ingestion,
// an on-demand sweep trigger and a health check.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/engine"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/events"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/persistence"
)

type APIHandlers struct {
	dispatcher  *engine.Dispatcher
	menuRouter  *engine.MenuRouter
	sweeper     *engine.Sweeper
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	dispatcher *engine.Dispatcher,
	menuRouter *engine.MenuRouter,
	sweeper *engine.Sweeper,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		dispatcher:  dispatcher,
		menuRouter:  menuRouter,
		sweeper:     sweeper,
		persistence: persistence,
		validator:   validator,
	}
}

// ReceiveMessage ingests an inbound contact message. The menu reply router
// gets first refusal; unmatched messages fall through to keyword triggers.
func (h *APIHandlers) ReceiveMessage(c fiber.Ctx) error {
	var req MessageEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &events.ContactMessageReceived{
		BaseEvent:      events.NewBaseEvent(events.ContactMessageReceivedEvent, req.TenantID),
		ContactID:      req.ContactID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	}

	handled, err := h.menuRouter.Route(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	if handled {
		return c.JSON(fiber.Map{"handled_by": "menu_router", "executions_started": 0})
	}

	started, err := h.dispatcher.DispatchMessage(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"handled_by": "dispatcher", "executions_started": started})
}

func (h *APIHandlers) ReceiveContactCreated(c fiber.Ctx) error {
	var req ContactCreatedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &events.ContactCreated{
		BaseEvent: events.NewBaseEvent(events.ContactCreatedEvent, req.TenantID),
		ContactID: req.ContactID,
	}

	started, err := h.dispatcher.DispatchContactCreated(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions_started": started})
}

func (h *APIHandlers) ReceiveTagAdded(c fiber.Ctx) error {
	var req TagAddedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &events.ContactTagAdded{
		BaseEvent: events.NewBaseEvent(events.ContactTagAddedEvent, req.TenantID),
		ContactID: req.ContactID,
		Tag:       req.Tag,
	}

	started, err := h.dispatcher.DispatchTagAdded(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions_started": started})
}

func (h *APIHandlers) ReceiveTransaction(c fiber.Ctx) error {
	var req TransactionEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &events.TransactionUpdated{
		BaseEvent:     events.NewBaseEvent(events.TransactionUpdatedEvent, req.TenantID),
		ContactID:     req.ContactID,
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Product:       req.Product,
		Offer:         req.Offer,
		Amount:        req.Amount,
	}

	started, err := h.dispatcher.DispatchTransaction(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions_started": started})
}

// Sweep resumes every due suspended execution. The scheduler calls this on a
// cadence; operators can hit it manually after downtime.
func (h *APIHandlers) Sweep(c fiber.Ctx) error {
	resumed, err := h.sweeper.Sweep(c.Context(), time.Now().UTC())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"resumed": resumed})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
