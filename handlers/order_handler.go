package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"tickethub/services"
)

type OrderHandler struct {
	app          *pocketbase.PocketBase
	orderService *services.OrderService
}

func NewOrderHandler(app *pocketbase.PocketBase, orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		app:          app,
		orderService: orderService,
	}
}

// PlaceOrder - Purchase tickets for an event tier
func (h *OrderHandler) PlaceOrder(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req services.PlaceOrderRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	req.BuyerID = e.Auth.Id

	order, tickets, err := h.orderService.PlaceOrder(e.Request.Context(), req)
	if err != nil {
		return orderError(err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"order":   order,
		"tickets": tickets,
	})
}

// ListOrders - Get the authenticated buyer's orders
func (h *OrderHandler) ListOrders(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	orders, err := h.orderService.ListOrders(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to list orders", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"orders": orders})
}

// CancelOrder - Cancel a pending unpaid order and free its inventory
func (h *OrderHandler) CancelOrder(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	orderID := e.Request.PathValue("orderId")
	if err := h.orderService.CancelOrder(e.Request.Context(), e.Auth.Id, orderID); err != nil {
		return orderError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "cancelled"})
}

// orderError maps service errors onto API responses. Internal detail never
// reaches the buyer.
func orderError(err error) error {
	switch {
	case errors.Is(err, services.ErrEventNotAvailable):
		return apis.NewNotFoundError("Event not available", err)
	case errors.Is(err, services.ErrTierNotFound):
		return apis.NewNotFoundError("Ticket tier not found", err)
	case errors.Is(err, services.ErrOrderNotFound):
		return apis.NewNotFoundError("Order not found", err)
	case errors.Is(err, services.ErrQuantityExceedsLimit),
		errors.Is(err, services.ErrAttendeeCountMismatch),
		errors.Is(err, services.ErrOrderNotCancellable):
		return apis.NewBadRequestError(err.Error(), err)
	case errors.Is(err, services.ErrInsufficientInventory):
		return apis.NewBadRequestError("Not enough tickets remaining", err)
	case errors.Is(err, services.ErrTierClosed):
		return apis.NewBadRequestError("Ticket sales are closed for this tier", err)
	case errors.Is(err, services.ErrStorageConflict):
		return apis.NewApiError(http.StatusServiceUnavailable,
			"Could not complete your order, please try again", nil)
	default:
		return apis.NewApiError(http.StatusInternalServerError,
			"Something went wrong", nil)
	}
}
