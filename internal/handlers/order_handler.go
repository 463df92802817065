package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{service: service, validate: newValidator()}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	// Must precede /:id.
	orderRoutes.Get("/admin/all", middleware.RequireAdmin(), h.HandleListAllOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Put("/:id/status", middleware.RequireAdmin(), h.HandleUpdateOrderStatus)
	orderRoutes.Delete("/:id", middleware.RequireAdmin(), h.HandleDeleteOrder)
}

type OrderLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest places an order from the listed items, or from the
// cart when items is omitted.
type CreateOrderRequest struct {
	ShippingAddress addressDTO         `json:"shippingAddress"`
	Items           []OrderLineRequest `json:"items" validate:"omitempty,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type ListOrdersQuery struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status string `query:"status" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
}

func (q ListOrdersQuery) toService() services.OrderListQuery {
	return services.OrderListQuery{Page: q.Page, Limit: q.Limit, Status: models.OrderStatus(q.Status)}
}

func ordersData(page *models.Page[models.Order]) fiber.Map {
	return fiber.Map{"orders": toOrders(page.Items), "pagination": page.Pagination}
}

// HandleListOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	var query ListOrdersQuery
	if err := bindQuery(c, h.validate, &query); err != nil {
		return err
	}
	page, err := h.service.ListUserOrders(c.UserContext(), middleware.UserID(c), query.toService())
	if err != nil {
		return err
	}
	return ok(c, "", ordersData(page))
}

// HandleListAllOrders lists every order, optionally by status.
func (h *OrderHandler) HandleListAllOrders(c *fiber.Ctx) error {
	var query ListOrdersQuery
	if err := bindQuery(c, h.validate, &query); err != nil {
		return err
	}
	page, err := h.service.ListAllOrders(c.UserContext(), query.toService())
	if err != nil {
		return err
	}
	return ok(c, "", ordersData(page))
}

// HandleGetOrder retrieves a single order with its items.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"order": toOrderWithItems(order)})
}

// HandleCreateOrder creates a new order.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	lines := make([]services.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = services.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	order, err := h.service.PlaceOrder(c.UserContext(), services.PlaceOrderInput{
		UserID:          middleware.UserID(c),
		ShippingAddress: req.ShippingAddress.model(),
		Items:           lines,
	})
	if err != nil {
		return err
	}
	return created(c, "Order created successfully", fiber.Map{"order": toOrderWithItems(order)})
}

// HandleCancelOrder cancels a pending or processing order.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return err
	}
	return ok(c, "Order cancelled successfully", fiber.Map{"order": toOrder(*order)})
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateOrderStatusRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), models.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return ok(c, "Order status updated successfully", fiber.Map{"order": toOrder(*order)})
}

// HandleDeleteOrder removes an order and its items.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	if err := h.service.DeleteOrder(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return ok(c, "Order deleted successfully", nil)
}
