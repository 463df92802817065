package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// CartHandler serves the authenticated user's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service, validate: newValidator()}
}

func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cartRoutes := router.Group("/cart", auth)
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/", h.HandleAddItem)
	// Must precede /:productId.
	cartRoutes.Delete("/clear", h.HandleClear)
	cartRoutes.Put("/:productId", h.HandleUpdateItem)
	cartRoutes.Delete("/:productId", h.HandleRemoveItem)
}

type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, "", toCart(cart))
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	item, err := h.service.AddItem(c.UserContext(), middleware.UserID(c), req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return ok(c, "Item added to cart successfully", fiber.Map{
		"productId": item.ProductID,
		"quantity":  item.Quantity,
	})
}

func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateCartItemRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	item, err := h.service.UpdateItem(c.UserContext(), middleware.UserID(c), c.Params("productId"), req.Quantity)
	if err != nil {
		return err
	}
	return ok(c, "Cart item updated successfully", fiber.Map{
		"productId": item.ProductID,
		"quantity":  item.Quantity,
	})
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.service.RemoveItem(c.UserContext(), middleware.UserID(c), c.Params("productId")); err != nil {
		return err
	}
	return ok(c, "Item removed from cart successfully", nil)
}

func (h *CartHandler) HandleClear(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), middleware.UserID(c)); err != nil {
		return err
	}
	return ok(c, "Cart cleared successfully", nil)
}
