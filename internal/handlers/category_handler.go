package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

type CategoryHandler struct {
	service  *services.CategoryService
	validate *validator.Validate
}

func NewCategoryHandler(service *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service, validate: newValidator()}
}

func (h *CategoryHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	categoryRoutes := router.Group("/categories")
	categoryRoutes.Get("/", h.HandleListCategories)
	categoryRoutes.Get("/:id", h.HandleGetCategory)
	categoryRoutes.Get("/:id/products", h.HandleCategoryProducts)

	admin := []fiber.Handler{auth, middleware.RequireAdmin()}
	categoryRoutes.Post("/", append(admin, h.HandleCreateCategory)...)
	categoryRoutes.Put("/:id", append(admin, h.HandleUpdateCategory)...)
	categoryRoutes.Delete("/:id", append(admin, h.HandleDeleteCategory)...)
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"max=500"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=50"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (h *CategoryHandler) HandleListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"categories": toCategories(categories)})
}

func (h *CategoryHandler) HandleGetCategory(c *fiber.Ctx) error {
	category, err := h.service.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"category": toCategory(*category)})
}

func (h *CategoryHandler) HandleCategoryProducts(c *fiber.Ctx) error {
	products, err := h.service.ProductsInCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"products": toProducts(products)})
}

func (h *CategoryHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	category, err := h.service.CreateCategory(c.UserContext(), models.CreateCategoryData{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return created(c, "Category created successfully", fiber.Map{"category": toCategory(*category)})
}

func (h *CategoryHandler) HandleUpdateCategory(c *fiber.Ctx) error {
	var req UpdateCategoryRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	category, err := h.service.UpdateCategory(c.UserContext(), c.Params("id"), models.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return ok(c, "Category updated successfully", fiber.Map{"category": toCategory(*category)})
}

func (h *CategoryHandler) HandleDeleteCategory(c *fiber.Ctx) error {
	if err := h.service.DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return ok(c, "Category deleted successfully", nil)
}
