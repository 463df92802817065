package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
)

// SearchHandler serves catalog search, suggestions and the category list.
type SearchHandler struct {
	products   *services.ProductService
	categories *services.CategoryService
	validate   *validator.Validate
}

func NewSearchHandler(products *services.ProductService, categories *services.CategoryService) *SearchHandler {
	return &SearchHandler{products: products, categories: categories, validate: newValidator()}
}

func (h *SearchHandler) RegisterRoutes(router fiber.Router) {
	searchRoutes := router.Group("/search")
	searchRoutes.Get("/", h.HandleSearch)
	searchRoutes.Get("/suggestions", h.HandleSuggestions)
	searchRoutes.Get("/categories", h.HandleCategories)
}

type SearchQuery struct {
	Q        string `query:"q" validate:"omitempty,max=100"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Category string `query:"category" validate:"omitempty,max=100"`
	MinPrice string `query:"minPrice"`
	MaxPrice string `query:"maxPrice"`
}

type SuggestionsQuery struct {
	Q string `query:"q" validate:"required,min=1,max=50"`
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var query SearchQuery
	if err := bindQuery(c, h.validate, &query); err != nil {
		return err
	}
	q, err := ListProductsQuery{
		Page:     query.Page,
		Limit:    query.Limit,
		Category: query.Category,
		MinPrice: query.MinPrice,
		MaxPrice: query.MaxPrice,
	}.toService()
	if err != nil {
		return err
	}
	page, err := h.products.Search(c.UserContext(), query.Q, q)
	if err != nil {
		return err
	}
	return ok(c, "", pageData(page))
}

func (h *SearchHandler) HandleSuggestions(c *fiber.Ctx) error {
	var query SuggestionsQuery
	if err := bindQuery(c, h.validate, &query); err != nil {
		return err
	}
	suggestions, err := h.products.Suggestions(c.UserContext(), query.Q)
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"suggestions": suggestions})
}

func (h *SearchHandler) HandleCategories(c *fiber.Ctx) error {
	categories, err := h.categories.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"categories": toCategories(categories)})
}
