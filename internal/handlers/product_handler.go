package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service, validate: newValidator()}
}

// RegisterRoutes registers the product routes. Reads are public; writes
// require an admin token.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)

	admin := []fiber.Handler{auth, middleware.RequireAdmin()}
	productRoutes.Post("/", append(admin, h.HandleCreateProduct)...)
	productRoutes.Put("/:id", append(admin, h.HandleUpdateProduct)...)
	productRoutes.Delete("/:id", append(admin, h.HandleDeleteProduct)...)
	productRoutes.Post("/:id/image-upload-url", append(admin, h.HandleImageUploadURL)...)
}

// ListProductsQuery is shared by product listing and search.
type ListProductsQuery struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Category string `query:"category" validate:"omitempty,max=100"`
	MinPrice string `query:"minPrice"`
	MaxPrice string `query:"maxPrice"`
	Search   string `query:"search" validate:"omitempty,max=100"`
}

func (q ListProductsQuery) toService() (services.ProductQuery, error) {
	minPrice, err := parsePrice("minPrice", q.MinPrice)
	if err != nil {
		return services.ProductQuery{}, err
	}
	maxPrice, err := parsePrice("maxPrice", q.MaxPrice)
	if err != nil {
		return services.ProductQuery{}, err
	}
	return services.ProductQuery{
		Page:     q.Page,
		Limit:    q.Limit,
		Category: q.Category,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Search:   q.Search,
	}, nil
}

type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Price       *int64 `json:"price" validate:"required,gte=0"`
	CategoryID  string `json:"categoryId" validate:"required"`
	Stock       int    `json:"stock" validate:"gte=0"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	CategoryID  *string `json:"categoryId" validate:"omitempty,min=1"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}

type ImageUploadRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

func pageData(page *models.Page[models.Product]) fiber.Map {
	return fiber.Map{"items": toProducts(page.Items), "pagination": page.Pagination}
}

// HandleListProducts retrieves one filtered page of products.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	var query ListProductsQuery
	if err := bindQuery(c, h.validate, &query); err != nil {
		return err
	}
	q, err := query.toService()
	if err != nil {
		return err
	}
	page, err := h.service.ListProducts(c.UserContext(), q)
	if err != nil {
		return err
	}
	return ok(c, "", pageData(page))
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"product": toProduct(*product)})
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	product, err := h.service.CreateProduct(c.UserContext(), models.CreateProductData{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return err
	}
	return created(c, "Product created successfully", fiber.Map{"product": toProduct(*product)})
}

// HandleUpdateProduct applies a partial update.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req UpdateProductRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), models.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return err
	}
	return ok(c, "Product updated successfully", fiber.Map{"product": toProduct(*product)})
}

// HandleDeleteProduct deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return ok(c, "Product deleted successfully", nil)
}

// HandleImageUploadURL issues a presigned upload for the product image.
func (h *ProductHandler) HandleImageUploadURL(c *fiber.Ctx) error {
	var req ImageUploadRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	upload, err := h.service.ImageUploadURL(c.UserContext(), c.Params("id"), req.ContentType)
	if err != nil {
		return err
	}
	return ok(c, "Upload URL created", upload)
}
