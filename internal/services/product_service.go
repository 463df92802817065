package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/cache"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/storage"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxSuggestions  = 10
)

// ImageStorage issues upload URLs for product images.
type ImageStorage interface {
	PresignProductImage(ctx context.Context, productID, contentType string) (*storage.UploadURL, error)
}

// ProductQuery is a catalog listing or search request. Category may be a
// category id or a category name.
type ProductQuery struct {
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Category string           `json:"category,omitempty"`
	MinPrice *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice *decimal.Decimal `json:"maxPrice,omitempty"`
	Search   string           `json:"search,omitempty"`
}

func (q *ProductQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	q.Limit = min(q.Limit, MaxPageSize)
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
}

// ProductService handles business logic related to products.
type ProductService struct {
	productRepo  repositories.ProductRepository
	categoryRepo repositories.CategoryRepository
	images       ImageStorage
	cache        catalogCache
	log          *zap.Logger
}

// NewProductService creates a new ProductService. images may be nil when no
// bucket is configured.
func NewProductService(
	productRepo repositories.ProductRepository,
	categoryRepo repositories.CategoryRepository,
	c cache.Cache,
	ttl time.Duration,
	images ImageStorage,
	log *zap.Logger,
) *ProductService {
	log = log.Named("services.product")
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		images:       images,
		cache:        newCatalogCache(c, ttl, log),
		log:          log,
	}
}

// ListProducts filters, then paginates over the full filtered count. An
// unknown category matches nothing.
func (s *ProductService) ListProducts(ctx context.Context, q ProductQuery) (*models.Page[models.Product], error) {
	q.normalize()
	key := listKey(q)

	var page models.Page[models.Product]
	if s.cache.get(ctx, key, &page) {
		return &page, nil
	}

	filter := models.ProductFilter{MinPrice: q.MinPrice, MaxPrice: q.MaxPrice, Search: q.Search}
	if q.Category != "" {
		category, err := s.resolveCategory(ctx, q.Category)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return &models.Page[models.Product]{
				Items:      []models.Product{},
				Pagination: models.NewPagination(0, q.Page, q.Limit),
			}, nil
		}
		filter.CategoryID = category.ID
	}

	items, total, err := s.productRepo.FindAll(ctx, filter, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Product{}
	}
	page = models.Page[models.Product]{Items: items, Pagination: models.NewPagination(total, q.Page, q.Limit)}
	s.cache.set(ctx, key, page)
	return &page, nil
}

// Search is ListProducts with the query text as the search term.
func (s *ProductService) Search(ctx context.Context, text string, q ProductQuery) (*models.Page[models.Product], error) {
	q.Search = text
	page, err := s.ListProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("Search performed",
		zap.String("query", text),
		zap.String("category", q.Category),
		zap.Int("results", page.Pagination.TotalItems),
	)
	return page, nil
}

// Suggestions returns category names, then product names, containing text.
func (s *ProductService) Suggestions(ctx context.Context, text string) ([]string, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	suggestions := []string{}
	if text == "" {
		return suggestions, nil
	}
	seen := map[string]bool{}
	add := func(name string) {
		if len(suggestions) < maxSuggestions && !seen[name] && strings.Contains(strings.ToLower(name), text) {
			seen[name] = true
			suggestions = append(suggestions, name)
		}
	}

	categories, err := s.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		add(c.Name)
	}

	products, _, err := s.productRepo.FindAll(ctx, models.ProductFilter{Search: text}, 0, 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name)
	}
	return suggestions, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if s.cache.get(ctx, productKey(id), &product) {
		return &product, nil
	}
	found, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperror.NotFound("Product not found")
	}
	s.cache.set(ctx, productKey(id), found)
	return found, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, data models.CreateProductData) (*models.Product, error) {
	category, err := s.categoryRepo.FindByID(ctx, data.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperror.NotFound("Category not found")
	}
	data.Name = strings.TrimSpace(data.Name)
	if err := s.ensureNameFree(ctx, data.Name, ""); err != nil {
		return nil, err
	}

	product, err := s.productRepo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.cache.invalidateProducts(ctx)
	s.log.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.NotFound("Product not found")
	}
	if patch.CategoryID != nil {
		category, err := s.categoryRepo.FindByID(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, apperror.NotFound("Category not found")
		}
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
	}

	product, err := s.productRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.cache.invalidateProducts(ctx, id)
	s.log.Info("Product updated", zap.String("product_id", id))
	return product, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperror.NotFound("Product not found")
	}
	if !s.productRepo.Delete(ctx, id) {
		return apperror.Internal("Failed to delete product", nil)
	}
	s.cache.invalidateProducts(ctx, id)
	s.log.Info("Product deleted", zap.String("product_id", id), zap.String("name", existing.Name))
	return nil
}

// ImageUploadURL presigns an upload for a product image.
func (s *ProductService) ImageUploadURL(ctx context.Context, productID, contentType string) (*storage.UploadURL, error) {
	if s.images == nil {
		return nil, apperror.Unavailable("Image storage is not configured")
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	upload, err := s.images.PresignProductImage(ctx, productID, contentType)
	if errors.Is(err, storage.ErrUnsupportedContentType) {
		return nil, apperror.Validation("Unsupported image content type",
			apperror.FieldError{Field: "contentType", Message: "must be one of image/jpeg, image/png, image/webp, image/gif"})
	}
	if err != nil {
		return nil, err
	}
	return upload, nil
}

func (s *ProductService) resolveCategory(ctx context.Context, ref string) (*models.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, ref)
	if err != nil || category != nil {
		return category, err
	}
	return s.categoryRepo.FindByName(ctx, ref)
}

func (s *ProductService) ensureNameFree(ctx context.Context, name, selfID string) error {
	search := models.ProductFilter{Search: name}
	matches, _, err := s.productRepo.FindAll(ctx, search, 0, 0)
	if err != nil {
		return err
	}
	for _, p := range matches {
		if p.ID != selfID && strings.EqualFold(p.Name, name) {
			return apperror.Conflict("Product with this name already exists")
		}
	}
	return nil
}
