package repositories

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
)

// ProductRepository defines the interface for product data operations
type ProductRepository interface {
	Create(ctx context.Context, data models.CreateProductData) (*models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
	FindAll(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]models.Product, int, error)
	FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error)
	Delete(ctx context.Context, id string) bool
}

type storeProductRepository struct {
	table store.Table
	clock *clock
	log   *zap.Logger
}

// NewProductRepository creates a product repository over the products table.
func NewProductRepository(table store.Table, opts ...Option) ProductRepository {
	o := buildOptions("product", opts)
	return &storeProductRepository{table: table, clock: newClock(o.now), log: o.log}
}

func (r *storeProductRepository) Create(ctx context.Context, data models.CreateProductData) (*models.Product, error) {
	now := r.clock.Now()
	product := &models.Product{
		ID:          models.NewID(),
		Name:        data.Name,
		Description: data.Description,
		Price:       data.Price,
		CategoryID:  data.CategoryID,
		Stock:       data.Stock,
		ImageURL:    data.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.table.Put(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (r *storeProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	found, err := r.table.Get(ctx, store.Key{Partition: id}, &product)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &product, nil
}

// FindByIDs resolves many products at once. Missing ids are absent from the map.
func (r *storeProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	if len(ids) == 0 {
		return map[string]models.Product{}, nil
	}
	keys := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, store.Key{Partition: id})
	}
	var products []models.Product
	if err := r.table.BatchGet(ctx, keys, &products); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// FindAll scans the table, applies the filter, then offset and limit.
// The second return value is the filtered count before slicing.
// A limit of zero or less returns every match after offset.
func (r *storeProductRepository) FindAll(ctx context.Context, filter models.ProductFilter, limit, offset int) ([]models.Product, int, error) {
	var products []models.Product
	if filter.CategoryID != "" {
		if err := r.table.Query(ctx, store.Query{Index: "category-index", Value: filter.CategoryID}, &products); err != nil {
			return nil, 0, fmt.Errorf("failed to query products: %w", err)
		}
	} else if err := r.table.Scan(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to scan products: %w", err)
	}

	matched := products[:0]
	for i := range products {
		if filter.Match(&products[i]) {
			matched = append(matched, products[i])
		}
	}
	sortByCreation(matched)

	total := len(matched)
	offset = max(offset, 0)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 {
		end = min(offset+limit, total)
	}
	return matched[offset:end], total, nil
}

func (r *storeProductRepository) FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	var products []models.Product
	if err := r.table.Query(ctx, store.Query{Index: "category-index", Value: categoryID}, &products); err != nil {
		return nil, fmt.Errorf("failed to get products by category: %w", err)
	}
	sortByCreation(products)
	return products, nil
}

func (r *storeProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	var set []store.Assignment
	if patch.Name != nil {
		set = append(set, store.Set("name", *patch.Name))
	}
	if patch.Description != nil {
		set = append(set, store.Set("description", *patch.Description))
	}
	if patch.Price != nil {
		set = append(set, store.Set("price", *patch.Price))
	}
	if patch.CategoryID != nil {
		set = append(set, store.Set("category_id", *patch.CategoryID))
	}
	if patch.Stock != nil {
		set = append(set, store.Set("stock", *patch.Stock))
	}
	if patch.ImageURL != nil {
		set = append(set, store.Set("image_url", *patch.ImageURL))
	}
	return r.apply(ctx, id, set)
}

func (r *storeProductRepository) UpdateStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	return r.apply(ctx, id, []store.Assignment{store.Set("stock", stock)})
}

func (r *storeProductRepository) apply(ctx context.Context, id string, set []store.Assignment) (*models.Product, error) {
	set = append(set, store.Set("updated_at", r.clock.Now()))
	var product models.Product
	if err := r.table.Update(ctx, store.Key{Partition: id}, set, &product); err != nil {
		return nil, notFound(err, "Product not found")
	}
	return &product, nil
}

func (r *storeProductRepository) Delete(ctx context.Context, id string) bool {
	if err := r.table.Delete(ctx, store.Key{Partition: id}); err != nil {
		r.log.Error("failed to delete product", zap.String("product_id", id), zap.Error(err))
		return false
	}
	return true
}

// sortByCreation orders products oldest first; ids are time-ordered and
// break ties.
func sortByCreation(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
}
