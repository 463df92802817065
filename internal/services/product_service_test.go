package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/storage"
)

type stubImages struct {
	upload *storage.UploadURL
	err    error
}

func (s stubImages) PresignProductImage(context.Context, string, string) (*storage.UploadURL, error) {
	return s.upload, s.err
}

func newProductService(e *env, images services.ImageStorage) *services.ProductService {
	return services.NewProductService(e.products, e.categories, e.cache, time.Minute, images, zap.NewNop())
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestProductService_ListProducts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	electronics := e.category(t, "Electronics")
	clothing := e.category(t, "Clothing")
	laptop := e.product(t, electronics.ID, "Laptop", 134900, 5)
	e.product(t, clothing.ID, "T-Shirt", 3995, 40)
	svc := newProductService(e, nil)

	t.Run("min price", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, services.ProductQuery{MinPrice: price(4000)})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, laptop.ID, page.Items[0].ID)
		assert.Equal(t, 1, page.Pagination.TotalItems)
	})

	t.Run("category name with max price", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, services.ProductQuery{Category: "Clothing", MaxPrice: price(3000)})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 0, page.Pagination.TotalItems)
	})

	t.Run("category id", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, services.ProductQuery{Category: clothing.ID})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "T-Shirt", page.Items[0].Name)
	})

	t.Run("unknown category", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, services.ProductQuery{Category: "Garden"})
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})

	t.Run("limit is capped", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, services.ProductQuery{Limit: 500})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 1, page.Pagination.TotalPages)
	})
}

func TestProductService_Pagination(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Books")
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		e.product(t, c.ID, "Book "+name, 1000, 1)
	}
	svc := newProductService(e, nil)

	first, err := svc.ListProducts(ctx, services.ProductQuery{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.True(t, first.Pagination.HasNextPage)
	assert.False(t, first.Pagination.HasPrevPage)

	last, err := svc.ListProducts(ctx, services.ProductQuery{Page: 3, Limit: 3})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "Book G", last.Items[0].Name)
	assert.False(t, last.Pagination.HasNextPage)
	assert.True(t, last.Pagination.HasPrevPage)
	assert.Equal(t, 7, last.Pagination.TotalItems)
}

func TestProductService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Toys")
	svc := newProductService(e, nil)

	_, err := svc.CreateProduct(ctx, models.CreateProductData{Name: "Kite", Price: 1500, CategoryID: c.ID, Stock: 3})
	require.NoError(t, err)

	page, err := svc.ListProducts(ctx, services.ProductQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Positive(t, e.cache.Len())

	// A write made behind the service is not visible while cached.
	e.product(t, c.ID, "Yo-yo", 500, 10)
	page, err = svc.ListProducts(ctx, services.ProductQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = svc.CreateProduct(ctx, models.CreateProductData{Name: "Ball", Price: 700, CategoryID: c.ID, Stock: 8})
	require.NoError(t, err)
	page, err = svc.ListProducts(ctx, services.ProductQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestProductService_GetAndUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Kitchen")
	p := e.product(t, c.ID, "Kettle", 2500, 4)
	svc := newProductService(e, nil)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Price)

	newPrice := int64(2750)
	updated, err := svc.UpdateProduct(ctx, p.ID, models.ProductPatch{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, newPrice, updated.Price)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	got, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, newPrice, got.Price, "update must evict the cached product")

	_, err = svc.GetProduct(ctx, "missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	missing := "missing"
	_, err = svc.UpdateProduct(ctx, p.ID, models.ProductPatch{CategoryID: &missing})
	assert.EqualError(t, err, "Category not found")
}

func TestProductService_CreateConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Garden")
	svc := newProductService(e, nil)

	_, err := svc.CreateProduct(ctx, models.CreateProductData{Name: "Rake", Price: 900, CategoryID: "nope"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.CreateProduct(ctx, models.CreateProductData{Name: "Rake", Price: 900, CategoryID: c.ID})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, models.CreateProductData{Name: " rake ", Price: 900, CategoryID: c.ID})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	hose := e.product(t, c.ID, "Hose", 1200, 2)
	name := "RAKE"
	_, err = svc.UpdateProduct(ctx, hose.ID, models.ProductPatch{Name: &name})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestProductService_Delete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Tools")
	p := e.product(t, c.ID, "Hammer", 1800, 6)
	svc := newProductService(e, nil)

	_, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, p.ID))

	_, err = svc.GetProduct(ctx, p.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.True(t, apperror.Is(svc.DeleteProduct(ctx, p.ID), apperror.KindNotFound))
}

func TestProductService_Suggestions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	phones := e.category(t, "Phones")
	e.product(t, phones.ID, "Phone Case", 1500, 3)
	e.product(t, phones.ID, "Headphones", 5000, 3)
	e.product(t, phones.ID, "Charger", 2000, 3)
	svc := newProductService(e, nil)

	got, err := svc.Suggestions(ctx, "PHONE")
	require.NoError(t, err)
	assert.Equal(t, []string{"Phones", "Headphones", "Phone Case"}, got)

	got, err = svc.Suggestions(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductService_Search(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Audio")
	e.product(t, c.ID, "Speaker", 9000, 2)
	e.product(t, c.ID, "Cable", 500, 20)
	svc := newProductService(e, nil)

	page, err := svc.Search(ctx, "speak", services.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Speaker", page.Items[0].Name)
}

func TestProductService_ImageUploadURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.category(t, "Art")
	p := e.product(t, c.ID, "Canvas", 3000, 1)

	_, err := newProductService(e, nil).ImageUploadURL(ctx, p.ID, "image/png")
	assert.True(t, apperror.Is(err, apperror.KindUnavailable))

	want := &storage.UploadURL{UploadURL: "https://bucket/put", Key: "products/" + p.ID + "/1.png"}
	got, err := newProductService(e, stubImages{upload: want}).ImageUploadURL(ctx, p.ID, "image/png")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = newProductService(e, stubImages{err: storage.ErrUnsupportedContentType}).ImageUploadURL(ctx, p.ID, "text/plain")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "contentType", appErr.Details[0].Field)

	_, err = newProductService(e, stubImages{upload: want}).ImageUploadURL(ctx, "missing", "image/png")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
