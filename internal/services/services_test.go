package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/store"
)

// env wires real repositories over the in-memory store.
type env struct {
	users      repositories.UserRepository
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	carts      repositories.CartRepository
	orders     repositories.OrderRepository
	cache      *cache.MemoryCache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tables, err := repositories.OpenTables(store.NewMemoryBackend(zap.NewNop()), config.TableNames{
		Users:      "users",
		Categories: "categories",
		Products:   "products",
		CartItems:  "cart-items",
		Orders:     "orders",
		OrderItems: "order-items",
	})
	require.NoError(t, err)
	cost := repositories.WithBcryptCost(bcrypt.MinCost)
	return &env{
		users:      repositories.NewUserRepository(tables.Users, cost),
		categories: repositories.NewCategoryRepository(tables.Categories),
		products:   repositories.NewProductRepository(tables.Products),
		carts:      repositories.NewCartRepository(tables.CartItems),
		orders:     repositories.NewOrderRepository(tables.Orders, tables.OrderItems),
		cache:      cache.NewMemoryCache(),
	}
}

func (e *env) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := e.categories.Create(context.Background(), models.CreateCategoryData{Name: name})
	require.NoError(t, err)
	return c
}

func (e *env) product(t *testing.T, categoryID, name string, price int64, stock int) *models.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), models.CreateProductData{
		Name:       name,
		Price:      price,
		CategoryID: categoryID,
		Stock:      stock,
	})
	require.NoError(t, err)
	return p
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, data models.CreateUserData) (*models.User, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, password string) error {
	return m.Called(ctx, id, password).Error(0)
}

func (m *MockUserRepository) VerifyPassword(user *models.User, password string) bool {
	return m.Called(user, password).Bool(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) bool {
	return m.Called(ctx, id).Bool(0)
}

// MockPublisher records published order events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	return m.Called(ctx, routingKey, body).Error(0)
}
