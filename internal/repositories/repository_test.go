package repositories

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/store"
)

func newTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := OpenTables(store.NewMemoryBackend(zap.NewNop()), config.TableNames{
		Users:      "users",
		Categories: "categories",
		Products:   "products",
		CartItems:  "cart-items",
		Orders:     "orders",
		OrderItems: "order-items",
	})
	require.NoError(t, err)
	return tables
}

// frozen returns a clock that never advances.
func frozen() func() time.Time {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return at }
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	c := newClock(frozen())
	a, b := c.Now(), c.Now()
	assert.True(t, b.After(a))
}

func TestUserRepository_CreateAndFindByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTables(t).Users, WithBcryptCost(bcrypt.MinCost))

	created, err := repo.Create(ctx, models.CreateUserData{
		Email:    "Jane@Example.COM",
		Password: "s3cret-pass",
		Name:     "Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NotEqual(t, "s3cret-pass", created.PasswordHash)

	found, err := repo.FindByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	raw, err := json.Marshal(found.Safe())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), found.PasswordHash)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_Passwords(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTables(t).Users, WithBcryptCost(bcrypt.MinCost))

	user, err := repo.Create(ctx, models.CreateUserData{Email: "a@b.co", Password: "first-pass", Name: "A"})
	require.NoError(t, err)
	assert.True(t, repo.VerifyPassword(user, "first-pass"))
	assert.False(t, repo.VerifyPassword(user, "wrong"))
	assert.False(t, repo.VerifyPassword(nil, "first-pass"))

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "second-pass"))
	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, repo.VerifyPassword(reloaded, "second-pass"))
	assert.False(t, repo.VerifyPassword(reloaded, "first-pass"))

	err = repo.UpdatePassword(ctx, "missing", "x-pass")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTables(t).Users, WithBcryptCost(bcrypt.MinCost))

	user, err := repo.Create(ctx, models.CreateUserData{Email: "a@b.co", Password: "pass-word", Name: "A"})
	require.NoError(t, err)

	name, email := "Alice", "ALICE@b.co"
	updated, err := repo.Update(ctx, user.ID, models.UserPatch{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Name)
	assert.Equal(t, "alice@b.co", updated.Email)
	assert.Equal(t, user.PasswordHash, updated.PasswordHash)
	assert.True(t, updated.UpdatedAt.After(user.UpdatedAt))

	_, err = repo.Update(ctx, "missing", models.UserPatch{Name: &name})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	assert.True(t, repo.Delete(ctx, user.ID))
	gone, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.True(t, repo.Delete(ctx, user.ID), "deleting twice is not an error")
}

func TestCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(newTables(t).Categories)

	books, err := repo.Create(ctx, models.CreateCategoryData{Name: "Books", Description: "Reading"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.CreateCategoryData{Name: "apparel"})
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "apparel", all[0].Name)

	byName, err := repo.FindByName(ctx, "  bOOks ")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, books.ID, byName.ID)

	desc := "Paper and ebooks"
	updated, err := repo.Update(ctx, books.ID, models.CategoryPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Books", updated.Name)
	assert.Equal(t, desc, updated.Description)

	assert.True(t, repo.Delete(ctx, books.ID))
	gone, err := repo.FindByID(ctx, books.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProductRepository_UpdateMovesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTables(t).Products, WithClock(frozen()))

	p, err := repo.Create(ctx, models.CreateProductData{Name: "Lamp", Price: 2500, CategoryID: "c1", Stock: 3})
	require.NoError(t, err)

	price := int64(1999)
	updated, err := repo.Update(ctx, p.ID, models.ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(1999), updated.Price)
	assert.Equal(t, "Lamp", updated.Name)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(p.CreatedAt))

	stocked, err := repo.UpdateStock(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stocked.Stock)

	_, err = repo.Update(ctx, "missing", models.ProductPatch{Price: &price})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestProductRepository_FindAllFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTables(t).Products)

	phone, err := repo.Create(ctx, models.CreateProductData{Name: "Phone X", Description: "Flagship", Price: 134900, CategoryID: "electronics", Stock: 5})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.CreateProductData{Name: "T-Shirt", Description: "Cotton tee", Price: 3995, CategoryID: "clothing", Stock: 20})
	require.NoError(t, err)

	min4000 := decimal.NewFromInt(4000)
	got, total, err := repo.FindAll(ctx, models.ProductFilter{MinPrice: &min4000}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, phone.ID, got[0].ID)

	max3000 := decimal.NewFromInt(3000)
	got, total, err = repo.FindAll(ctx, models.ProductFilter{CategoryID: "clothing", MaxPrice: &max3000}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)

	got, total, err = repo.FindAll(ctx, models.ProductFilter{Search: "COTTON"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "T-Shirt", got[0].Name)
}

func TestProductRepository_FindAllPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newTables(t).Products)

	var created []string
	for i := 0; i < 7; i++ {
		p, err := repo.Create(ctx, models.CreateProductData{Name: "Item", Price: int64(100 + i), CategoryID: "c"})
		require.NoError(t, err)
		created = append(created, p.ID)
	}

	page, total, err := repo.FindAll(ctx, models.ProductFilter{}, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 1)
	assert.Equal(t, created[6], page[0].ID)

	page, _, err = repo.FindAll(ctx, models.ProductFilter{}, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, created[:3], []string{page[0].ID, page[1].ID, page[2].ID})

	page, total, err = repo.FindAll(ctx, models.ProductFilter{}, 3, 50)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Empty(t, page)

	byCategory, err := repo.FindByCategory(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, byCategory, 7)

	byID, err := repo.FindByIDs(ctx, []string{created[0], created[4], "missing"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Contains(t, byID, created[4])

	assert.True(t, repo.Delete(ctx, created[0]))
	gone, err := repo.FindByID(ctx, created[0])
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCartRepository_AddMergesQuantity(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(newTables(t).CartItems)

	_, err := repo.Add(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	item, err := repo.Add(ctx, "u1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	rows, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Quantity)

	other, err := repo.FindByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCartRepository_SetQuantity(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(newTables(t).CartItems)

	_, err := repo.Add(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	item, err := repo.SetQuantity(ctx, "u1", "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)

	_, err = repo.SetQuantity(ctx, "u1", "p1", 0)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = repo.SetQuantity(ctx, "u1", "p9", 2)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = repo.Add(ctx, "u1", "p2", -1)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestCartRepository_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(newTables(t).CartItems)

	for _, p := range []string{"p1", "p2", "p3"} {
		_, err := repo.Add(ctx, "u1", p, 1)
		require.NoError(t, err)
	}
	_, err := repo.Add(ctx, "u2", "p1", 1)
	require.NoError(t, err)

	assert.True(t, repo.Remove(ctx, "u1", "p2"))
	item, err := repo.Get(ctx, "u1", "p2")
	require.NoError(t, err)
	assert.Nil(t, item)

	require.NoError(t, repo.Clear(ctx, "u1"))
	rows, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.FindByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOrderRepository_CreateKeepsPrices(t *testing.T) {
	ctx := context.Background()
	tables := newTables(t)
	repo := NewOrderRepository(tables.Orders, tables.OrderItems)

	created, err := repo.Create(ctx, models.CreateOrderData{
		UserID:          "u1",
		ShippingAddress: models.ShippingAddress{Street: "1 Main St", City: "Springfield", Country: "US"},
		Items: []models.OrderLineInput{
			{ProductID: "p1", Quantity: 2, Price: 1299},
			{ProductID: "p2", Quantity: 1, Price: 99999},
			{ProductID: "p1", Quantity: 1, Price: 1299},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, created.Status)
	assert.Equal(t, int64(3*1299+99999), created.TotalAmount)
	assert.Len(t, created.Items, 2)

	got, err := repo.GetOrderWithItems(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.TotalAmount, got.TotalAmount)
	assert.Equal(t, "Springfield", got.ShippingAddress.City)

	prices := map[string]int64{}
	quantities := map[string]int{}
	for _, item := range got.Items {
		prices[item.ProductID] = item.Price
		quantities[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[string]int64{"p1": 1299, "p2": 99999}, prices)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 1}, quantities)

	missing, err := repo.GetOrderWithItems(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_ListingAndStatus(t *testing.T) {
	ctx := context.Background()
	tables := newTables(t)
	repo := NewOrderRepository(tables.Orders, tables.OrderItems)

	line := []models.OrderLineInput{{ProductID: "p1", Quantity: 1, Price: 100}}
	first, err := repo.Create(ctx, models.CreateOrderData{UserID: "u1", Items: line})
	require.NoError(t, err)
	second, err := repo.Create(ctx, models.CreateOrderData{UserID: "u1", Items: line})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.CreateOrderData{UserID: "u2", Items: line})
	require.NoError(t, err)

	mine, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	shipped, err := repo.UpdateStatus(ctx, first.ID, models.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)
	assert.Equal(t, first.TotalAmount, shipped.TotalAmount)

	_, err = repo.UpdateStatus(ctx, "missing", models.OrderShipped)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestOrderRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	tables := newTables(t)
	repo := NewOrderRepository(tables.Orders, tables.OrderItems)

	order, err := repo.Create(ctx, models.CreateOrderData{
		UserID: "u1",
		Items: []models.OrderLineInput{
			{ProductID: "p1", Quantity: 1, Price: 100},
			{ProductID: "p2", Quantity: 1, Price: 200},
		},
	})
	require.NoError(t, err)

	assert.True(t, repo.Delete(ctx, order.ID))
	items, err := repo.GetOrderItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	header, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, header)
}
