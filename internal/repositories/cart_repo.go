package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/store"
)

// CartRepository stores one row per (user, product).
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) ([]models.CartItem, error)
	Get(ctx context.Context, userID, productID string) (*models.CartItem, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID string) bool
	Clear(ctx context.Context, userID string) error
}

type storeCartRepository struct {
	table store.Table
	clock *clock
	log   *zap.Logger
}

func NewCartRepository(table store.Table, opts ...Option) CartRepository {
	o := buildOptions("cart", opts)
	return &storeCartRepository{table: table, clock: newClock(o.now), log: o.log}
}

func cartKey(userID, productID string) store.Key {
	return store.Key{Partition: userID, Sort: productID}
}

// FindByUser returns the user's rows in the order they were first added.
func (r *storeCartRepository) FindByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.table.Query(ctx, store.Query{Value: userID}, &items); err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *storeCartRepository) Get(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	found, err := r.table.Get(ctx, cartKey(userID, productID), &item)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &item, nil
}

// Add creates the row or merges quantity into an existing one.
func (r *storeCartRepository) Add(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperror.Validation("Quantity must be at least 1")
	}
	existing, err := r.Get(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.SetQuantity(ctx, userID, productID, existing.Quantity+quantity)
	}

	now := r.clock.Now()
	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.table.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

// SetQuantity replaces the quantity of an existing row.
func (r *storeCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperror.Validation("Quantity must be at least 1")
	}
	set := []store.Assignment{
		store.Set("quantity", quantity),
		store.Set("updated_at", r.clock.Now()),
	}
	var item models.CartItem
	if err := r.table.Update(ctx, cartKey(userID, productID), set, &item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Cart item not found")
		}
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return &item, nil
}

func (r *storeCartRepository) Remove(ctx context.Context, userID, productID string) bool {
	if err := r.table.Delete(ctx, cartKey(userID, productID)); err != nil {
		r.log.Error("failed to remove cart item",
			zap.String("user_id", userID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Clear deletes every row of the user's cart.
func (r *storeCartRepository) Clear(ctx context.Context, userID string) error {
	items, err := r.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := r.table.Delete(ctx, cartKey(userID, item.ProductID)); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
	}
	return nil
}
