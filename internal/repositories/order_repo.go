package repositories

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
)

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	Create(ctx context.Context, data models.CreateOrderData) (*models.OrderWithItems, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetOrderWithItems(ctx context.Context, id string) (*models.OrderWithItems, error)
	Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, id string) bool
}

type storeOrderRepository struct {
	orders store.Table
	items  store.Table
	clock  *clock
	log    *zap.Logger
}

// NewOrderRepository creates an order repository over the orders and
// order items tables.
func NewOrderRepository(orders, items store.Table, opts ...Option) OrderRepository {
	o := buildOptions("order", opts)
	return &storeOrderRepository{orders: orders, items: items, clock: newClock(o.now), log: o.log}
}

// Create writes the header and then its items. The two writes are not
// atomic; a failure on the items leaves the header in place.
func (r *storeOrderRepository) Create(ctx context.Context, data models.CreateOrderData) (*models.OrderWithItems, error) {
	status := data.Status
	if status == "" {
		status = models.OrderPending
	}
	now := r.clock.Now()
	order := models.Order{
		ID:              models.NewID(),
		UserID:          data.UserID,
		Status:          status,
		ShippingAddress: data.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]models.OrderItem, 0, len(data.Items))
	for _, line := range mergeLines(data.Items) {
		order.TotalAmount += line.Price * int64(line.Quantity)
		items = append(items, models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			CreatedAt: now,
		})
	}
	batch := make([]any, 0, len(items))
	for _, item := range items {
		batch = append(batch, item)
	}

	if err := r.orders.Put(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err := r.items.BatchWrite(ctx, batch); err != nil {
		r.log.Error("order header written without its items",
			zap.String("order_id", order.ID),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}
	return &models.OrderWithItems{Order: order, Items: items}, nil
}

func (r *storeOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	found, err := r.orders.Get(ctx, store.Key{Partition: id}, &order)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &order, nil
}

// FindByUserID returns the user's orders, newest first.
func (r *storeOrderRepository) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.orders.Query(ctx, store.Query{Index: "user-index", Value: userID}, &orders); err != nil {
		return nil, fmt.Errorf("failed to get orders by user: %w", err)
	}
	newestFirst(orders)
	return orders, nil
}

// FindAll returns every order, newest first.
func (r *storeOrderRepository) FindAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.orders.Scan(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	newestFirst(orders)
	return orders, nil
}

func (r *storeOrderRepository) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.items.Query(ctx, store.Query{Value: orderID}, &items); err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

func (r *storeOrderRepository) GetOrderWithItems(ctx context.Context, id string) (*models.OrderWithItems, error) {
	order, err := r.FindByID(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}
	items, err := r.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

func (r *storeOrderRepository) Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	var set []store.Assignment
	if patch.Status != nil {
		set = append(set, store.Set("status", *patch.Status))
	}
	if patch.ShippingAddress != nil {
		set = append(set, store.Set("shipping_address", *patch.ShippingAddress))
	}
	set = append(set, store.Set("updated_at", r.clock.Now()))

	var order models.Order
	if err := r.orders.Update(ctx, store.Key{Partition: id}, set, &order); err != nil {
		return nil, notFound(err, "Order not found")
	}
	return &order, nil
}

func (r *storeOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	return r.Update(ctx, id, models.OrderPatch{Status: &status})
}

// Delete removes the items first so a partial failure never leaves
// orphaned items behind a missing header.
func (r *storeOrderRepository) Delete(ctx context.Context, id string) bool {
	items, err := r.GetOrderItems(ctx, id)
	if err != nil {
		r.log.Error("failed to delete order", zap.String("order_id", id), zap.Error(err))
		return false
	}
	for _, item := range items {
		if err := r.items.Delete(ctx, store.Key{Partition: id, Sort: item.ProductID}); err != nil {
			r.log.Error("failed to delete order item",
				zap.String("order_id", id),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			return false
		}
	}
	if err := r.orders.Delete(ctx, store.Key{Partition: id}); err != nil {
		r.log.Error("failed to delete order", zap.String("order_id", id), zap.Error(err))
		return false
	}
	return true
}

// mergeLines folds repeated products into one line, since items are keyed by
// (order, product). The first price seen for a product wins.
func mergeLines(lines []models.OrderLineInput) []models.OrderLineInput {
	merged := make([]models.OrderLineInput, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func newestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
