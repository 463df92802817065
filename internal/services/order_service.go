package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/cache"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Routing keys for order events.
const (
	EventOrderCreated       = "order.created"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

// EventPublisher delivers order events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// OrderEvent is the message body published for every order event.
type OrderEvent struct {
	OrderID    string             `json:"orderId"`
	UserID     string             `json:"userId"`
	Status     models.OrderStatus `json:"status"`
	Total      int64              `json:"total"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// OrderLine is one requested product line.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput describes a checkout. When Items is empty the user's cart
// is used and cleared after the order is written.
type PlaceOrderInput struct {
	UserID          string
	ShippingAddress models.ShippingAddress
	Items           []OrderLine
}

// OrderListQuery selects one page of orders. Status is only honoured for the
// admin listing.
type OrderListQuery struct {
	Page   int
	Limit  int
	Status models.OrderStatus
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	cartRepo    repositories.CartRepository
	cache       catalogCache
	publisher   EventPublisher
	log         *zap.Logger
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case events are skipped.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	cartRepo repositories.CartRepository,
	c cache.Cache,
	publisher EventPublisher,
	log *zap.Logger,
) *OrderService {
	log = log.Named("services.order")
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		cache:       newCatalogCache(c, 0, log),
		publisher:   publisher,
		log:         log,
	}
}

// PlaceOrder validates stock, writes the order with the current prices and
// decrements stock for every line.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.OrderWithItems, error) {
	lines := in.Items
	fromCart := len(lines) == 0
	if fromCart {
		cartItems, err := s.cartRepo.FindByUser(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		if len(cartItems) == 0 {
			return nil, apperror.Validation("Cart is empty")
		}
		for _, item := range cartItems {
			lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	lines, err := combineLines(lines)
	if err != nil {
		return nil, err
	}

	products := make(map[string]*models.Product, len(lines))
	inputs := make([]models.OrderLineInput, 0, len(lines))
	for _, line := range lines {
		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, apperror.NotFound("Product not found: " + line.ProductID)
		}
		if product.Stock < line.Quantity {
			return nil, insufficientStock(product)
		}
		products[product.ID] = product
		inputs = append(inputs, models.OrderLineInput{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
	}

	order, err := s.orderRepo.Create(ctx, models.CreateOrderData{
		UserID:          in.UserID,
		ShippingAddress: in.ShippingAddress,
		Status:          models.OrderPending,
		Items:           inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	ids := make([]string, 0, len(inputs))
	for _, line := range inputs {
		product := products[line.ProductID]
		if _, err := s.productRepo.UpdateStock(ctx, product.ID, product.Stock-line.Quantity); err != nil {
			s.log.Error("Failed to decrement stock",
				zap.String("order_id", order.ID), zap.String("product_id", product.ID), zap.Error(err))
			continue
		}
		ids = append(ids, product.ID)
	}
	s.cache.invalidateProducts(ctx, ids...)

	if fromCart {
		if err := s.cartRepo.Clear(ctx, in.UserID); err != nil {
			s.log.Warn("Failed to clear cart after checkout", zap.String("user_id", in.UserID), zap.Error(err))
		}
	}

	logger.FromContext(ctx, s.log).Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.TotalAmount),
		zap.Int("lines", len(order.Items)),
	)
	s.publish(ctx, EventOrderCreated, &order.Order)
	return order, nil
}

// ListUserOrders pages through one user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, q OrderListQuery) (*models.Page[models.Order], error) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pageOrders(orders, q), nil
}

// ListAllOrders pages through every order, optionally filtered by status.
func (s *OrderService) ListAllOrders(ctx context.Context, q OrderListQuery) (*models.Page[models.Order], error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalidStatus()
	}
	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if q.Status != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == q.Status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return pageOrders(orders, q), nil
}

// GetOrder returns the order with its items. Only the owner or an admin may
// read it.
func (s *OrderService) GetOrder(ctx context.Context, id, userID string, admin bool) (*models.OrderWithItems, error) {
	order, err := s.orderRepo.GetOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NotFound("Order not found")
	}
	if !admin && order.UserID != userID {
		return nil, apperror.Forbidden("Access denied")
	}
	return order, nil
}

// CancelOrder cancels a pending or processing order and restores stock.
func (s *OrderService) CancelOrder(ctx context.Context, id, userID string, admin bool) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id, userID, admin)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, apperror.Conflict("Order cannot be cancelled")
	}
	updated, err := s.orderRepo.UpdateStatus(ctx, id, models.OrderCancelled)
	if err != nil {
		return nil, err
	}
	s.restoreStock(ctx, order)
	logger.FromContext(ctx, s.log).Info("Order cancelled", zap.String("order_id", id), zap.String("user_id", userID))
	s.publish(ctx, EventOrderCancelled, updated)
	return updated, nil
}

// UpdateStatus sets any valid status. Moving into cancelled restores stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, invalidStatus()
	}
	order, err := s.orderRepo.GetOrderWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NotFound("Order not found")
	}
	updated, err := s.orderRepo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if status == models.OrderCancelled && order.Status != models.OrderCancelled {
		s.restoreStock(ctx, order)
	}
	logger.FromContext(ctx, s.log).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)),
	)
	s.publish(ctx, EventOrderStatusChanged, updated)
	return updated, nil
}

// DeleteOrder removes an order and its items.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return apperror.NotFound("Order not found")
	}
	if !s.orderRepo.Delete(ctx, id) {
		return apperror.Internal("Failed to delete order", nil)
	}
	s.log.Info("Order deleted", zap.String("order_id", id))
	return nil
}

func (s *OrderService) restoreStock(ctx context.Context, order *models.OrderWithItems) {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil || product == nil {
			s.log.Warn("Skipping stock restore",
				zap.String("order_id", order.ID), zap.String("product_id", item.ProductID), zap.Error(err))
			continue
		}
		if _, err := s.productRepo.UpdateStock(ctx, product.ID, product.Stock+item.Quantity); err != nil {
			s.log.Error("Failed to restore stock",
				zap.String("order_id", order.ID), zap.String("product_id", product.ID), zap.Error(err))
			continue
		}
		ids = append(ids, product.ID)
	}
	s.cache.invalidateProducts(ctx, ids...)
}

// publish never fails the caller; the order is already written.
func (s *OrderService) publish(ctx context.Context, routingKey string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.TotalAmount,
		OccurredAt: order.UpdatedAt,
	})
	if err != nil {
		s.log.Error("Failed to marshal order event", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, body); err != nil {
		s.log.Warn("Failed to publish order event",
			zap.String("order_id", order.ID), zap.String("routing_key", routingKey), zap.Error(err))
	}
}

// combineLines folds repeated products into one line.
func combineLines(lines []OrderLine) ([]OrderLine, error) {
	index := map[string]int{}
	out := make([]OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperror.Validation("Quantity must be at least 1")
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func pageOrders(orders []models.Order, q OrderListQuery) *models.Page[models.Order] {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	q.Limit = min(q.Limit, MaxPageSize)
	if orders == nil {
		orders = []models.Order{}
	}
	page := models.Paginate(orders, q.Page, q.Limit)
	return &page
}

func invalidStatus() error {
	return apperror.Validation("Invalid order status",
		apperror.FieldError{Field: "status", Message: "must be one of pending, processing, shipped, delivered, cancelled"})
}
