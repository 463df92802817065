package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderProcessing
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order represents a customer order header. TotalAmount is captured at
// creation and never recomputed.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TotalAmount     int64           `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"` // Price at the time of order
	CreatedAt time.Time `json:"created_at"`
}

// OrderWithItems is an order header together with its line items.
type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

// OrderLineInput is one requested line when placing an order.
type OrderLineInput struct {
	ProductID string
	Quantity  int
	Price     int64
}

type CreateOrderData struct {
	UserID          string
	ShippingAddress ShippingAddress
	Status          OrderStatus
	Items           []OrderLineInput
}

type OrderPatch struct {
	Status          *OrderStatus
	ShippingAddress *ShippingAddress
}
