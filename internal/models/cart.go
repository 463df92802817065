package models

import "time"

// CartItem is one product line in a user's cart, keyed by (user, product).
type CartItem struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine is a cart item joined with its current product.
type CartLine struct {
	Item     CartItem
	Product  Product
	Subtotal int64
}

// Cart is the resolved view of a user's cart.
type Cart struct {
	Lines     []CartLine
	Total     int64
	ItemCount int
}
