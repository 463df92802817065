package handlers

import (
	"time"

	"storefront/internal/models"
)

type userDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUser(u models.SafeUser) userDTO {
	return userDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type productDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CategoryID  string    `json:"categoryId"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl"`
	SKU         string    `json:"sku"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProduct(p models.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		SKU:         "SKU-" + p.ID,
		IsActive:    true,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProducts(products []models.Product) []productDTO {
	out := make([]productDTO, len(products))
	for i, p := range products {
		out[i] = toProduct(p)
	}
	return out
}

type categoryDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCategory(c models.Category) categoryDTO {
	return categoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    true,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toCategories(categories []models.Category) []categoryDTO {
	out := make([]categoryDTO, len(categories))
	for i, c := range categories {
		out[i] = toCategory(c)
	}
	return out
}

type cartProductDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"imageUrl"`
	Stock    int    `json:"stock"`
}

type cartItemDTO struct {
	ID        string         `json:"id"`
	ProductID string         `json:"productId"`
	Quantity  int            `json:"quantity"`
	Price     int64          `json:"price"`
	Subtotal  int64          `json:"subtotal"`
	Product   cartProductDTO `json:"product"`
}

type cartDTO struct {
	CartItems []cartItemDTO `json:"cartItems"`
	Total     int64         `json:"total"`
	ItemCount int           `json:"itemCount"`
}

// Cart rows are addressed by product id.
func toCart(cart *models.Cart) cartDTO {
	items := make([]cartItemDTO, len(cart.Lines))
	for i, line := range cart.Lines {
		items[i] = cartItemDTO{
			ID:        line.Product.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Item.Quantity,
			Price:     line.Product.Price,
			Subtotal:  line.Subtotal,
			Product: cartProductDTO{
				ID:       line.Product.ID,
				Name:     line.Product.Name,
				Price:    line.Product.Price,
				ImageURL: line.Product.ImageURL,
				Stock:    line.Product.Stock,
			},
		}
	}
	return cartDTO{CartItems: items, Total: cart.Total, ItemCount: cart.ItemCount}
}

type addressDTO struct {
	Name       string `json:"name"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

func (a addressDTO) model() models.ShippingAddress {
	return models.ShippingAddress{
		Name:       a.Name,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func toAddress(a models.ShippingAddress) addressDTO {
	return addressDTO{
		Name:       a.Name,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type orderItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type orderDTO struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	TotalAmount     int64              `json:"totalAmount"`
	Status          models.OrderStatus `json:"status"`
	ShippingAddress addressDTO         `json:"shippingAddress"`
	Items           []orderItemDTO     `json:"items,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func toOrder(o models.Order) orderDTO {
	return orderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ShippingAddress: toAddress(o.ShippingAddress),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderWithItems(o *models.OrderWithItems) orderDTO {
	dto := toOrder(o.Order)
	dto.Items = make([]orderItemDTO, len(o.Items))
	for i, item := range o.Items {
		dto.Items[i] = orderItemDTO{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price}
	}
	return dto
}

func toOrders(orders []models.Order) []orderDTO {
	out := make([]orderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrder(o)
	}
	return out
}
