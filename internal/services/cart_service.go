package services

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// CartService manages the per-user persisted cart.
type CartService struct {
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
	log         *zap.Logger
}

func NewCartService(cartRepo repositories.CartRepository, productRepo repositories.ProductRepository, log *zap.Logger) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, log: log.Named("services.cart")}
}

// GetCart joins the user's rows with current product data. Rows whose
// product no longer exists are dropped from the cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	items, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{Lines: []models.CartLine{}}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			s.log.Info("Dropping cart row for deleted product",
				zap.String("user_id", userID), zap.String("product_id", item.ProductID))
			s.cartRepo.Remove(ctx, userID, item.ProductID)
			continue
		}
		subtotal := product.Price * int64(item.Quantity)
		cart.Lines = append(cart.Lines, models.CartLine{Item: item, Product: product, Subtotal: subtotal})
		cart.Total += subtotal
		cart.ItemCount += item.Quantity
	}
	return cart, nil
}

// AddItem merges quantity into the user's row for the product.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperror.Validation("Quantity must be at least 1")
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	existing, err := s.cartRepo.Get(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	want := quantity
	if existing != nil {
		want += existing.Quantity
	}
	if want > product.Stock {
		return nil, insufficientStock(product)
	}
	return s.cartRepo.Add(ctx, userID, productID, quantity)
}

// UpdateItem replaces the quantity of an existing row.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, apperror.Validation("Quantity must be at least 1")
	}
	existing, err := s.cartRepo.Get(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.NotFound("Cart item not found")
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, insufficientStock(product)
	}
	return s.cartRepo.SetQuantity(ctx, userID, productID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	existing, err := s.cartRepo.Get(ctx, userID, productID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperror.NotFound("Cart item not found")
	}
	if !s.cartRepo.Remove(ctx, userID, productID) {
		return apperror.Internal("Failed to remove cart item", nil)
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.cartRepo.Clear(ctx, userID)
}

func (s *CartService) product(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NotFound("Product not found")
	}
	return product, nil
}

func insufficientStock(p *models.Product) error {
	return apperror.Validation("Insufficient stock for " + p.Name)
}
