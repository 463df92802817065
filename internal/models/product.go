package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store. Price is in the smallest
// currency unit.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CategoryID  string    `json:"category_id"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProductData struct {
	Name        string
	Description string
	Price       int64
	CategoryID  string
	Stock       int
	ImageURL    string
}

// ProductPatch is a merge patch; nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *int64
	CategoryID  *string
	Stock       *int
	ImageURL    *string
}

// ProductFilter narrows a product listing. Zero values disable a criterion.
type ProductFilter struct {
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
}

// Match reports whether p satisfies every set criterion. Search is a
// case-insensitive substring match over name and description.
func (f ProductFilter) Match(p *Product) bool {
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	price := decimal.NewFromInt(p.Price)
	if f.MinPrice != nil && price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}
