package models

import "time"

// Category groups products.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateCategoryData struct {
	Name        string
	Description string
}

type CategoryPatch struct {
	Name        *string
	Description *string
}
