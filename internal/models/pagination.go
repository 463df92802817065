package models

// Pagination describes one page of a filtered collection.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Page is a slice of items plus its pagination block.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// NewPagination computes the block for total items, 1-based page and limit.
func NewPagination(total, page, limit int) Pagination {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Paginate slices items by offset then limit.
func Paginate[T any](items []T, page, limit int) Page[T] {
	p := NewPagination(len(items), page, limit)
	limit = max(limit, 1)
	start := (p.CurrentPage - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := min(start+limit, len(items))
	return Page[T]{Items: items[start:end], Pagination: p}
}
