package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
)

type CategoryRepository interface {
	Create(ctx context.Context, data models.CreateCategoryData) (*models.Category, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	FindAll(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, id string, patch models.CategoryPatch) (*models.Category, error)
	Delete(ctx context.Context, id string) bool
}

type storeCategoryRepository struct {
	table store.Table
	clock *clock
	log   *zap.Logger
}

func NewCategoryRepository(table store.Table, opts ...Option) CategoryRepository {
	o := buildOptions("category", opts)
	return &storeCategoryRepository{table: table, clock: newClock(o.now), log: o.log}
}

func (r *storeCategoryRepository) Create(ctx context.Context, data models.CreateCategoryData) (*models.Category, error) {
	now := r.clock.Now()
	category := &models.Category{
		ID:          models.NewID(),
		Name:        data.Name,
		Description: data.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.table.Put(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (r *storeCategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	found, err := r.table.Get(ctx, store.Key{Partition: id}, &category)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &category, nil
}

// FindByName matches case-insensitively. Categories are few, so a scan is fine.
func (r *storeCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	categories, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, strings.TrimSpace(name)) {
			return &categories[i], nil
		}
	}
	return nil, nil
}

// FindAll returns every category ordered by name.
func (r *storeCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.table.Scan(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

func (r *storeCategoryRepository) Update(ctx context.Context, id string, patch models.CategoryPatch) (*models.Category, error) {
	var set []store.Assignment
	if patch.Name != nil {
		set = append(set, store.Set("name", *patch.Name))
	}
	if patch.Description != nil {
		set = append(set, store.Set("description", *patch.Description))
	}
	set = append(set, store.Set("updated_at", r.clock.Now()))

	var category models.Category
	if err := r.table.Update(ctx, store.Key{Partition: id}, set, &category); err != nil {
		return nil, notFound(err, "Category not found")
	}
	return &category, nil
}

func (r *storeCategoryRepository) Delete(ctx context.Context, id string) bool {
	if err := r.table.Delete(ctx, store.Key{Partition: id}); err != nil {
		r.log.Error("failed to delete category", zap.String("category_id", id), zap.Error(err))
		return false
	}
	return true
}
