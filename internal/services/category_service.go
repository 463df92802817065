package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// CategoryService handles category management and lookups.
type CategoryService struct {
	categoryRepo repositories.CategoryRepository
	productRepo  repositories.ProductRepository
	cache        catalogCache
	log          *zap.Logger
}

func NewCategoryService(
	categoryRepo repositories.CategoryRepository,
	productRepo repositories.ProductRepository,
	c cache.Cache,
	ttl time.Duration,
	log *zap.Logger,
) *CategoryService {
	log = log.Named("services.category")
	return &CategoryService{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		cache:        newCatalogCache(c, ttl, log),
		log:          log,
	}
}

// ListCategories returns every category ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if s.cache.get(ctx, categoriesKey, &categories) {
		return categories, nil
	}
	categories, err := s.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, categoriesKey, categories)
	return categories, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperror.NotFound("Category not found")
	}
	return category, nil
}

// ProductsInCategory lists the products of an existing category.
func (s *CategoryService) ProductsInCategory(ctx context.Context, id string) ([]models.Product, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return s.productRepo.FindByCategory(ctx, id)
}

func (s *CategoryService) CreateCategory(ctx context.Context, data models.CreateCategoryData) (*models.Category, error) {
	data.Name = strings.TrimSpace(data.Name)
	if err := s.ensureNameFree(ctx, data.Name, ""); err != nil {
		return nil, err
	}
	category, err := s.categoryRepo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.cache.invalidateCategories(ctx)
	s.log.Info("Category created", zap.String("category_id", category.ID), zap.String("name", category.Name))
	return category, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id string, patch models.CategoryPatch) (*models.Category, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
	}
	category, err := s.categoryRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.cache.invalidateCategories(ctx)
	return category, nil
}

// DeleteCategory refuses to remove a category that products still reference.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	products, err := s.productRepo.FindByCategory(ctx, id)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		return apperror.Conflict("Category still has products")
	}
	if !s.categoryRepo.Delete(ctx, id) {
		return apperror.Internal("Failed to delete category", nil)
	}
	s.cache.invalidateCategories(ctx)
	s.log.Info("Category deleted", zap.String("category_id", id))
	return nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.categoryRepo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return apperror.Conflict("Category with this name already exists")
	}
	return nil
}
