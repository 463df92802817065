package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

type seedCategory struct {
	Name        string
	Description string
}

type seedProduct struct {
	Name        string
	Description string
	Price       int64
	Category    string
	Stock       int
	ImageURL    string
}

var seedCategories = []seedCategory{
	{"Electronics", "Electronic devices and gadgets"},
	{"Clothing", "Fashion and apparel for men, women, and children"},
	{"Books", "Books, novels, and educational materials"},
	{"Home & Garden", "Home improvement and gardening supplies"},
	{"Sports", "Sports equipment and fitness gear"},
}

var seedProducts = []seedProduct{
	{"iPhone 15 Pro", "Latest iPhone with advanced camera system and A17 Pro chip", 134900, "Electronics", 50,
		"https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=500"},
	{"Samsung Galaxy S24 Ultra", "Premium Android smartphone with S Pen and advanced AI features", 124999, "Electronics", 30,
		"https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=500"},
	{"MacBook Air M3", "Ultra-thin laptop with M3 chip for exceptional performance", 114900, "Electronics", 25,
		"https://images.unsplash.com/photo-1541807084-5c52b6b3adef?w=500"},
	{"Nike Air Max 270", "Comfortable running shoes with Air Max technology", 12995, "Clothing", 100,
		"https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=500"},
	{"Levi's 501 Original Jeans", "Classic straight-fit jeans in authentic denim", 3995, "Clothing", 75,
		"https://images.unsplash.com/photo-1541099649105-f69ad21f3246?w=500"},
	{"Atomic Habits by James Clear", "An Easy & Proven Way to Build Good Habits & Break Bad Ones", 399, "Books", 200,
		"https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=500"},
	{"The Psychology of Money", "Timeless lessons on wealth, greed, and happiness by Morgan Housel", 299, "Books", 150,
		"https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=500"},
	{"Philips Air Fryer HD9200", "Healthy cooking with 4.1L capacity and rapid air technology", 8995, "Home & Garden", 40,
		"https://images.unsplash.com/photo-1556909114-f6e7ad7d3136?w=500"},
	{"Dyson V15 Detect Vacuum", "Cordless vacuum with laser dust detection and powerful suction", 49995, "Home & Garden", 20,
		"https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=500"},
	{"Adidas Football", "Official match football with premium leather construction", 2495, "Sports", 60,
		"https://images.unsplash.com/photo-1574629810360-7efbbe195018?w=500"},
}

// SeedResult counts the records a seed run created.
type SeedResult struct {
	Categories int
	Products   int
	Admin      bool
}

// Seed creates the demo catalog and the admin account. Records that already
// exist are left alone, so it is safe to run repeatedly.
func Seed(ctx context.Context, repos *Repositories, cfg config.SeedConfig, log *zap.Logger) (*SeedResult, error) {
	log = log.Named("seed")
	var result SeedResult

	categoryIDs := make(map[string]string, len(seedCategories))
	for _, sc := range seedCategories {
		existing, err := repos.Categories.FindByName(ctx, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up category %s: %w", sc.Name, err)
		}
		if existing != nil {
			categoryIDs[sc.Name] = existing.ID
			continue
		}
		created, err := repos.Categories.Create(ctx, models.CreateCategoryData{Name: sc.Name, Description: sc.Description})
		if err != nil {
			return nil, fmt.Errorf("failed to seed category %s: %w", sc.Name, err)
		}
		categoryIDs[sc.Name] = created.ID
		result.Categories++
	}

	for _, sp := range seedProducts {
		exists, err := productExists(ctx, repos.Products, sp.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		if _, err := repos.Products.Create(ctx, models.CreateProductData{
			Name:        sp.Name,
			Description: sp.Description,
			Price:       sp.Price,
			CategoryID:  categoryIDs[sp.Category],
			Stock:       sp.Stock,
			ImageURL:    sp.ImageURL,
		}); err != nil {
			return nil, fmt.Errorf("failed to seed product %s: %w", sp.Name, err)
		}
		result.Products++
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := repos.Users.FindByEmail(ctx, cfg.AdminEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to look up admin: %w", err)
		}
		if admin == nil {
			if _, err := repos.Users.Create(ctx, models.CreateUserData{
				Email:    cfg.AdminEmail,
				Password: cfg.AdminPassword,
				Name:     "Administrator",
				Role:     models.RoleAdmin,
			}); err != nil {
				return nil, fmt.Errorf("failed to seed admin: %w", err)
			}
			result.Admin = true
		}
	} else {
		log.Info("ADMIN_PASSWORD not set, skipping admin account")
	}

	log.Info("Seed completed",
		zap.Int("categories", result.Categories),
		zap.Int("products", result.Products),
		zap.Bool("admin", result.Admin),
	)
	return &result, nil
}

func productExists(ctx context.Context, products repositories.ProductRepository, name string) (bool, error) {
	matches, _, err := products.FindAll(ctx, models.ProductFilter{Search: name}, 0, 0)
	if err != nil {
		return false, fmt.Errorf("failed to look up product %s: %w", name, err)
	}
	for _, p := range matches {
		if strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}
