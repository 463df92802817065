package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// Services are the dependencies of the HTTP surface.
type Services struct {
	Auth       *services.AuthService
	Users      *services.UserService
	Products   *services.ProductService
	Categories *services.CategoryService
	Cart       *services.CartService
	Orders     *services.OrderService
}

// RegisterRoutes mounts every resource under router.
func RegisterRoutes(router fiber.Router, svc Services) {
	auth := middleware.AuthRequired(svc.Auth)

	NewAuthHandler(svc.Auth, svc.Users).RegisterRoutes(router, auth)
	NewUserHandler(svc.Users).RegisterRoutes(router, auth)
	NewProductHandler(svc.Products).RegisterRoutes(router, auth)
	NewCategoryHandler(svc.Categories).RegisterRoutes(router, auth)
	NewCartHandler(svc.Cart).RegisterRoutes(router, auth)
	NewOrderHandler(svc.Orders).RegisterRoutes(router, auth)
	NewSearchHandler(svc.Products, svc.Categories).RegisterRoutes(router)
}
