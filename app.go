package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/logger"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/storage"
	"storefront/internal/store"
	"storefront/pkg/rabbitmq"
)

// Repositories groups the entity access objects.
type Repositories struct {
	Users      repositories.UserRepository
	Categories repositories.CategoryRepository
	Products   repositories.ProductRepository
	Cart       repositories.CartRepository
	Orders     repositories.OrderRepository
}

// App owns every long-lived resource of the service.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	backend store.Backend
	cache   cache.Cache
	// cacheErr is the connect failure when redis is configured but unreachable.
	cacheErr error
	mq       *rabbitmq.Client
	images   *storage.S3ImageStorage
	Repos    *Repositories
	Fiber    *fiber.App
}

// NewApp connects the store and the optional cache, broker and bucket, then
// builds the HTTP application. Optional dependencies that fail to connect
// are logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	backend, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a := &App{cfg: cfg, log: log, backend: backend}

	tables, err := repositories.OpenTables(backend, cfg.Store.Tables)
	if err != nil {
		backend.Close()
		return nil, err
	}
	opts := []repositories.Option{
		repositories.WithLogger(log),
		repositories.WithBcryptCost(cfg.JWT.BcryptCost),
	}
	a.Repos = &Repositories{
		Users:      repositories.NewUserRepository(tables.Users, opts...),
		Categories: repositories.NewCategoryRepository(tables.Categories, opts...),
		Products:   repositories.NewProductRepository(tables.Products, opts...),
		Cart:       repositories.NewCartRepository(tables.CartItems, opts...),
		Orders:     repositories.NewOrderRepository(tables.Orders, tables.OrderItems, opts...),
	}

	a.cache, err = cache.New(cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		a.cache = cache.NopCache{}
		a.cacheErr = err
	}

	if cfg.Storage.Enabled() {
		a.images, err = storage.NewS3ImageStorage(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Warn("Image storage unavailable", zap.Error(err))
			a.images = nil
		}
	} else {
		log.Info("S3_BUCKET not set, image uploads disabled")
	}

	if cfg.RabbitMQ.URL != "" {
		a.mq, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL}, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, order events disabled", zap.Error(err))
			a.mq = nil
		}
	} else {
		log.Info("RABBITMQ_URL not set, order events disabled")
	}

	if cfg.Seed.OnStart {
		if _, err := Seed(ctx, a.Repos, cfg.Seed, log); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Fiber = a.newFiber()
	return a, nil
}

func (a *App) services() handlers.Services {
	var images services.ImageStorage
	if a.images != nil {
		images = a.images
	}
	var publisher services.EventPublisher
	if a.mq != nil {
		publisher = a.mq
	}
	ttl := a.cfg.Redis.TTL
	users := services.NewUserService(a.Repos.Users, a.Repos.Cart, a.log)
	return handlers.Services{
		Auth:       services.NewAuthService(a.Repos.Users, a.cfg.JWT, a.log),
		Users:      users,
		Products:   services.NewProductService(a.Repos.Products, a.Repos.Categories, a.cache, ttl, images, a.log),
		Categories: services.NewCategoryService(a.Repos.Categories, a.Repos.Products, a.cache, ttl, a.log),
		Cart:       services.NewCartService(a.Repos.Cart, a.Repos.Products, a.log),
		Orders:     services.NewOrderService(a.Repos.Orders, a.Repos.Products, a.Repos.Cart, a.cache, publisher, a.log),
	}
}

func (a *App) newFiber() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: handlers.ErrorHandler(a.log, a.cfg.App.IsProduction()),
	})

	app.Use(requestid.New())
	app.Use(logger.FiberMiddleware(a.log))
	app.Use(logger.Recovery(a.log))
	app.Use(cors.New())

	app.Get("/health", a.health)
	handlers.RegisterRoutes(app.Group("/api/v1"), a.services())
	return app
}

// health reports each dependency. Only the store is required.
func (a *App) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	status := "healthy"
	code := fiber.StatusOK

	if err := a.backend.Ping(ctx); err != nil {
		a.log.Error("Store health check failed", zap.Error(err))
		checks["store"] = "down"
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	} else {
		checks["store"] = "up"
	}

	optional := func(name string, enabled bool, ping func() error) {
		if !enabled {
			checks[name] = "disabled"
			return
		}
		if err := ping(); err != nil {
			a.log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			if status == "healthy" {
				status = "degraded"
			}
			return
		}
		checks[name] = "up"
	}
	optional("cache", a.cfg.Redis.Enabled(), func() error {
		if a.cacheErr != nil {
			return a.cacheErr
		}
		return a.cache.Ping(ctx)
	})
	optional("rabbitmq", a.mq != nil, func() error { return a.mq.Ping() })
	optional("storage", a.images != nil, func() error { return a.images.Ping(ctx) })

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"store":  a.backend.Name(),
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Consume runs the order event consumer until ctx is cancelled.
func (a *App) Consume(ctx context.Context) error {
	if a.mq == nil {
		return errors.New("RABBITMQ_URL must be set to run the worker")
	}
	return a.mq.ConsumeOrderEvents(ctx, newOrderEventHandler(a.log))
}

// Close releases the broker, cache and store.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		errs = append(errs, a.mq.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.backend.Close())
	return errors.Join(errs...)
}
