package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/services"
)

const shutdownTimeout = 10 * time.Second

var (
	// Global flags
	port  string
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront - catalog, cart and order API",
	Long: `Storefront serves the product catalog, shopping carts and orders over a JSON API.

Commands:
  serve   run the HTTP API (default)
  seed    create the demo catalog and the admin account
  worker  consume order events from RabbitMQ`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo catalog and the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap("storefront-seed")
		if err != nil {
			return err
		}
		defer log.Sync()

		// Seeding runs explicitly below.
		cfg.Seed.OnStart = false
		app, err := NewApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := Seed(cmd.Context(), app.Repos, cfg.Seed, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories, %d products, admin created: %t\n",
			result.Categories, result.Products, result.Admin)
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume order events from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap("storefront-worker")
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := NewApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		log.Info("Starting order event worker")
		if err := app.Consume(ctx); err != nil {
			return err
		}
		log.Info("Order event worker stopped")
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "HTTP listen address, overrides APP_PORT")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, seedCmd, workerCmd)
}

func bootstrap(service string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if port != "" {
		cfg.App.Port = port
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	format := cfg.Log.Format
	if format == "" {
		format = logger.DefaultConfig().Format
		if cfg.App.IsProduction() {
			format = logger.ProductionConfig().Format
		}
	}
	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  format,
		Output:  cfg.Log.Output,
		Service: service,
		Env:     cfg.App.Env,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap("storefront")
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", cfg.App.Port), zap.String("env", cfg.App.Env))
		serverErr <- app.Fiber.Listen(cfg.App.Port)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info("Shutting down server...")
	if err := app.Fiber.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error("Error during Fiber shutdown", zap.Error(err))
	}
	log.Info("Server gracefully stopped")
	return nil
}

// newOrderEventHandler decodes order events and logs them. A body that is
// not an order event is rejected so the broker drops it on redelivery.
func newOrderEventHandler(log *zap.Logger) func(amqp.Delivery) error {
	log = log.Named("worker")
	return func(msg amqp.Delivery) error {
		var event services.OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("failed to decode order event: %w", err)
		}
		if event.OrderID == "" {
			return errors.New("order event without order id")
		}
		log.Info("Order event received",
			zap.String("routing_key", msg.RoutingKey),
			zap.String("order_id", event.OrderID),
			zap.String("user_id", event.UserID),
			zap.String("status", string(event.Status)),
			zap.Int64("total", event.Total),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}
