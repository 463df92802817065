package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the storefront service.
type Config struct {
	App      AppConfig
	Log      LogConfig
	Store    StoreConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Seed     SeedConfig
}

// AppConfig holds HTTP server settings.
type AppConfig struct {
	Port string
	Env  string
}

// IsProduction reports whether the service runs in production mode.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
)

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver          string
	DSN             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Tables          TableNames
}

// TableNames maps each entity to its physical table name.
type TableNames struct {
	Users      string
	Categories string
	Products   string
	CartItems  string
	Orders     string
	OrderItems string
}

// RedisConfig holds the optional cache connection.
type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a redis endpoint was configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RabbitMQConfig holds the optional broker connection.
type RabbitMQConfig struct {
	URL string
}

// JWTConfig holds token and password hashing settings.
type JWTConfig struct {
	Secret     string
	TTL        time.Duration
	BcryptCost int
}

// StorageConfig holds S3-compatible object storage settings for product images.
type StorageConfig struct {
	Bucket            string
	Endpoint          string
	Region            string
	AccessKey         string
	SecretKey         string
	UsePathStyle      bool
	PresignExpiration time.Duration
	PublicBaseURL     string
}

// Enabled reports whether a bucket was configured.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// SeedConfig controls the initial data set.
type SeedConfig struct {
	OnStart       bool
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from an optional config file and the environment.
// Environment variables always win over file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/storefront")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_DSN", "file::memory:?cache=shared")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("USERS_TABLE", "ecommerce-development-users")
	v.SetDefault("CATEGORIES_TABLE", "ecommerce-development-categories")
	v.SetDefault("PRODUCTS_TABLE", "ecommerce-development-products")
	v.SetDefault("CART_ITEMS_TABLE", "ecommerce-development-cart-items")
	v.SetDefault("ORDERS_TABLE", "ecommerce-development-orders")
	v.SetDefault("ORDER_ITEMS_TABLE", "ecommerce-development-order-items")

	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 5*time.Minute)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", 7*24*time.Hour)
	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PRESIGN_EXPIRATION", 15*time.Minute)

	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("SEED_ON_START", false)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		App: AppConfig{
			Port: v.GetString("APP_PORT"),
			Env:  strings.ToLower(v.GetString("APP_ENV")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(v.GetString("STORE_DRIVER")),
			DSN:             v.GetString("DATABASE_DSN"),
			Region:          v.GetString("AWS_REGION"),
			Endpoint:        v.GetString("AWS_ENDPOINT"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			Tables: TableNames{
				Users:      v.GetString("USERS_TABLE"),
				Categories: v.GetString("CATEGORIES_TABLE"),
				Products:   v.GetString("PRODUCTS_TABLE"),
				CartItems:  v.GetString("CART_ITEMS_TABLE"),
				Orders:     v.GetString("ORDERS_TABLE"),
				OrderItems: v.GetString("ORDER_ITEMS_TABLE"),
			},
		},
		Redis: RedisConfig{
			URL:      v.GetString("REDIS_URL"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL: v.GetString("RABBITMQ_URL"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			TTL:        v.GetDuration("JWT_TTL"),
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		Storage: StorageConfig{
			Bucket:            v.GetString("S3_BUCKET"),
			Endpoint:          v.GetString("S3_ENDPOINT"),
			Region:            v.GetString("S3_REGION"),
			AccessKey:         v.GetString("S3_ACCESS_KEY"),
			SecretKey:         v.GetString("S3_SECRET_KEY"),
			UsePathStyle:      v.GetBool("S3_USE_PATH_STYLE"),
			PresignExpiration: v.GetDuration("S3_PRESIGN_EXPIRATION"),
			PublicBaseURL:     v.GetString("S3_PUBLIC_BASE_URL"),
		},
		Seed: SeedConfig{
			OnStart:       v.GetBool("SEED_ON_START"),
			AdminEmail:    strings.ToLower(v.GetString("ADMIN_EMAIL")),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
	}

	if cfg.Log.Format == "" {
		if cfg.App.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	return cfg
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverDynamoDB:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.DSN == "" {
		return errors.New("DATABASE_DSN is required for the postgres driver")
	}
	if c.App.IsProduction() && (c.JWT.Secret == "" || c.JWT.Secret == "change-me") {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.JWT.BcryptCost < 4 || c.JWT.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.JWT.BcryptCost)
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}
