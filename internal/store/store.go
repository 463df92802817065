// Package store is a small key-value document layer. Records are JSON-tagged
// structs addressed by a partition key and an optional sort key, with named
// secondary indexes for equality lookups.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/config"
)

// ErrNotFound is returned by Update when the key does not exist.
var ErrNotFound = errors.New("store: item not found")

// BatchSize is the maximum number of items sent in one batch request.
const BatchSize = 25

// Schema describes a table layout.
type Schema struct {
	Name         string
	PartitionKey string
	SortKey      string
	// Indexes maps an index name to the attribute it is keyed on.
	Indexes map[string]string
}

// Key addresses one record.
type Key struct {
	Partition string
	Sort      string
}

// Query is an equality lookup on the partition key, or on the attribute of a
// named index, optionally narrowed by equality on a second attribute.
type Query struct {
	Index      string
	Value      string
	Field      string
	FieldValue any
}

// Assignment sets one top-level attribute during Update.
type Assignment struct {
	Field string
	Value any
}

// Set builds an Assignment.
func Set(field string, value any) Assignment {
	return Assignment{Field: field, Value: value}
}

// Table is the set of operations available on one document table.
// out arguments are pointers to a struct (single record) or to a slice of
// structs (collections).
type Table interface {
	Schema() Schema
	Put(ctx context.Context, item any) error
	Get(ctx context.Context, key Key, out any) (bool, error)
	BatchGet(ctx context.Context, keys []Key, out any) error
	Update(ctx context.Context, key Key, assignments []Assignment, out any) error
	Delete(ctx context.Context, key Key) error
	Scan(ctx context.Context, out any) error
	Query(ctx context.Context, q Query, out any) error
	BatchWrite(ctx context.Context, items []any) error
}

// Backend hands out tables bound to one storage engine.
type Backend interface {
	Name() string
	Table(schema Schema) (Table, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Backend, error) {
	log = log.Named("store")
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemoryBackend(log), nil
	case config.DriverSQLite, config.DriverPostgres:
		return OpenGORM(cfg.Driver, cfg.DSN, log)
	case config.DriverDynamoDB:
		return OpenDynamo(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// Schemas returns the table layout used by the repositories.
func Schemas(names config.TableNames) map[string]Schema {
	return map[string]Schema{
		"users": {
			Name:         names.Users,
			PartitionKey: "id",
			Indexes:      map[string]string{"email-index": "email"},
		},
		"categories": {
			Name:         names.Categories,
			PartitionKey: "id",
		},
		"products": {
			Name:         names.Products,
			PartitionKey: "id",
			Indexes:      map[string]string{"category-index": "category_id"},
		},
		"cart_items": {
			Name:         names.CartItems,
			PartitionKey: "user_id",
			SortKey:      "product_id",
		},
		"orders": {
			Name:         names.Orders,
			PartitionKey: "id",
			Indexes:      map[string]string{"user-index": "user_id"},
		},
		"order_items": {
			Name:         names.OrderItems,
			PartitionKey: "order_id",
			SortKey:      "product_id",
		},
	}
}

func (s Schema) validate() error {
	if s.Name == "" {
		return errors.New("table name is required")
	}
	if s.PartitionKey == "" {
		return fmt.Errorf("table %s: partition key is required", s.Name)
	}
	return nil
}

// keyAttribute resolves the attribute a query matches on.
func (s Schema) keyAttribute(q Query) (string, error) {
	if q.Index == "" {
		return s.PartitionKey, nil
	}
	attr, ok := s.Indexes[q.Index]
	if !ok {
		return "", fmt.Errorf("table %s has no index %q", s.Name, q.Index)
	}
	return attr, nil
}
