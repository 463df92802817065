package repositories

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Tables holds one store table per entity.
type Tables struct {
	Users      store.Table
	Categories store.Table
	Products   store.Table
	CartItems  store.Table
	Orders     store.Table
	OrderItems store.Table
}

// OpenTables binds every entity schema to the backend.
func OpenTables(b store.Backend, names config.TableNames) (*Tables, error) {
	schemas := store.Schemas(names)
	open := func(name string) (store.Table, error) {
		t, err := b.Table(schemas[name])
		if err != nil {
			return nil, fmt.Errorf("failed to open %s table: %w", name, err)
		}
		return t, nil
	}

	var (
		tables Tables
		err    error
	)
	if tables.Users, err = open("users"); err != nil {
		return nil, err
	}
	if tables.Categories, err = open("categories"); err != nil {
		return nil, err
	}
	if tables.Products, err = open("products"); err != nil {
		return nil, err
	}
	if tables.CartItems, err = open("cart_items"); err != nil {
		return nil, err
	}
	if tables.Orders, err = open("orders"); err != nil {
		return nil, err
	}
	if tables.OrderItems, err = open("order_items"); err != nil {
		return nil, err
	}
	return &tables, nil
}

// Option configures a repository.
type Option func(*options)

type options struct {
	now        func() time.Time
	log        *zap.Logger
	bcryptCost int
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger; repositories log under a named child.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBcryptCost sets the password hashing cost for the user repository.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func buildOptions(name string, opts []Option) options {
	o := options{
		now:        models.Now,
		log:        zap.NewNop(),
		bcryptCost: 12,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bcryptCost < bcrypt.MinCost {
		o.bcryptCost = bcrypt.DefaultCost
	}
	o.log = o.log.Named("repositories." + name)
	return o
}

// clock hands out strictly increasing timestamps so that an update always
// moves updated_at forward, even within one tick of the wall clock.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// notFound converts the store's missing-key error into a domain error.
func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return err
}
