package repositories

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
	"storefront/internal/store"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, data models.CreateUserData) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	UpdatePassword(ctx context.Context, id, password string) error
	VerifyPassword(user *models.User, password string) bool
	Delete(ctx context.Context, id string) bool
}

type storeUserRepository struct {
	table      store.Table
	clock      *clock
	log        *zap.Logger
	bcryptCost int
}

// NewUserRepository creates a user repository over the users table.
func NewUserRepository(table store.Table, opts ...Option) UserRepository {
	o := buildOptions("user", opts)
	return &storeUserRepository{
		table:      table,
		clock:      newClock(o.now),
		log:        o.log,
		bcryptCost: o.bcryptCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *storeUserRepository) Create(ctx context.Context, data models.CreateUserData) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := data.Role
	if role == "" {
		role = models.RoleUser
	}
	now := r.clock.Now()
	user := &models.User{
		ID:           models.NewID(),
		Email:        normalizeEmail(data.Email),
		PasswordHash: string(hash),
		Name:         data.Name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.table.Put(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *storeUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := r.table.Get(ctx, store.Key{Partition: id}, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (r *storeUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	err := r.table.Query(ctx, store.Query{Index: "email-index", Value: normalizeEmail(email)}, &users)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *storeUserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	var set []store.Assignment
	if patch.Name != nil {
		set = append(set, store.Set("name", *patch.Name))
	}
	if patch.Email != nil {
		set = append(set, store.Set("email", normalizeEmail(*patch.Email)))
	}
	if patch.Role != nil {
		set = append(set, store.Set("role", *patch.Role))
	}
	set = append(set, store.Set("updated_at", r.clock.Now()))

	var user models.User
	if err := r.table.Update(ctx, store.Key{Partition: id}, set, &user); err != nil {
		return nil, notFound(err, "User not found")
	}
	return &user, nil
}

func (r *storeUserRepository) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	set := []store.Assignment{
		store.Set("password_hash", string(hash)),
		store.Set("updated_at", r.clock.Now()),
	}
	if err := r.table.Update(ctx, store.Key{Partition: id}, set, nil); err != nil {
		return notFound(err, "User not found")
	}
	return nil
}

func (r *storeUserRepository) VerifyPassword(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (r *storeUserRepository) Delete(ctx context.Context, id string) bool {
	if err := r.table.Delete(ctx, store.Key{Partition: id}); err != nil {
		r.log.Error("failed to delete user", zap.String("user_id", id), zap.Error(err))
		return false
	}
	return true
}
