package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// UserService manages the signed-in user's own account.
type UserService struct {
	userRepo repositories.UserRepository
	cartRepo repositories.CartRepository
	log      *zap.Logger
}

func NewUserService(userRepo repositories.UserRepository, cartRepo repositories.CartRepository, log *zap.Logger) *UserService {
	return &UserService{userRepo: userRepo, cartRepo: cartRepo, log: log.Named("services.user")}
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.SafeUser, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	safe := user.Safe()
	return &safe, nil
}

// UpdateProfile changes name and email. Role changes are not accepted here.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch models.UserPatch) (*models.SafeUser, error) {
	patch.Role = nil
	if patch.Email != nil {
		other, err := s.userRepo.FindByEmail(ctx, *patch.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != userID {
			return nil, apperror.Conflict("Email already in use")
		}
	}
	user, err := s.userRepo.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	safe := user.Safe()
	return &safe, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !s.userRepo.VerifyPassword(user, current) {
		return apperror.Unauthorized("Current password is incorrect")
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, next); err != nil {
		return err
	}
	s.log.Info("Password changed", zap.String("user_id", userID))
	return nil
}

// Deactivate removes the account and its cart.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if !s.userRepo.Delete(ctx, userID) {
		return apperror.Internal("Failed to deactivate account", nil)
	}
	s.log.Info("Account deactivated", zap.String("user_id", userID))
	return nil
}
