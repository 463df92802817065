package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// UserHandler serves the signed-in user's account endpoints.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service, validate: newValidator()}
}

func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	userRoutes := router.Group("/users", auth)
	userRoutes.Get("/profile", h.HandleGetProfile)
	userRoutes.Put("/profile", h.HandleUpdateProfile)
	userRoutes.Put("/change-password", h.HandleChangePassword)
	userRoutes.Delete("/deactivate", h.HandleDeactivate)
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=50"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (h *UserHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := h.service.Profile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"user": toUser(*user)})
}

func (h *UserHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.UserContext(), middleware.UserID(c), models.UserPatch{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		return err
	}
	return ok(c, "Profile updated successfully", fiber.Map{"user": toUser(*user)})
}

func (h *UserHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := bindBody(c, h.validate, &req); err != nil {
		return err
	}
	if err := h.service.ChangePassword(c.UserContext(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, "Password changed successfully", nil)
}

func (h *UserHandler) HandleDeactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.UserContext(), middleware.UserID(c)); err != nil {
		return err
	}
	return ok(c, "Account deactivated successfully", nil)
}
