package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

type fakeValidator map[string]*services.Claims

func (f fakeValidator) Authenticate(_ context.Context, token string) (*services.Claims, error) {
	claims, ok := f[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	if claims == nil {
		return nil, services.ErrAccountNotFound
	}
	return claims, nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := apperror.As(err); ok {
				return c.Status(appErr.StatusCode()).SendString(appErr.Message)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	validator := fakeValidator{
		"user-token":  {UserID: "u1", Email: "u1@example.com", Role: models.RoleUser},
		"admin-token": {UserID: "a1", Email: "a1@example.com", Role: models.RoleAdmin},
		"gone-token":  nil,
	}
	app.Get("/me", middleware.AuthRequired(validator), func(c *fiber.Ctx) error {
		return c.SendString(middleware.UserID(c))
	})
	app.Get("/admin", middleware.AuthRequired(validator), middleware.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", "/me", "", fiber.StatusUnauthorized, "Authorization header is required"},
		{"wrong scheme", "/me", "Basic abc", fiber.StatusUnauthorized, "Authorization header format must be 'Bearer <token>'"},
		{"bad token", "/me", "Bearer nope", fiber.StatusUnauthorized, "Invalid or expired token"},
		{"deleted user", "/me", "Bearer gone-token", fiber.StatusUnauthorized, "User not found"},
		{"valid token", "/me", "Bearer user-token", fiber.StatusOK, "u1"},
		{"lowercase scheme", "/me", "bearer user-token", fiber.StatusOK, "u1"},
		{"admin route as user", "/admin", "Bearer user-token", fiber.StatusForbidden, "Admin access required"},
		{"admin route as admin", "/admin", "Bearer admin-token", fiber.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
