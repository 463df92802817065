package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storefront/internal/apperror"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		err        error
		status     int
		message    string
	}{
		{"classified", true, apperror.NotFound("Order not found"), fiber.StatusNotFound, "Order not found"},
		{"wrapped", true, errors.Join(errors.New("ctx"), apperror.Conflict("Category still has products")), fiber.StatusConflict, "Category still has products"},
		{"fiber error", true, fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed, "Method Not Allowed"},
		{"internal in production", true, errors.New("dial tcp: refused"), fiber.StatusInternalServerError, "Internal server error"},
		{"internal in development", false, errors.New("dial tcp: refused"), fiber.StatusInternalServerError, "dial tcp: refused"},
		{"unavailable keeps message", true, apperror.Unavailable("Image storage is not configured"), fiber.StatusServiceUnavailable, "Image storage is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zaptest.NewLogger(t), tt.production)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestCheck_FieldDetails(t *testing.T) {
	type nested struct {
		City string `json:"city" validate:"required"`
	}
	type request struct {
		Name    string `json:"name" validate:"required,min=2"`
		Limit   int    `query:"limit" validate:"max=100"`
		Address nested `json:"address"`
	}

	err := check(newValidator(), &request{Name: "x", Limit: 500})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Validation failed", appErr.Message)
	assert.ElementsMatch(t, []apperror.FieldError{
		{Field: "name", Message: "Must be at least 2 characters"},
		{Field: "limit", Message: "Must be at most 100"},
		{Field: "address.city", Message: "This field is required"},
	}, appErr.Details)

	assert.NoError(t, check(newValidator(), &request{Name: "ok", Address: nested{City: "Paris"}}))
}

func TestParsePrice(t *testing.T) {
	got, err := parsePrice("minPrice", "")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parsePrice("minPrice", "39.95")
	require.NoError(t, err)
	assert.Equal(t, "39.95", got.String())

	_, err = parsePrice("maxPrice", "-1")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = parsePrice("maxPrice", "abc")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
