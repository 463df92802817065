package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/internal/apperror"
)

// Response is the envelope every endpoint writes.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Message string                `json:"message"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

func ok(c *fiber.Ctx, message string, data any) error {
	return c.JSON(Response{Success: true, Message: message, Data: data})
}

func created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Message: message, Data: data})
}

// ErrorHandler renders errors returned by handlers and middleware. In
// production the message of unclassified failures is not exposed.
func ErrorHandler(log *zap.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		body := ErrorBody{Message: err.Error()}

		var fiberErr *fiber.Error
		if appErr, found := apperror.As(err); found {
			status = appErr.StatusCode()
			body = ErrorBody{Message: appErr.Message, Details: appErr.Details}
		} else if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			body.Message = fiberErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			if production && status == fiber.StatusInternalServerError {
				body = ErrorBody{Message: "Internal server error"}
			}
		}
		return c.Status(status).JSON(Response{Success: false, Error: &body})
	}
}
