package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// FiberMiddleware returns a fiber handler that logs one line per request.
// It must be registered after the requestid middleware so the id is available.
func FiberMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		c.SetUserContext(WithRequestID(c.UserContext(), c.GetRespHeader(fiber.HeaderXRequestID)))

		chainErr := c.Next()
		if chainErr != nil {
			// Let the app's ErrorHandler write the response so the status is final.
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.IP()),
		}
		if q := string(c.Request().URI().QueryString()); q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if chainErr != nil {
			fields = append(fields, zap.Error(chainErr))
		}

		msg := "HTTP Request"
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error(msg, fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn(msg, fields...)
		default:
			log.Info(msg, fields...)
		}
		return nil
	}
}

// Recovery returns a fiber handler that turns panics into errors for the
// ErrorHandler and logs them with a stack trace.
func Recovery(log *zap.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error("Panic recovered",
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("error", e),
				zap.Stack("stacktrace"),
			)
		},
	})
}
