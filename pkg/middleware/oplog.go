package middleware

import (
	"time"

	"rapport/pkg/envelope"
	"rapport/pkg/logging"

	"github.com/gofiber/fiber/v2"
)

// OperationLog writes one line per request once the handler chain returns.
func OperationLog(log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _, _ = Translate(err)
		}

		args := []any{
			"method", c.Method(),
			"route", c.Route().Path,
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"trace_id", envelope.TraceID(c),
		}
		if p, ok := Principal(c); ok {
			args = append(args, "user_id", p.UserID)
		}

		switch {
		case status >= 500:
			log.Warn(c.UserContext(), "operation", args...)
		default:
			log.Info(c.UserContext(), "operation", args...)
		}
		return err
	}
}
