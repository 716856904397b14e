package middleware

import (
	"math"
	"strconv"

	"rapport/pkg/logging"
	"rapport/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimitMessage is the body message of a 429 answer.
const RateLimitMessage = "too many requests, please slow down"

// RateLimit admits each request against the quota of its route class. A
// rejected request gets a bare {"code":429,"message":...} body, not an
// envelope. If the gate itself fails the request is let through.
func RateLimit(gate ratelimit.Gate, quotas ratelimit.Quotas, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		class := ratelimit.ClassOf(c.Path())
		q := quotas.For(class)
		client := ratelimit.ClientKey(c.Get(fiber.HeaderXForwardedFor), c.Get("X-Real-IP"), c.IP())
		key := ratelimit.Key(client, class)

		ok, err := gate.Admit(c.UserContext(), key, q.Limit, q.Window)
		if err != nil {
			log.Warn(c.UserContext(), "rate limit gate unavailable", "key", key, "error", err)
			return c.Next()
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(q.Window.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code":    fiber.StatusTooManyRequests,
				"message": RateLimitMessage,
			})
		}
		return c.Next()
	}
}
