package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Hommy-master/capcut-mate-data/utils"
)

// RateLimiter bounds per-client request rates on the API group. With a
// redis client the counters are shared across workers; a nil client keeps
// them in process memory. A max of zero or less disables limiting.
func RateLimiter(rdb *redis.Client, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	if window <= 0 {
		window = time.Minute
	}

	cfg := limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Rate limit exceeded, please try again later")
		},
	}
	if rdb != nil {
		cfg.Storage = redisstorage.NewFromConnection(rdb)
	}
	return limiter.New(cfg)
}
