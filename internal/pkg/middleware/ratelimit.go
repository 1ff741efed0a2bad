package middleware

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/fleetward/fleetward/internal/pkg/cache"
)

// limiterDatabase keeps limiter counters apart from cached data in DB 0.
const limiterDatabase = 1

// NewLimiterStorage returns a redis-backed fiber.Storage that shares the
// cache's server and credentials.
func NewLimiterStorage(c *cache.Cache) fiber.Storage {
	opts := c.Client().Options()
	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: opts.Username,
		Password: opts.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}

// RateLimit allows max requests per minute per client IP. A nil storage
// keeps counters in process memory.
func RateLimit(max int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	})
}
