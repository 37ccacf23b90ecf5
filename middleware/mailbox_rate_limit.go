package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"tempinbox/utils"
)

// mailboxRateLimitPrefix namespaces limiter counters; the redis client is
// shared with the session store.
const mailboxRateLimitPrefix = "rl:mailbox:"

// MailboxRateLimiter caps mailbox creation per account, shielding the
// upstream providers. maxRequests <= 0 disables the limit. A nil storage keeps
// counters in memory.
func MailboxRateLimiter(maxRequests int, storage fiber.Storage) fiber.Handler {
	if maxRequests <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			// userID is set by Protected, which runs first
			userID, _ := c.Locals("userID").(uint)
			return fmt.Sprintf("%s%d", mailboxRateLimitPrefix, userID)
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"user_id":    c.Locals("userID"),
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get(fiber.HeaderUserAgent),
			})

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many mailbox requests. Please wait before trying again.",
				"retry_after": "1 minute",
			})
		},
		Storage: storage,
	})
}

// RedisStorage implements fiber.Storage for Redis
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (r *RedisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		// fiber.Storage expects nil, nil for a missing key
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

// Reset removes the limiter's counters only.
func (r *RedisStorage) Reset() error {
	ctx := context.Background()

	var keys []string
	iter := r.client.Scan(ctx, 0, mailboxRateLimitPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close is a no-op; the client is shared with the session store and closed
// by its owner.
func (r *RedisStorage) Close() error {
	return nil
}
