package alerts

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/UmarSaeed090/sensors-backend/internal/logger"
)

// RedisCooldown tracks last-sent times in Redis so multiple ingest nodes
// share one suppression window. SET NX with a TTL of one window makes the
// check-and-set atomic on the server: the first writer wins, everyone else
// is suppressed until the key expires.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisCooldown creates a Redis-backed tracker and verifies connectivity
func NewRedisCooldown(client *redis.Client, window time.Duration) (*RedisCooldown, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCooldown{
		client: client,
		window: window,
		prefix: "cooldown:",
	}, nil
}

// Allow implements CooldownTracker. A Redis failure fails open: a duplicate
// notification is preferable to a missed one.
func (c *RedisCooldown) Allow(tagNumber, condition string, now time.Time) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := c.prefix + cooldownKey(tagNumber, condition)

	ok, err := c.client.SetNX(ctx, key, now.UnixMilli(), c.window).Result()
	if err != nil {
		log := logger.WithComponent("cooldown")
		log.Error().Err(err).Str("key", key).Msg("redis cooldown check failed, allowing send")
		return true
	}

	return ok
}

// Close implements CooldownTracker
func (c *RedisCooldown) Close() error {
	return c.client.Close()
}
