// internal/pkg/cooldown/guard.go
package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the subset of the redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Guard struct {
	client Store
	window time.Duration
	logger *zap.Logger
}

func NewGuard(client Store, window time.Duration, logger *zap.Logger) *Guard {
	return &Guard{client: client, window: window, logger: logger}
}

// Allow reports whether an action on subject may run now. The first call in a
// window wins; the rest are rejected until the key expires. Redis failures
// allow the action.
func (g *Guard) Allow(ctx context.Context, action, subject string) bool {
	if g == nil || g.client == nil || g.window <= 0 {
		return true
	}

	key := fmt.Sprintf("cooldown:%s:%s", action, subject)
	ok, err := g.client.SetNX(ctx, key, "1", g.window).Result()
	if err != nil {
		g.logger.Warn("cooldown check failed, allowing action",
			zap.String("action", action),
			zap.String("subject", subject),
			zap.Error(err))
		return true
	}
	return ok
}

// Reset clears the cooldown so the next action on subject is allowed.
func (g *Guard) Reset(ctx context.Context, action, subject string) error {
	if g == nil || g.client == nil {
		return nil
	}
	key := fmt.Sprintf("cooldown:%s:%s", action, subject)
	return g.client.Del(ctx, key).Err()
}
