package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smmstore/internal/logger"
)

const orderListTTL = 30 * time.Second

// OrderViews caches per-user order listings. It is an optimization layer:
// every operation degrades to a miss on redis errors.
type OrderViews struct {
	redis *redis.Client
}

func NewOrderViews(redisAddr string) *OrderViews {
	return &OrderViews{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
	}
}

func NewOrderViewsWithClient(client *redis.Client) *OrderViews {
	return &OrderViews{redis: client}
}

func userOrdersKey(userID int) string {
	return fmt.Sprintf("orders:user:%d", userID)
}

func (c *OrderViews) GetUserOrders(ctx context.Context, userID int, dest interface{}) bool {
	data, err := c.redis.Get(ctx, userOrdersKey(userID)).Bytes()
	if err != nil {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logger.Errorf("Bad cached order list for user %d: %v", userID, err)
		return false
	}

	return true
}

func (c *OrderViews) SetUserOrders(ctx context.Context, userID int, orders interface{}) {
	data, err := json.Marshal(orders)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, userOrdersKey(userID), data, orderListTTL).Err(); err != nil {
		logger.Errorf("Failed to cache order list for user %d: %v", userID, err)
	}
}

// InvalidateUserOrders drops the cached listing after any transition that
// touches one of the user's orders.
func (c *OrderViews) InvalidateUserOrders(ctx context.Context, userID int) {
	if err := c.redis.Del(ctx, userOrdersKey(userID)).Err(); err != nil {
		logger.Errorf("Failed to invalidate order cache for user %d: %v", userID, err)
	}
}

func (c *OrderViews) Close() error {
	return c.redis.Close()
}
