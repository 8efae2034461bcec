package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// OrderLock serializes order state transitions across processes using
// Redis SET NX with a TTL. The TTL bounds how long a crashed holder can
// keep an order locked.
type OrderLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrderLock builds an OrderLock on the shared Redis client
func NewOrderLock(client *redis.Client, ttl time.Duration) *OrderLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OrderLock{client: client, ttl: ttl}
}

func (l *OrderLock) key(orderID int) string {
	return fmt.Sprintf("cert_order:lock:%d", orderID)
}

// Acquire takes the per-order lock. It returns false without error when
// another holder owns it.
func (l *OrderLock) Acquire(ctx context.Context, orderID int) (bool, error) {
	return l.client.SetNX(ctx, l.key(orderID), 1, l.ttl).Result()
}

// Release drops the per-order lock
func (l *OrderLock) Release(ctx context.Context, orderID int) {
	l.client.Del(ctx, l.key(orderID))
}
