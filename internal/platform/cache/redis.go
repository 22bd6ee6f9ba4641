// Package cache connects to Redis for queues and distributed locks.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Options describes the Redis endpoint.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ClientOptions converts to go-redis options.
func (o Options) ClientOptions() *redis.Options {
	return &redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// New creates a Redis client and pings it.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(opts.ClientOptions())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// NewLocker builds a distributed lock client on top of the redis connection.
func NewLocker(client redis.UniversalClient) *redislock.Client {
	return redislock.New(client)
}
