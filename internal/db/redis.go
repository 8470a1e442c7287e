package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and pings it. connString is either a redis:// URL
// or a plain host:port address.
func NewRedisClient(ctx context.Context, connString string) (*redis.Client, error) {
	if connString == "" {
		connString = "localhost:6379"
	}

	opts := &redis.Options{Addr: connString}
	if strings.Contains(connString, "://") {
		parsed, err := redis.ParseURL(connString)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	// Ping the server to ensure the connection is established.
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}
