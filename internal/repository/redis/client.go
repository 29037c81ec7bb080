package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection. The client is
// returned to the caller for injection; unlike the database, a dead cache
// is fatal here because the refresh-token store is the sole authority for
// token validity.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
