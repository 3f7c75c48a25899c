// Package cache holds the Redis read-through cache for the Users & Roles view.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"journalflow.org/internal/config"
	"journalflow.org/internal/workflow"
)

const keyPrefix = "journalflow:journal:"

// Client is the subset of go-redis used here.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient builds a pooled go-redis client and checks the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// UsersCache implements workflow.UsersCache.
type UsersCache struct {
	rdb Client
	ttl time.Duration
}

var _ workflow.UsersCache = (*UsersCache)(nil)

func NewUsersCache(rdb Client, ttl time.Duration) *UsersCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UsersCache{rdb: rdb, ttl: ttl}
}

func usersKey(contextID string) string {
	return keyPrefix + contextID + ":users"
}

func (c *UsersCache) Get(ctx context.Context, contextID string) ([]workflow.JournalUser, bool, error) {
	raw, err := c.rdb.Get(ctx, usersKey(contextID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var users []workflow.JournalUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, false, fmt.Errorf("decode cached users: %w", err)
	}
	return users, true, nil
}

func (c *UsersCache) Set(ctx context.Context, contextID string, users []workflow.JournalUser) error {
	if users == nil {
		users = []workflow.JournalUser{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, usersKey(contextID), raw, c.ttl).Err()
}

func (c *UsersCache) Invalidate(ctx context.Context, contextID string) error {
	return c.rdb.Del(ctx, usersKey(contextID)).Err()
}
