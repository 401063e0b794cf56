// Package redis provides the registry read-through cache for lunamint.
// It caches bill records by serial and per-owner serial listings.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taellinglin/lunamint/internal/registry"
)

// ErrCacheMiss is returned when a key is absent from the cache.
var ErrCacheMiss = fmt.Errorf("cache miss")

// Client wraps Redis operations for the bill registry
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// NewClient creates a new Redis client
func NewClient(cfg *Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetBill caches a bill record by serial.
func (c *Client) SetBill(ctx context.Context, record *registry.BillRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal bill record: %w", err)
	}

	key := fmt.Sprintf("bill:%s", record.BillSerial)
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache bill: %w", err)
	}
	return nil
}

// GetBill retrieves a cached bill record by serial.
func (c *Client) GetBill(ctx context.Context, serial string) (*registry.BillRecord, error) {
	key := fmt.Sprintf("bill:%s", serial)
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached bill: %w", err)
	}

	var record registry.BillRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached bill: %w", err)
	}
	return &record, nil
}

// InvalidateOwner drops the cached portfolio listing for an owner. Called
// on every Put so owner queries never serve a stale bill set.
func (c *Client) InvalidateOwner(ctx context.Context, address string) error {
	key := fmt.Sprintf("owner:%s", address)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate owner cache: %w", err)
	}
	return nil
}

// SetOwnerBills caches the record listing for an owner.
func (c *Client) SetOwnerBills(ctx context.Context, address string, records []*registry.BillRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal owner bills: %w", err)
	}

	key := fmt.Sprintf("owner:%s", address)
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache owner bills: %w", err)
	}
	return nil
}

// GetOwnerBills retrieves the cached record listing for an owner.
func (c *Client) GetOwnerBills(ctx context.Context, address string) ([]*registry.BillRecord, error) {
	key := fmt.Sprintf("owner:%s", address)
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached owner bills: %w", err)
	}

	var records []*registry.BillRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached owner bills: %w", err)
	}
	return records, nil
}
