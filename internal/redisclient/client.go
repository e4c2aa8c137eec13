package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

//go:embed scripts/debit_balance.lua
var debitBalanceScript string

//go:embed scripts/credit_balance.lua
var creditBalanceScript string

type Client struct {
	rdb          *redis.Client
	debitScript  *redis.Script
	creditScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		debitScript:  redis.NewScript(debitBalanceScript),
		creditScript: redis.NewScript(creditBalanceScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func balanceKey(customerID string) string {
	return fmt.Sprintf("balance:%s", customerID)
}

// InitBalance seeds the cached balance mirror for a customer
func (c *Client) InitBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	return c.rdb.Set(ctx, balanceKey(customerID), balance.StringFixed(2), 0).Err()
}

// DebitBalanceMirror atomically subtracts amount from the cached balance,
// clamped at zero. The mirror is advisory; Postgres holds the authoritative
// balance and applies the same clamp.
func (c *Client) DebitBalanceMirror(ctx context.Context, customerID string, amount decimal.Decimal) error {
	_, err := c.debitScript.Run(ctx, c.rdb,
		[]string{balanceKey(customerID)}, amount.StringFixed(2)).Result()
	if err != nil {
		return fmt.Errorf("debit balance script failed: %w", err)
	}
	return nil
}

// CreditBalanceMirror atomically adds amount to the cached balance
func (c *Client) CreditBalanceMirror(ctx context.Context, customerID string, amount decimal.Decimal) error {
	_, err := c.creditScript.Run(ctx, c.rdb,
		[]string{balanceKey(customerID)}, amount.StringFixed(2)).Result()
	if err != nil {
		return fmt.Errorf("credit balance script failed: %w", err)
	}
	return nil
}

// GetBalanceMirror retrieves the cached balance, if present
func (c *Client) GetBalanceMirror(ctx context.Context, customerID string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, balanceKey(customerID)).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt balance mirror for %s: %w", customerID, err)
	}
	return balance, true, nil
}

// Publish sends a notification payload to a pub/sub channel
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a pub/sub subscription on the given channels
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
