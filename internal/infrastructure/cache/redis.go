// Package cache holds the Redis-backed short-lived stores: OAuth state and webhook idempotency keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
)

// ErrMiss is returned when a key is absent or already consumed.
var ErrMiss = errors.New("cache miss")

const (
	oauthStatePrefix  = "crm:oauth:state:"
	idempotencyPrefix = "crm:idem:"
)

// NewRedisClient creates a client from configuration and verifies it answers PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// OAuthState binds a consent round-trip to the user who started it.
type OAuthState struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Provider  string `json:"provider"`
}

// StateStore keeps OAuth state values until they are consumed once.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Save(ctx context.Context, state string, value OAuthState) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, oauthStatePrefix+state, data, s.ttl).Err()
}

// Consume returns the stored value and deletes it atomically. A second call returns ErrMiss.
func (s *StateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	raw, err := s.client.GetDel(ctx, oauthStatePrefix+state).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	var value OAuthState
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("corrupt oauth state: %w", err)
	}
	return &value, nil
}

// IdempotencyStore records processed external notifications.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim returns true for the first caller of a key within the TTL window.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, idempotencyPrefix+key, time.Now().UTC().Unix(), s.ttl).Result()
}

// Release drops a claim so a failed attempt can be retried by the sender.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key).Err()
}
