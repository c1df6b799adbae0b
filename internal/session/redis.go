package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oliv/internal/model"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "oliv:session:"

// RedisStore keeps each session as one JSON value with a TTL refreshed on every save
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxMessages int
}

func NewRedisStore(client *redis.Client, ttl time.Duration, maxMessages int) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, maxMessages: maxMessages}
}

// NewRedisClient connects using a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func sessionKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisStore) Load(ctx context.Context, id string) (*model.Session, error) {
	key := sessionKey(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return newSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		// a corrupt entry is treated as an expired one
		return newSession(id), nil
	}
	s.ID = id
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *model.Session) error {
	stored := cloneSession(s)
	stored.History = trimHistory(stored.History, r.maxMessages)
	stored.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	key := sessionKey(s.ID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}
