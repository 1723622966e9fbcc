package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"body-metrics/internal/models"
)

// ErrCacheMiss 表示键不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore 基于 go-redis 的 KV 实现
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// HistoryStore 体重历史的持久化能力
type HistoryStore interface {
	Load(ctx context.Context) (map[string][]models.HistoryEntry, error)
	Save(ctx context.Context, histories map[string][]models.HistoryEntry) error
}

// KVHistoryStore 将整表历史以 JSON 形式存入单个 KV 键（不设 TTL）
type KVHistoryStore struct {
	kv  KVStore
	key string
}

func NewKVHistoryStore(kv KVStore, key string) *KVHistoryStore {
	return &KVHistoryStore{kv: kv, key: key}
}

func (s *KVHistoryStore) Load(ctx context.Context) (map[string][]models.HistoryEntry, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return map[string][]models.HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read history key %s: %w", s.key, err)
	}

	var histories map[string][]models.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &histories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return histories, nil
}

func (s *KVHistoryStore) Save(ctx context.Context, histories map[string][]models.HistoryEntry) error {
	data, err := json.Marshal(histories)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data), 0); err != nil {
		return fmt.Errorf("failed to write history key %s: %w", s.key, err)
	}
	return nil
}
