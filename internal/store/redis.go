package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "vpsdash:"

// RedisStore keeps each collection in one redis hash, field = record key.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	if key != "" {
		body, err := s.rdb.HGet(ctx, s.hashKey(collection), key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w: %v", path, ErrUnavailable, err)
		}
		return body, nil
	}

	fields, err := s.rdb.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %v", path, ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	records := make(map[string]json.RawMessage, len(fields))
	for field, body := range fields {
		if !json.Valid([]byte(body)) {
			log.Warn().Str("path", path).Str("field", field).Msg("store: skipping record with invalid json")
			continue
		}
		records[field] = json.RawMessage(body)
	}
	if len(records) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return payload, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set %s: marshal json: %w", path, err)
	}
	if err := s.rdb.HSet(ctx, s.hashKey(collection), key, body).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

// Update reads, merges and writes back; concurrent writers follow last-write-wins.
func (s *RedisStore) Update(ctx context.Context, path string, patch map[string]any) error {
	collection, key, err := recordPath(path)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	current, err := s.rdb.HGet(ctx, s.hashKey(collection), key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("update %s: %w: %v", path, ErrUnavailable, err)
	}

	merged, err := mergePatch(current, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := s.rdb.HSet(ctx, s.hashKey(collection), key, []byte(merged)).Err(); err != nil {
		return fmt.Errorf("update %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Push(_ context.Context, path string) (string, error) {
	if _, _, err := splitPath(path); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return NewPushID(), nil
}

func (s *RedisStore) Remove(ctx context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if key == "" {
		err = s.rdb.Del(ctx, s.hashKey(collection)).Err()
	} else {
		err = s.rdb.HDel(ctx, s.hashKey(collection), key).Err()
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) hashKey(collection string) string {
	return redisKeyPrefix + collection
}
