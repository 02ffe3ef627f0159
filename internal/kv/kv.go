package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Store is the key-value layer all site data lives in. Values are JSON
// documents; list-valued keys hold JSON arrays of ids.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, 0).Err()
}

// SetWithTTL stores a value that the store may expire on its own, used for
// admin session records.
func (s *Store) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

// Get unmarshals the value at key into dest. The second return is false when
// the key does not exist. Transient read failures are retried with
// exponential backoff before surfacing.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	var payload []byte
	op := func() error {
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return backoff.Permanent(redis.Nil)
		}
		if err != nil {
			return err
		}
		payload = raw
		return nil
	}

	err := backoff.Retry(op, readBackoff(ctx))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(payload, dest)
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// MGet returns the raw JSON payload for each key, nil for keys that do not
// exist. Callers skip the nils; that is how stale index entries are
// tolerated.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	payloads := make([][]byte, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			payloads[i] = []byte(str)
		}
	}
	return payloads, nil
}

// GetByPrefix scans for keys under prefix and returns their raw payloads.
func (s *Store) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	payloads, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	var present [][]byte
	for _, p := range payloads {
		if p != nil {
			present = append(present, p)
		}
	}
	return present, nil
}

// IDs reads a list-valued key; a missing key is an empty list.
func (s *Store) IDs(ctx context.Context, key string) ([]string, error) {
	var ids []string
	found, err := s.Get(ctx, key, &ids)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return ids, nil
}

// AppendID adds id to the end of a list-valued key.
func (s *Store) AppendID(ctx context.Context, key, id string) error {
	ids, err := s.IDs(ctx, key)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, append(ids, id))
}

// RemoveID deletes every occurrence of id from a list-valued key.
func (s *Store) RemoveID(ctx context.Context, key, id string) error {
	ids, err := s.IDs(ctx, key)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return s.Set(ctx, key, kept)
}

func readBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}
