package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/models"
	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 10

var errExists = errors.New("content already exists")

// RedisStore keeps each record as a JSON document and maintains two kinds
// of sorted-set indexes:
//
//	<prefix>content:<id>      JSON document
//	<prefix>device:<device>   ids scored by savedAt (µs)
//	<prefix>status:<status>   ids scored by updatedAt (µs)
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) contentKey(id string) string { return s.prefix + "content:" + id }

func (s *RedisStore) deviceKey(deviceID string) string { return s.prefix + "device:" + deviceID }

func (s *RedisStore) statusKey(status models.ProcessingStatus) string {
	return s.prefix + "status:" + string(status)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func decode(data []byte) (*models.Content, error) {
	var c models.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Create(ctx context.Context, c *models.Content) error {
	if c.ID == "" {
		return fmt.Errorf("content id is required")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	key := s.contentKey(c.ID)
	written := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis exists error: %w", err)
		}
		if n > 0 {
			return errExists
		}

		written = true
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.deviceKey(c.DeviceID), redis.Z{Score: score(c.SavedAt), Member: c.ID})
			pipe.ZAdd(ctx, s.statusKey(c.ProcessingStatus), redis.Z{Score: score(c.UpdatedAt), Member: c.ID})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExists), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("content %s already exists", c.ID)
	case written:
		// EXEC does not roll back commands that ran before a failing one
		s.discard(c)
	}
	return fmt.Errorf("redis create error: %w", err)
}

// discard removes whatever part of a failed Create reached Redis
func (s *RedisStore) discard(c *models.Content) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.contentKey(c.ID))
		pipe.ZRem(ctx, s.deviceKey(c.DeviceID), c.ID)
		pipe.ZRem(ctx, s.statusKey(c.ProcessingStatus), c.ID)
		return nil
	})
	if err != nil {
		logger.With("store").Error().Err(err).Str("id", c.ID).Msg("Failed to clean up partial create")
	}
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the record in between.
func (s *RedisStore) Update(ctx context.Context, id string, fn Mutator) (*models.Content, error) {
	key := s.contentKey(id)
	var updated *models.Content

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get error: %w", err)
		}

		current, err := decode(data)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		settle(current, next)

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode content: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			if current.ProcessingStatus != next.ProcessingStatus {
				pipe.ZRem(ctx, s.statusKey(current.ProcessingStatus), id)
			}
			pipe.ZAdd(ctx, s.statusKey(next.ProcessingStatus), redis.Z{Score: score(next.UpdatedAt), Member: id})
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConflict
}

func (s *RedisStore) CountByStatus(ctx context.Context, deviceID string) (map[models.ProcessingStatus]int, error) {
	items, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return countStatuses(items), nil
}

func (s *RedisStore) ListStale(ctx context.Context, status models.ProcessingStatus, before time.Time, limit int) ([]*models.Content, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMicro(), 10),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}

	ids, err := s.client.ZRangeByScore(ctx, s.statusKey(status), by).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore error: %w", err)
	}

	items, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, c := range items {
		// the index can briefly lag the document
		if c.ProcessingStatus == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
