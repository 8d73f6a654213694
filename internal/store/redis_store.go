package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scoreapp/score/internal/model"
)

const maxUpdateRetries = 10

// RedisStore keeps jobs as JSON under job:<id> with a fixed TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Update runs fn inside an optimistic WATCH transaction and retries when the
// key changed underneath it.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(job *model.Job) error) (*model.Job, error) {
	key := jobKey(id)
	var updated *model.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update job %s: too many concurrent writers", id)
}
