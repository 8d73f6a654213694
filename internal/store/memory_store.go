package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/scoreapp/score/internal/model"
)

// MemoryStore is an in-process JobStore for single-node runs and tests. Jobs
// are held as JSON so that callers never share a record, the same as with
// RedisStore.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(jobKey(job.ID), data)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(jobKey(id))
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(job *model.Job) error) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey(id)
	job, err := s.getLocked(key)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	s.putLocked(key, data)
	return job, nil
}

func (s *MemoryStore) getLocked(key string) (*model.Job, error) {
	entry, ok := s.jobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().After(entry.expires) {
		delete(s.jobs, key)
		return nil, ErrNotFound
	}

	var job model.Job
	if err := json.Unmarshal(entry.data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *MemoryStore) putLocked(key string, data []byte) {
	s.jobs[key] = memoryEntry{
		data:    data,
		expires: s.now().Add(s.ttl),
	}
}
