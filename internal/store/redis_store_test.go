package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scoreapp/score/internal/model"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore_SaveGet(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	job := &model.Job{ID: "job-1", Status: model.JobStatusQueued, FileName: "song.wav"}
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FileName != "song.wav" || got.Status != model.JobStatusQueued {
		t.Errorf("unexpected job %+v", got)
	}
	if ttl := mr.TTL(jobKey("job-1")); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_Update(t *testing.T) {
	errAbort := errors.New("abort")

	tests := []struct {
		name     string
		id       string
		fn       func(job *model.Job) error
		wantErr  error
		wantProg int
	}{
		{
			name:     "applies change",
			id:       "job-1",
			fn:       func(job *model.Job) error { job.Progress = 40; return nil },
			wantProg: 40,
		},
		{
			name:     "callback error aborts",
			id:       "job-1",
			fn:       func(job *model.Job) error { job.Progress = 99; return errAbort },
			wantErr:  errAbort,
			wantProg: 10,
		},
		{
			name:    "missing job",
			id:      "missing",
			fn:      func(job *model.Job) error { return nil },
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestRedisStore(t)
			ctx := context.Background()
			if err := s.Save(ctx, &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Progress: 10}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			updated, err := s.Update(ctx, tt.id, tt.fn)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Update failed: %v", err)
			} else if updated.Progress != tt.wantProg {
				t.Errorf("returned progress %d, want %d", updated.Progress, tt.wantProg)
			}

			if tt.id != "job-1" {
				return
			}
			stored, err := s.Get(ctx, "job-1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if stored.Progress != tt.wantProg {
				t.Errorf("stored progress %d, want %d", stored.Progress, tt.wantProg)
			}
		})
	}
}

func TestRedisStore_UpdateRetriesOnConflict(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Progress: 10}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	calls := 0
	updated, err := s.Update(ctx, "job-1", func(job *model.Job) error {
		calls++
		if calls == 1 {
			// another writer lands between WATCH and EXEC
			data, _ := json.Marshal(&model.Job{ID: "job-1", Status: model.JobStatusProcessing, Progress: 50})
			if err := other.Set(ctx, jobKey("job-1"), data, time.Hour).Err(); err != nil {
				t.Fatalf("concurrent write failed: %v", err)
			}
		}
		job.Progress++
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected one retry, callback ran %d times", calls)
	}
	if updated.Progress != 51 {
		t.Errorf("expected update on top of the concurrent write (51), got %d", updated.Progress)
	}
}

func TestRedisStore_UpdateGivesUp(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, &model.Job{ID: "job-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	calls := 0
	_, err := s.Update(ctx, "job-1", func(job *model.Job) error {
		calls++
		if err := other.Set(ctx, jobKey("job-1"), `{"id":"job-1"}`, time.Hour).Err(); err != nil {
			t.Fatalf("concurrent write failed: %v", err)
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error after constant conflicts")
	}
	if calls != maxUpdateRetries {
		t.Errorf("expected %d attempts, got %d", maxUpdateRetries, calls)
	}
}
