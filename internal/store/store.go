package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/scoreapp/score/internal/model"
)

var ErrNotFound = errors.New("job not found")

// JobStore persists job records. Implementations hand out copies, so a job
// returned by Get is never shared with another caller.
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies fn to the stored job atomically and saves the result.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(job *model.Job) error) (*model.Job, error)
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}
