package memory

import (
	"context"
	"sync"

	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
)

// JobRegistry is the process-wide job table. Records are write-once; reads
// hand out copies so the stored analysis can never be mutated.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]domain.Job)}
}

// Put inserts a new record and refuses to overwrite an existing id.
func (r *JobRegistry) Put(_ context.Context, job domain.Job) error {
	stored := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrDuplicateJob
	}
	r.jobs[job.ID] = stored
	return nil
}

func (r *JobRegistry) Get(_ context.Context, id string) (domain.Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (r *JobRegistry) Exists(_ context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.jobs[id]
	return ok
}

func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
