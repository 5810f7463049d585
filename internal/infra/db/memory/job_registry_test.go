package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
)

func newJob(id string) domain.Job {
	return domain.Job{
		ID:           id,
		Status:       domain.StatusProcessed,
		FileName:     "report.pdf",
		ArtifactPath: "uploads/" + id + "_report.pdf",
		Result:       json.RawMessage(`{"summary":"ok"}`),
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestJobRegistry_PutGet(t *testing.T) {
	ctx := context.Background()
	r := NewJobRegistry()

	require.NoError(t, r.Put(ctx, newJob("a")))
	assert.True(t, r.Exists(ctx, "a"))
	assert.False(t, r.Exists(ctx, "b"))
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, newJob("a"), got)
}

func TestJobRegistry_GetUnknown(t *testing.T) {
	_, err := NewJobRegistry().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobRegistry_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	r := NewJobRegistry()
	require.NoError(t, r.Put(ctx, newJob("a")))

	other := newJob("a")
	other.FileName = "other.pdf"
	assert.ErrorIs(t, r.Put(ctx, other), domain.ErrDuplicateJob)

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.FileName)
}

func TestJobRegistry_StoredResultIsImmutable(t *testing.T) {
	ctx := context.Background()
	r := NewJobRegistry()
	job := newJob("a")
	require.NoError(t, r.Put(ctx, job))

	job.Result[2] = 'X'
	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	got.Result[2] = 'Y'

	again, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(again.Result))
}

func TestJobRegistry_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	r := NewJobRegistry()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			assert.NoError(t, r.Put(ctx, newJob(id)))
			_, err := r.Get(ctx, id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, r.Len())
}
