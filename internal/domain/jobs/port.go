package jobs

import (
	"context"
	"io"
)

// Registry port: authoritative in-memory mapping from job id to record.
// There is deliberately no update or delete.
type Registry interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Exists(ctx context.Context, id string) bool
	Len() int
}

// ArtifactStore port (storage for uploaded file bytes)
type ArtifactStore interface {
	// Put persists r under a path derived from jobID and fileName and returns that path.
	Put(ctx context.Context, jobID, fileName string, r io.Reader) (string, error)
	// Open returns the bytes stored at path. Callers must close the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove deletes a stored artifact; used to clean up after a failed upload.
	Remove(ctx context.Context, path string) error
}
