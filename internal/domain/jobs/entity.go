package jobs

import (
	"encoding/json"
	"time"
)

// Status enum
type Status string

const (
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	// StatusNotFound is only ever reported by status polling, never stored.
	StatusNotFound Status = "not_found"
)

// Job is the record kept by the registry for one upload-to-analysis lifecycle.
// Records are write-once: Result is set exactly when Status is processed.
type Job struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	FileName     string          `json:"file_name"`
	ArtifactPath string          `json:"artifact_path"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	out := j
	if j.Result != nil {
		out.Result = append(json.RawMessage(nil), j.Result...)
	}
	return out
}
