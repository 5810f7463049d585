package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bryanwahyu/docanalyst/internal/domain/documents"
	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
)

const (
	defaultContextCacheSize = 256
	contextLoadTimeout      = 30 * time.Second
)

// contextCache holds the prompt context built for each job. Jobs are
// write-once, so an entry never goes stale; eviction only bounds memory.
type contextCache struct {
	entries *lru.Cache[string, string]
}

func newContextCache(size int) (*contextCache, error) {
	if size <= 0 {
		size = defaultContextCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create context cache: %w", err)
	}
	return &contextCache{entries: c}, nil
}

func (c *contextCache) Get(jobID string) (string, bool) { return c.entries.Get(jobID) }

func (c *contextCache) Add(jobID, text string) { c.entries.Add(jobID, text) }

// documentContext returns the cached context for job or rebuilds it from the
// stored artifact. Concurrent misses for the same job share one extraction,
// which runs detached from the caller so one cancelled request cannot fail or
// poison the load for the others.
func (s *Service) documentContext(ctx context.Context, job domain.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text, ok := s.contexts.Get(job.ID); ok {
		return text, nil
	}
	ch := s.loads.DoChan(job.ID, func() (any, error) {
		if text, ok := s.contexts.Get(job.ID); ok {
			return text, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), contextLoadTimeout)
		defer cancel()
		data, err := s.readArtifact(loadCtx, job.ArtifactPath)
		if err != nil {
			return "", fmt.Errorf("load document context for job %s: %w", job.ID, err)
		}
		doc := s.extractor.Extract(loadCtx, job.FileName, data)
		if err := loadCtx.Err(); err != nil {
			return "", fmt.Errorf("load document context for job %s: %w", job.ID, err)
		}
		text := buildContext(job.Result, doc.Text, s.maxContextChars)
		s.contexts.Add(job.ID, text)
		return text, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return res.Val.(string), nil
	}
}

// buildContext puts the stored summary ahead of the raw text and caps the
// whole thing at maxChars bytes without splitting a rune.
func buildContext(result json.RawMessage, text string, maxChars int) string {
	var b strings.Builder
	var parsed struct {
		Summary      string `json:"summary"`
		DocumentType string `json:"documentType"`
	}
	if json.Unmarshal(result, &parsed) == nil {
		if parsed.DocumentType != "" {
			fmt.Fprintf(&b, "Document type: %s\n", parsed.DocumentType)
		}
		if parsed.Summary != "" {
			fmt.Fprintf(&b, "Analysis summary: %s\n", parsed.Summary)
		}
	}
	b.WriteString("\nDocument text:\n")
	if t := strings.TrimSpace(text); t != "" {
		b.WriteString(t)
	} else {
		b.WriteString("(no readable text was extracted)")
	}
	return documents.Truncate(b.String(), maxChars)
}
