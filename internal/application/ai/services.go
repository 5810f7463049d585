package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
)

// Service sits between the orchestrator and an ai.Backend. It turns every
// backend failure into an *ai.BackendError and checks the shape of answers.
type Service struct {
	backend ai.Backend
}

func NewService(backend ai.Backend) *Service {
	return &Service{backend: backend}
}

// Analyze returns the analysis as a compact JSON object. Empty text never
// reaches the backend; it yields a degraded result instead.
func (s *Service) Analyze(ctx context.Context, in ai.AnalysisInput) (json.RawMessage, error) {
	if strings.TrimSpace(in.Text) == "" {
		return DegradedAnalysis(in)
	}

	raw, err := s.backend.Analyze(ctx, in)
	if err != nil {
		return nil, &ai.BackendError{Op: ai.OpAnalyze, Err: err}
	}
	out, err := normalizeObject(raw)
	if err != nil {
		return nil, &ai.BackendError{Op: ai.OpAnalyze, Err: err}
	}
	return out, nil
}

func (s *Service) Chat(ctx context.Context, message string, history []ai.ChatTurn, documentContext string) (string, error) {
	reply, err := s.backend.Chat(ctx, message, history, documentContext)
	if err != nil {
		return "", &ai.BackendError{Op: ai.OpChat, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		return "", &ai.BackendError{Op: ai.OpChat, Err: ai.ErrEmptyResponse}
	}
	return reply, nil
}

func (s *Service) Rewrite(ctx context.Context, text, style string) (string, error) {
	out, err := s.backend.Rewrite(ctx, text, style)
	if err != nil {
		return "", &ai.BackendError{Op: ai.OpRewrite, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &ai.BackendError{Op: ai.OpRewrite, Err: ai.ErrEmptyResponse}
	}
	return out, nil
}

// NextSteps keeps the backend's ordering and drops blank entries.
func (s *Service) NextSteps(ctx context.Context, documentContext string) ([]string, error) {
	steps, err := s.backend.NextSteps(ctx, documentContext)
	if err != nil {
		return nil, &ai.BackendError{Op: ai.OpNextSteps, Err: err}
	}
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		if step = strings.TrimSpace(step); step != "" {
			out = append(out, step)
		}
	}
	return out, nil
}

// DegradedAnalysis is the result stored for documents with no readable text.
func DegradedAnalysis(in ai.AnalysisInput) (json.RawMessage, error) {
	name := in.FileName
	if name == "" {
		name = "the uploaded file"
	}
	recs := []string{"Upload a text-based PDF or a clearer scan of the document."}
	a := ai.Analysis{
		Summary:         fmt.Sprintf("No readable text could be extracted from %s.", name),
		DocumentType:    "unknown",
		KeyFindings:     []string{},
		Recommendations: recs,
		PageCount:       in.Pages,
		Degraded:        true,
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal degraded analysis: %w", err)
	}
	return b, nil
}

// normalizeObject strips markdown fences some models add and requires a JSON object.
func normalizeObject(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, fmt.Errorf("%w: expected a JSON object", ai.ErrMalformedResponse)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return buf.Bytes(), nil
}
