package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/docanalyst/internal/application"
	appai "github.com/bryanwahyu/docanalyst/internal/application/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/documents"
	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
)

// SourceDocumentAnalysis is the provenance marker attached to every chat reply.
const SourceDocumentAnalysis = "Document Analysis"

// DefaultRewriteStyle is used when a rewrite request names no style.
const DefaultRewriteStyle = "clear"

// Dependencies are the collaborators the orchestrator composes.
type Dependencies struct {
	Registry  domain.Registry
	Artifacts domain.ArtifactStore
	Extractor documents.Extractor
	AI        *appai.Service
	IDs       application.IDGenerator
	Clock     application.Clock
	Logger    zerolog.Logger
}

// Options tune document-context handling for chat and next steps.
type Options struct {
	MaxContextChars  int
	ContextCacheSize int
}

// Service implements the job use-cases: upload, status, results, chat, rewrite
// and next steps. It is safe for concurrent use.
type Service struct {
	registry  domain.Registry
	artifacts domain.ArtifactStore
	extractor documents.Extractor
	ai        *appai.Service
	ids       application.IDGenerator
	clock     application.Clock
	logger    zerolog.Logger

	maxContextChars int
	contexts        *contextCache
	loads           singleflight.Group
}

func NewService(deps Dependencies, opts Options) (*Service, error) {
	if deps.Registry == nil || deps.Artifacts == nil || deps.Extractor == nil || deps.AI == nil {
		return nil, errors.New("jobs: registry, artifacts, extractor and ai are required")
	}
	if deps.IDs == nil {
		deps.IDs = application.UUIDGenerator{}
	}
	if deps.Clock == nil {
		deps.Clock = application.SystemClock{}
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	cache, err := newContextCache(opts.ContextCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		registry:        deps.Registry,
		artifacts:       deps.Artifacts,
		extractor:       deps.Extractor,
		ai:              deps.AI,
		ids:             deps.IDs,
		clock:           deps.Clock,
		logger:          deps.Logger,
		maxContextChars: opts.MaxContextChars,
		contexts:        cache,
	}, nil
}

//
// ==== USE CASES ====
//

type UploadCommand struct {
	FileName string
	Content  io.Reader
}

type UploadResult struct {
	JobID  string        `json:"jobId"`
	Status domain.Status `json:"status"`
}

// Upload stores the artifact, extracts its text, analyses it and registers the job.
// Processing is synchronous, so the returned status is the real one: processed.
// On failure no record is registered and the stored artifact is removed.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (UploadResult, error) {
	if cmd.Content == nil {
		return UploadResult{}, fmt.Errorf("%w: file content is required", domain.ErrInvalidInput)
	}
	start := s.clock.Now()
	name := SanitizeFileName(cmd.FileName)
	id := s.ids.NewID()
	log := s.logger.With().Str("job_id", id).Str("file_name", name).Logger()

	path, err := s.artifacts.Put(ctx, id, name, cmd.Content)
	if err != nil {
		log.Error().Err(err).Msg("store artifact failed")
		return UploadResult{}, &domain.ProcessingError{JobID: id, Stage: domain.StageStore, Err: err}
	}

	data, err := s.readArtifact(ctx, path)
	if err != nil {
		s.discard(ctx, log, path)
		return UploadResult{}, &domain.ProcessingError{JobID: id, Stage: domain.StageStore, Err: err}
	}

	doc := s.extractor.Extract(ctx, name, data)
	if err := ctx.Err(); err != nil {
		// an empty extraction here means cancelled, not unreadable
		log.Warn().Err(err).Msg("upload cancelled during extraction")
		s.discard(ctx, log, path)
		return UploadResult{}, &domain.ProcessingError{JobID: id, Stage: domain.StageExtract, Err: err}
	}
	if doc.Empty() {
		log.Warn().Int("bytes", len(data)).Msg("no text extracted, analysing empty document")
	}

	result, err := s.ai.Analyze(ctx, ai.AnalysisInput{FileName: name, Text: doc.Text, Pages: doc.Pages})
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		s.discard(ctx, log, path)
		return UploadResult{}, &domain.ProcessingError{JobID: id, Stage: domain.StageAnalyze, Err: err}
	}

	job := domain.Job{
		ID:           id,
		Status:       domain.StatusProcessed,
		FileName:     name,
		ArtifactPath: path,
		Result:       result,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.registry.Put(ctx, job); err != nil {
		log.Error().Err(err).Msg("register job failed")
		s.discard(ctx, log, path)
		return UploadResult{}, &domain.ProcessingError{JobID: id, Stage: domain.StageRegister, Err: err}
	}
	s.contexts.Add(id, buildContext(result, doc.Text, s.maxContextChars))

	log.Info().
		Int("pages", doc.Pages).
		Int("text_chars", len(doc.Text)).
		Dur("duration", s.clock.Now().Sub(start)).
		Msg("job processed")
	return UploadResult{JobID: id, Status: job.Status}, nil
}

// StatusResult omits percent for unknown jobs.
type StatusResult struct {
	Status  domain.Status `json:"status"`
	Percent int           `json:"percent,omitempty"`
}

// Status never fails: unknown ids report not_found so clients can poll blindly.
func (s *Service) Status(ctx context.Context, jobID string) StatusResult {
	job, err := s.registry.Get(ctx, jobID)
	if err != nil {
		return StatusResult{Status: domain.StatusNotFound}
	}
	return StatusResult{Status: job.Status, Percent: 100}
}

// Results returns the stored analysis exactly as it was registered.
func (s *Service) Results(ctx context.Context, jobID string) (json.RawMessage, error) {
	job, err := s.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Result, nil
}

type ChatCommand struct {
	JobID   string
	Message string
	History []ai.ChatTurn
}

type ChatResult struct {
	Reply   string   `json:"reply"`
	Sources []string `json:"sources"`
}

// Chat answers a question about the job's document. History belongs to the
// caller and is forwarded untouched.
func (s *Service) Chat(ctx context.Context, cmd ChatCommand) (ChatResult, error) {
	job, err := s.registry.Get(ctx, cmd.JobID)
	if err != nil {
		return ChatResult{}, err
	}
	if strings.TrimSpace(cmd.Message) == "" {
		return ChatResult{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	docContext, err := s.documentContext(ctx, job)
	if err != nil {
		return ChatResult{}, err
	}
	reply, err := s.ai.Chat(ctx, cmd.Message, cmd.History, docContext)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("chat failed")
		return ChatResult{}, err
	}
	return ChatResult{Reply: reply, Sources: []string{SourceDocumentAnalysis}}, nil
}

type RewriteCommand struct {
	Text  string
	Style string
}

type RewriteResult struct {
	Text string `json:"text"`
}

// Rewrite is stateless; backend failures are returned, never papered over.
func (s *Service) Rewrite(ctx context.Context, cmd RewriteCommand) (RewriteResult, error) {
	if strings.TrimSpace(cmd.Text) == "" {
		return RewriteResult{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	style := strings.TrimSpace(cmd.Style)
	if style == "" {
		style = DefaultRewriteStyle
	}
	out, err := s.ai.Rewrite(ctx, cmd.Text, style)
	if err != nil {
		s.logger.Error().Err(err).Str("style", style).Msg("rewrite failed")
		return RewriteResult{}, err
	}
	return RewriteResult{Text: out}, nil
}

type NextStepsResult struct {
	Steps []string `json:"steps"`
}

func (s *Service) NextSteps(ctx context.Context, jobID string) (NextStepsResult, error) {
	job, err := s.registry.Get(ctx, jobID)
	if err != nil {
		return NextStepsResult{}, err
	}
	docContext, err := s.documentContext(ctx, job)
	if err != nil {
		return NextStepsResult{}, err
	}
	steps, err := s.ai.NextSteps(ctx, docContext)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("next steps failed")
		return NextStepsResult{}, err
	}
	return NextStepsResult{Steps: steps}, nil
}

// Count returns the number of registered jobs.
func (s *Service) Count() int { return s.registry.Len() }

// registryProbeID is never issued by the ID generator.
const registryProbeID = "health-probe"

// Check implements middleware.HealthChecker. It fails when a registry read
// cannot complete before ctx ends, which is how a wedged lock shows up.
func (s *Service) Check(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.registry.Exists(ctx, registryProbeID)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("registry unresponsive: %w", ctx.Err())
	}
}

// helper

func (s *Service) readArtifact(ctx context.Context, path string) ([]byte, error) {
	rc, err := s.artifacts.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

func (s *Service) discard(ctx context.Context, log zerolog.Logger, path string) {
	// the request context may already be done; cleanup still has to happen
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.artifacts.Remove(rmCtx, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("remove artifact after failed upload")
	}
}

// SanitizeFileName keeps only the base name so uploads cannot escape the artifact namespace.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}
