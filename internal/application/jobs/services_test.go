package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	appai "github.com/bryanwahyu/docanalyst/internal/application/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
	"github.com/bryanwahyu/docanalyst/internal/domain/documents"
	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
	"github.com/bryanwahyu/docanalyst/internal/infra/db/memory"
	"github.com/bryanwahyu/docanalyst/internal/infra/storage"
)

// stubBackend echoes what it is given and records every call.
type stubBackend struct {
	mu          sync.Mutex
	calls       map[string]int
	analyzeErr  error
	rewriteErr  error
	lastHistory []ai.ChatTurn
	lastContext string
	lastStyle   string
	steps       []string
}

func newStubBackend() *stubBackend { return &stubBackend{calls: map[string]int{}} }

func (b *stubBackend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
}

func (b *stubBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *stubBackend) Analyze(_ context.Context, in ai.AnalysisInput) (string, error) {
	b.record(ai.OpAnalyze)
	if b.analyzeErr != nil {
		return "", b.analyzeErr
	}
	out, _ := json.Marshal(map[string]any{
		"summary":      strings.TrimSpace(in.Text),
		"documentType": "note",
	})
	return "```json\n" + string(out) + "\n```", nil
}

func (b *stubBackend) Chat(_ context.Context, message string, history []ai.ChatTurn, documentContext string) (string, error) {
	b.record(ai.OpChat)
	b.mu.Lock()
	b.lastHistory = history
	b.lastContext = documentContext
	b.mu.Unlock()
	return "you asked: " + message, nil
}

func (b *stubBackend) Rewrite(_ context.Context, text, style string) (string, error) {
	b.record(ai.OpRewrite)
	b.mu.Lock()
	b.lastStyle = style
	b.mu.Unlock()
	if b.rewriteErr != nil {
		return "", b.rewriteErr
	}
	return text, nil
}

func (b *stubBackend) NextSteps(_ context.Context, documentContext string) ([]string, error) {
	b.record(ai.OpNextSteps)
	b.mu.Lock()
	b.lastContext = documentContext
	b.mu.Unlock()
	return b.steps, nil
}

// textExtractor treats every upload as UTF-8 text and counts calls.
// hook, when set, runs inside every Extract call.
type textExtractor struct {
	mu    sync.Mutex
	calls int
	hook  func()
}

func (e *textExtractor) Extract(_ context.Context, _ string, data []byte) documents.Document {
	e.mu.Lock()
	e.calls++
	hook := e.hook
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return documents.Document{Text: string(data), Pages: 1}
}

func (e *textExtractor) setHook(fn func()) {
	e.mu.Lock()
	e.hook = fn
	e.mu.Unlock()
}

func (e *textExtractor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fixedIDs string

func (f fixedIDs) NewID() string { return string(f) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// failingStore refuses every write.
type failingStore struct{}

func (failingStore) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Open(context.Context, string) (io.ReadCloser, error) { return nil, os.ErrNotExist }

func (failingStore) Remove(context.Context, string) error { return nil }

type fixture struct {
	svc       *Service
	backend   *stubBackend
	extractor *textExtractor
	dir       string
}

func newFixture(t *testing.T, mutate func(*Dependencies)) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{backend: newStubBackend(), extractor: &textExtractor{}, dir: dir}
	deps := Dependencies{
		Registry:  memory.NewJobRegistry(),
		Artifacts: storage.NewLocal(dir),
		Extractor: f.extractor,
		AI:        appai.NewService(f.backend),
		Clock:     fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewService(deps, Options{MaxContextChars: 4000})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f fixture) upload(t *testing.T, name, content string) UploadResult {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), UploadCommand{FileName: name, Content: strings.NewReader(content)})
	require.NoError(t, err)
	return res
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Dependencies{}, Options{})
	assert.Error(t, err)
}

func TestUpload_RegistersProcessedJob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.upload(t, "notes.txt", "Blood pressure 120/80.")
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, domain.StatusProcessed, res.Status)

	st := f.svc.Status(ctx, res.JobID)
	assert.Equal(t, StatusResult{Status: domain.StatusProcessed, Percent: 100}, st)

	result, err := f.svc.Results(ctx, res.JobID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"Blood pressure 120/80.","documentType":"note"}`, string(result))
	assert.Equal(t, []string{res.JobID + "_notes.txt"}, dirEntries(t, f.dir))
	assert.Equal(t, 1, f.svc.Count())
}

func TestUpload_UniqueIDs(t *testing.T) {
	f := newFixture(t, nil)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		res := f.upload(t, "same.txt", "same content")
		assert.False(t, seen[res.JobID], "id %s reused", res.JobID)
		seen[res.JobID] = true
	}
	assert.Equal(t, 10, f.svc.Count())
}

func TestUpload_SanitizesFileName(t *testing.T) {
	f := newFixture(t, nil)
	res := f.upload(t, "../../etc/passwd", "root:x:0:0")
	assert.Equal(t, []string{res.JobID + "_passwd"}, dirEntries(t, f.dir))
}

func TestUpload_RejectsMissingContent(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Upload(context.Background(), UploadCommand{FileName: "x.txt"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpload_EmptyExtractionIsDegraded(t *testing.T) {
	f := newFixture(t, nil)
	res := f.upload(t, "scan.txt", "   \n  ")

	result, err := f.svc.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	var a ai.Analysis
	require.NoError(t, json.Unmarshal(result, &a))
	assert.True(t, a.Degraded)
	assert.Equal(t, "unknown", a.DocumentType)
	assert.Zero(t, f.backend.count(ai.OpAnalyze), "empty text must not reach the backend")
}

func TestUpload_AnalyzeFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.analyzeErr = errors.New("model overloaded")

	_, err := f.svc.Upload(context.Background(), UploadCommand{FileName: "a.txt", Content: strings.NewReader("text")})
	var pe *domain.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.StageAnalyze, pe.Stage)
	var be *ai.BackendError
	assert.ErrorAs(t, err, &be)

	assert.Zero(t, f.svc.Count())
	assert.Equal(t, domain.StatusNotFound, f.svc.Status(context.Background(), pe.JobID).Status)
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestUpload_MalformedAnalysisIsProcessingError(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.svc
	svc.ai = appai.NewService(malformedBackend{f.backend})

	_, err := svc.Upload(context.Background(), UploadCommand{FileName: "a.txt", Content: strings.NewReader("text")})
	assert.ErrorIs(t, err, ai.ErrMalformedResponse)
	assert.Zero(t, svc.Count())
}

type malformedBackend struct{ *stubBackend }

func (malformedBackend) Analyze(context.Context, ai.AnalysisInput) (string, error) {
	return "Sure! Here is the analysis you asked for.", nil
}

func TestUpload_StoreFailure(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Artifacts = failingStore{} })
	_, err := f.svc.Upload(context.Background(), UploadCommand{FileName: "a.txt", Content: strings.NewReader("text")})
	var pe *domain.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.StageStore, pe.Stage)
	assert.Zero(t, f.backend.count(ai.OpAnalyze))
}

func TestUpload_DuplicateIDIsRejected(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.IDs = fixedIDs("job-1") })
	first := f.upload(t, "first.txt", "first document")

	_, err := f.svc.Upload(context.Background(), UploadCommand{FileName: "second.txt", Content: strings.NewReader("second document")})
	var pe *domain.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.StageRegister, pe.Stage)
	assert.ErrorIs(t, err, domain.ErrDuplicateJob)

	result, err := f.svc.Results(context.Background(), first.JobID)
	require.NoError(t, err)
	assert.Contains(t, string(result), "first document")
	assert.Equal(t, []string{"job-1_first.txt"}, dirEntries(t, f.dir))
}

func TestUpload_ConcurrentJobsStayIsolated(t *testing.T) {
	f := newFixture(t, nil)
	const n = 25
	ids := make([]string, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := f.svc.Upload(context.Background(), UploadCommand{
				FileName: "doc.txt",
				Content:  strings.NewReader(fmt.Sprintf("document number %d", i)),
			})
			ids[i] = res.JobID
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, n, f.svc.Count())

	for i, id := range ids {
		result, err := f.svc.Results(context.Background(), id)
		require.NoError(t, err)
		var a ai.Analysis
		require.NoError(t, json.Unmarshal(result, &a))
		assert.Equal(t, fmt.Sprintf("document number %d", i), a.Summary)
	}
}

func TestResults_AreByteIdentical(t *testing.T) {
	f := newFixture(t, nil)
	res := f.upload(t, "a.txt", "stable")

	first, err := f.svc.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	first[0] = 'X'

	second, err := f.svc.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	third, err := f.svc.Results(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, second, third)
	assert.Equal(t, byte('{'), second[0])
}

func TestUnknownJob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, StatusResult{Status: domain.StatusNotFound}, f.svc.Status(ctx, "nope"))
	body, err := json.Marshal(f.svc.Status(ctx, "nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_found"}`, string(body))


	_, err = f.svc.Results(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	_, err = f.svc.Chat(ctx, ChatCommand{JobID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	_, err = f.svc.Chat(ctx, ChatCommand{JobID: "nope"})
	assert.ErrorIs(t, err, domain.ErrJobNotFound, "existence is checked before input")
	_, err = f.svc.NextSteps(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	assert.Zero(t, f.backend.count(ai.OpChat))
	assert.Zero(t, f.backend.count(ai.OpNextSteps))
}

func TestChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := f.upload(t, "labs.txt", "Cholesterol 245 mg/dL.")
	history := []ai.ChatTurn{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi"}}

	out, err := f.svc.Chat(ctx, ChatCommand{JobID: res.JobID, Message: "Is it high?", History: history})
	require.NoError(t, err)
	assert.Equal(t, "you asked: Is it high?", out.Reply)
	assert.Equal(t, []string{SourceDocumentAnalysis}, out.Sources)
	assert.Equal(t, history, f.backend.lastHistory)
	assert.Contains(t, f.backend.lastContext, "Document type: note")
	assert.Contains(t, f.backend.lastContext, "Cholesterol 245 mg/dL.")

	_, err = f.svc.Chat(ctx, ChatCommand{JobID: res.JobID, Message: "again"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.extractor.count(), "context is built once per job")

	_, err = f.svc.Chat(ctx, ChatCommand{JobID: res.JobID, Message: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChat_RebuildsEvictedContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := f.upload(t, "labs.txt", "Glucose 90 mg/dL.")
	f.svc.contexts.entries.Purge()

	_, err := f.svc.Chat(ctx, ChatCommand{JobID: res.JobID, Message: "glucose?"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.extractor.count())
	assert.Contains(t, f.backend.lastContext, "Glucose 90 mg/dL.")
}

func TestChat_CancelledCallerDoesNotPoisonContext(t *testing.T) {
	f := newFixture(t, nil)
	cache, err := newContextCache(1)
	require.NoError(t, err)
	f.svc.contexts = cache

	a := f.upload(t, "a.txt", "Cholesterol is 245 mg/dL.")
	f.upload(t, "b.txt", "Invoice total 40 EUR.")
	_, cached := f.svc.contexts.Get(a.JobID)
	require.False(t, cached, "a should have been evicted by b")

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.extractor.setHook(func() {
		once.Do(func() { close(started) })
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.svc.Chat(ctx, ChatCommand{JobID: a.JobID, Message: "cholesterol?"})
		errCh <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)

	out, err := f.svc.Chat(context.Background(), ChatCommand{JobID: a.JobID, Message: "cholesterol?"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Reply)
	assert.Contains(t, f.backend.lastContext, "Cholesterol is 245 mg/dL.")
	assert.NotContains(t, f.backend.lastContext, "(no readable text was extracted)")
	assert.Equal(t, 3, f.extractor.count(), "two uploads and one shared context load")
}

func TestChat_AlreadyCancelled(t *testing.T) {
	f := newFixture(t, nil)
	res := f.upload(t, "a.txt", "text")
	f.svc.contexts.entries.Purge()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.NextSteps(ctx, res.JobID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.backend.count(ai.OpNextSteps))
}

func TestUpload_CancelledDuringExtraction(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.extractor.setHook(cancel)

	_, err := f.svc.Upload(ctx, UploadCommand{FileName: "a.txt", Content: strings.NewReader("Cholesterol is 245 mg/dL.")})
	var pe *domain.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.StageExtract, pe.Stage)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, f.svc.Count(), "no degraded record is stored")
	assert.Zero(t, f.backend.count(ai.OpAnalyze))
	assert.Empty(t, dirEntries(t, f.dir))
}

// stuckRegistry never finishes a read, like a registry with a wedged lock.
type stuckRegistry struct {
	*memory.JobRegistry
	block chan struct{}
}

func (r stuckRegistry) Exists(context.Context, string) bool {
	<-r.block
	return false
}

func TestCheck(t *testing.T) {
	f := newFixture(t, nil)
	assert.NoError(t, f.svc.Check(context.Background()))

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	stuck := newFixture(t, func(d *Dependencies) {
		d.Registry = stuckRegistry{JobRegistry: memory.NewJobRegistry(), block: block}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, stuck.svc.Check(ctx), context.DeadlineExceeded)
}

func TestRewrite(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Rewrite(ctx, RewriteCommand{Text: "keep me", Style: "formal"})
	require.NoError(t, err)
	assert.Equal(t, "keep me", out.Text)
	assert.Equal(t, "formal", f.backend.lastStyle)

	_, err = f.svc.Rewrite(ctx, RewriteCommand{Text: "keep me"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRewriteStyle, f.backend.lastStyle)

	_, err = f.svc.Rewrite(ctx, RewriteCommand{Text: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	f.backend.rewriteErr = errors.New("upstream 503")
	_, err = f.svc.Rewrite(ctx, RewriteCommand{Text: "x"})
	var be *ai.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ai.OpRewrite, be.Op)
}

func TestNextSteps(t *testing.T) {
	f := newFixture(t, nil)
	res := f.upload(t, "plan.txt", "Follow up in two weeks.")
	f.backend.steps = []string{"Book a follow-up", "  ", "Repeat the test"}

	out, err := f.svc.NextSteps(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book a follow-up", "Repeat the test"}, out.Steps)
	assert.Contains(t, f.backend.lastContext, "Follow up in two weeks.")
}

func TestBuildContext(t *testing.T) {
	result := json.RawMessage(`{"summary":"short","documentType":"invoice"}`)
	got := buildContext(result, "Total due 40 EUR", 0)
	assert.Equal(t, "Document type: invoice\nAnalysis summary: short\n\nDocument text:\nTotal due 40 EUR", got)

	assert.Contains(t, buildContext(nil, "", 0), "(no readable text was extracted)")

	// the header is 63 bytes; a 68 byte cap lands inside the third "é"
	long := buildContext(result, strings.Repeat("é", 100), 68)
	assert.Len(t, long, 67)
	assert.True(t, strings.HasSuffix(long, "éé"))
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":           "report.pdf",
		"../../secret.txt":     "secret.txt",
		`C:\Users\me\scan.pdf`: "scan.pdf",
		"":                     "upload",
		"..":                   "upload",
		"bad\x00name\n.txt":    "badname.txt",
		"  spaced name.md  ":   "spaced name.md",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}
