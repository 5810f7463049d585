package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appjobs "github.com/bryanwahyu/docanalyst/internal/application/jobs"
	domai "github.com/bryanwahyu/docanalyst/internal/domain/ai"
	domain "github.com/bryanwahyu/docanalyst/internal/domain/jobs"
	"github.com/bryanwahyu/docanalyst/internal/middleware"
)

const uploadField = "file"

// Options configure the HTTP surface around the job service.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
	HealthCheckers map[string]middleware.HealthChecker
}

type Router struct {
	jobs      *appjobs.Service
	logger    zerolog.Logger
	maxUpload int64
}

func NewRouter(jobs *appjobs.Service, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{jobs: jobs, logger: opts.Logger, maxUpload: opts.MaxUploadBytes}

	checkers := map[string]middleware.HealthChecker{
		"registry": jobs,
	}
	for name, c := range opts.HealthCheckers {
		checkers[name] = c
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/", r.wrap(r.handleRoot))
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/upload", r.wrap(r.handleUpload))
		rt.Get("/status", r.wrap(r.handleStatus))
		rt.Get("/results", r.wrap(r.handleResults))
		rt.Post("/chat", r.wrap(r.handleChat))
		rt.Post("/rewrite", r.wrap(r.handleRewrite))
		rt.Post("/next-steps", r.wrap(r.handleNextSteps))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				r.logger.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			}
			var be *domai.BackendError
			if errors.As(err, &be) {
				middleware.IncrementBackendFailures()
			}
			writeError(w, status, err)
		}
	}
}

func statusFor(err error) int {
	var (
		pe     *domain.ProcessingError
		be     *domai.BackendError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.As(err, &be):
		if errors.Is(err, domai.ErrQuotaExceeded) {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// decodeBody reads a JSON request body into v.
func decodeBody(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return invalid("malformed JSON body: %v", err)
	}
	return nil
}

// jobIDFromQuery reads the jobId parameter. Empty or malformed ids are not
// rejected here: they name no job, so the registry answers not found.
func jobIDFromQuery(req *http.Request) string {
	return strings.TrimSpace(req.URL.Query().Get("jobId"))
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"status": "Document analysis service is running",
		"jobs":   r.jobs.Count(),
	})
}

// POST /api/upload (multipart, field "file")
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	file, header, err := req.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return invalid("multipart field %q is required", uploadField)
	}
	defer file.Close()
	if req.MultipartForm != nil {
		defer req.MultipartForm.RemoveAll()
	}

	res, err := r.jobs.Upload(req.Context(), appjobs.UploadCommand{
		FileName: header.Filename,
		Content:  file,
	})
	middleware.IncrementUploads(err != nil)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /api/status?jobId=
// Never fails: a missing or unknown id reports not_found.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.jobs.Status(req.Context(), jobIDFromQuery(req)))
}

// GET /api/results?jobId=
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	result, err := r.jobs.Results(req.Context(), jobIDFromQuery(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(result)
	return err
}

// POST /api/chat
// Body: {"jobId": "...", "message": "...", "history": [{"role": "...", "content": "..."}]}
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		JobID   string           `json:"jobId"`
		Message string           `json:"message"`
		History []domai.ChatTurn `json:"history"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateMessage(body.Message); err != nil {
		return invalid("%v", err)
	}
	if err := middleware.ValidateHistory(len(body.History)); err != nil {
		return invalid("%v", err)
	}

	middleware.IncrementChats()
	res, err := r.jobs.Chat(req.Context(), appjobs.ChatCommand{
		JobID:   strings.TrimSpace(body.JobID),
		Message: middleware.SanitizeString(body.Message),
		History: body.History,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /api/rewrite
// Body: {"text": "...", "style": "formal|simple|concise|bullet|..."}
func (r *Router) handleRewrite(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text  string `json:"text"`
		Style string `json:"style"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateRewrite(body.Text, body.Style); err != nil {
		return invalid("%v", err)
	}

	middleware.IncrementRewrites()
	res, err := r.jobs.Rewrite(req.Context(), appjobs.RewriteCommand{
		Text:  body.Text,
		Style: middleware.SanitizeString(body.Style),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /api/next-steps
// Body: {"jobId": "..."}
func (r *Router) handleNextSteps(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		JobID string `json:"jobId"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}

	middleware.IncrementNextSteps()
	res, err := r.jobs.NextSteps(req.Context(), strings.TrimSpace(body.JobID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}
