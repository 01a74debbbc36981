package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/prompt"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/middleware"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/report"
)

// StatusClientClosedRequest is written when the caller went away mid-analysis.
const StatusClientClosedRequest = 499

const unavailableMessage = "analysis service unavailable, try again"

// Analyzer runs one threat-model analysis.
type Analyzer interface {
	Analyze(ctx context.Context, artifacts []domain.ArtifactRecord) (*domain.AnalysisResult, error)
}

// Deps are the collaborators of the HTTP API. Source, Checkers and
// RateLimiter are optional.
type Deps struct {
	Analyzer       Analyzer
	Source         domain.ArtifactSource
	Limits         domain.Limits
	Clock          application.Clock
	Metrics        *middleware.Metrics
	Checkers       map[string]middleware.HealthChecker
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

type Router struct {
	analyzer Analyzer
	source   domain.ArtifactSource
	limits   domain.Limits
	clock    application.Clock
	metrics  *middleware.Metrics
	log      logrus.FieldLogger
}

// Envelope wraps every successful JSON analysis response.
type Envelope struct {
	ProjectName string                 `json:"project_name"`
	GeneratedAt time.Time              `json:"generated_at"`
	Result      *domain.AnalysisResult `json:"result"`
}

func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	r := &Router{
		analyzer: d.Analyzer,
		source:   d.Source,
		limits:   d.Limits,
		clock:    d.Clock,
		metrics:  d.Metrics,
		log:      d.Log,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(d.Log))
	mux.Use(chimw.Recoverer)
	mux.Use(d.Metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/healthz", middleware.HealthHandler(d.Checkers))
	mux.Get("/healthz/live", middleware.LivenessHandler)
	mux.Get("/healthz/ready", middleware.ReadinessHandler(d.Checkers))
	mux.Get("/metrics", d.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/schema", r.wrap(r.handleSchema))
		rt.Group(func(rt chi.Router) {
			if d.RateLimiter != nil {
				rt.Use(d.RateLimiter.Middleware)
			}
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
			rt.Post("/analyze/upload", r.wrap(r.handleUpload))
			rt.Post("/analyze/bucket", r.wrap(r.handleBucket))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, domain.ErrCanceled):
			w.WriteHeader(StatusClientClosedRequest)
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrTransportFailure), errors.Is(err, domain.ErrMalformedReply):
			writeError(w, http.StatusBadGateway, unavailableMessage)
		default:
			r.log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GET /v1/schema
func (r *Router) handleSchema(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/schema+json")
	return json.NewEncoder(w).Encode(prompt.Contract())
}

// POST /v1/analyze?format=json|sarif
// Body: {"project_name": "...", "artifacts": [{"name": "...", "content": "..."}]}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	format, err := middleware.ValidateFormat(req.URL.Query().Get("format"))
	if err != nil {
		return err
	}

	var body struct {
		ProjectName string                  `json:"project_name"`
		Artifacts   []domain.ArtifactRecord `json:"artifacts"`
	}
	if err := decodeJSON(w, req, r.bodyLimit(), &body); err != nil {
		return err
	}
	project := middleware.SanitizeString(body.ProjectName)
	if err := middleware.ValidateProjectName(project); err != nil {
		return err
	}
	if err := r.limits.Check(body.Artifacts); err != nil {
		return err
	}

	return r.analyze(w, req, project, format, body.Artifacts)
}

// POST /v1/analyze/upload?format=json|sarif
// Multipart form: project_name plus one or more "files" parts.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	format, err := middleware.ValidateFormat(req.URL.Query().Get("format"))
	if err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.bodyLimit())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.Invalid("invalid multipart form: %v", err)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	project := middleware.SanitizeString(req.FormValue("project_name"))
	if err := middleware.ValidateProjectName(project); err != nil {
		return err
	}

	files := req.MultipartForm.File["files"]
	if err := r.limits.CheckCount(len(files)); err != nil {
		return err
	}
	artifacts := make([]domain.ArtifactRecord, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return domain.Invalid("unreadable upload %q: %v", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return domain.Invalid("unreadable upload %q: %v", fh.Filename, err)
		}
		if err := r.limits.CheckArtifact(fh.Filename, content); err != nil {
			return err
		}
		artifacts = append(artifacts, domain.ArtifactRecord{Name: fh.Filename, Content: string(content)})
	}

	return r.analyze(w, req, project, format, artifacts)
}

// POST /v1/analyze/bucket?format=json|sarif
// Body: {"project_name": "...", "prefix": "projects/shop/"}
func (r *Router) handleBucket(w http.ResponseWriter, req *http.Request) error {
	if r.source == nil {
		return domain.Invalid("no artifact bucket is configured")
	}
	format, err := middleware.ValidateFormat(req.URL.Query().Get("format"))
	if err != nil {
		return err
	}

	var body struct {
		ProjectName string `json:"project_name"`
		Prefix      string `json:"prefix"`
	}
	if err := decodeJSON(w, req, 1<<20, &body); err != nil {
		return err
	}
	project := middleware.SanitizeString(body.ProjectName)
	if err := middleware.ValidateProjectName(project); err != nil {
		return err
	}
	if err := middleware.ValidatePrefix(body.Prefix); err != nil {
		return err
	}

	artifacts, err := r.source.Collect(req.Context(), body.Prefix)
	if err != nil {
		if req.Context().Err() != nil {
			return domain.Canceled(req.Context().Err())
		}
		return err
	}

	return r.analyze(w, req, project, format, artifacts)
}

func (r *Router) analyze(w http.ResponseWriter, req *http.Request, project, format string, artifacts []domain.ArtifactRecord) error {
	done := r.metrics.StartAnalysis()
	result, err := r.analyzer.Analyze(req.Context(), artifacts)
	done(err)
	if err != nil {
		return err
	}

	if format == "sarif" {
		w.Header().Set("Content-Type", "application/sarif+json")
		return report.WriteSARIF(w, project, result)
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(Envelope{
		ProjectName: project,
		GeneratedAt: r.clock.Now(),
		Result:      result,
	})
}

// bodyLimit bounds a request carrying every allowed artifact plus encoding overhead.
func (r *Router) bodyLimit() int64 {
	if r.limits.MaxArtifactBytes <= 0 || r.limits.MaxArtifacts <= 0 {
		return 64 << 20
	}
	return 2*r.limits.MaxArtifactBytes*int64(r.limits.MaxArtifacts) + 1<<20
}

func decodeJSON(w http.ResponseWriter, req *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.Invalid("invalid JSON body: %v", err)
	}
	return nil
}
