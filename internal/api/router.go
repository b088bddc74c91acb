// Package api exposes the interview processor over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/spigell/interviewer/internal/interview"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies: base64 encoded audio and video at their size limits
// plus room for the JSON envelope and text.
const maxBodyBytes = (interview.MaxAudioBytes+interview.MaxVideoBytes)/3*4 + 1<<20

// Service is the part of the interview processor the API drives.
type Service interface {
	Start(ctx context.Context, job interview.Job, totalSteps int) (*interview.Session, *interview.Question, error)
	SubmitAnswer(ctx context.Context, sessionID string, stepOrder int, raw interview.RawAnswer) (*interview.StepResult, error)
	Result(ctx context.Context, sessionID string) (*interview.Report, error)
	Abandon(ctx context.Context, sessionID string) (*interview.Session, error)
	Vocalize(ctx context.Context, text string) []byte
	Ping(ctx context.Context) error
}

type Options struct {
	// Voice attaches synthesized question audio to every response, not only to ?voice=true requests.
	Voice bool
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

type Handler struct {
	svc    Service
	voice  bool
	logger *zap.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(svc Service, opts *Options) http.Handler {
	if opts == nil {
		opts = &Options{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handler{svc: svc, voice: opts.Voice, logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/readyz", h.Ready)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/start", h.Start)
		r.Post("/submit_answer", h.SubmitAnswer)
		r.Get("/result/{sessionID}", h.Result)
		r.Post("/abandon/{sessionID}", h.Abandon)
	})

	return r
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		Error(w, http.StatusServiceUnavailable, codeUnavailable, "storage is not reachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requestLogger logs one line per request with zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
