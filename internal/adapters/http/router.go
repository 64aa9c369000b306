package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/metrodocs/internal/config"
	"github.com/kirillkom/metrodocs/internal/core/ports"
	"github.com/kirillkom/metrodocs/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxUploadBytes   = 32 << 20
	maxJSONBodyBytes = 1 << 20
	backpressureWait = 250 * time.Millisecond
)

// Services are the inbound use cases the router exposes.
type Services struct {
	Ingestor  ports.DocumentIngestor
	Processor ports.DocumentProcessor
	Documents ports.DocumentReader
	Tasks     ports.TaskLifecycle
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	// metricsHandler serves /metrics; nil hides the endpoint.
	metricsHandler http.Handler
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics, metricsHandler http.Handler) *Router {
	return &Router{
		cfg:            cfg,
		services:       services,
		metrics:        httpMetrics,
		metricsHandler: metricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	if rt.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", rt.metricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(
			func(next http.Handler) http.Handler {
				return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)
			},
			func(next http.Handler) http.Handler {
				return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordRejected)
			},
			authMiddleware(rt.cfg.JWTSecret),
		)

		v1.Route("/documents", func(docs chi.Router) {
			docs.Post("/", rt.uploadDocument)
			docs.Get("/", rt.listDocuments)
			docs.Get("/{id}", rt.getDocument)
			docs.Put("/{id}", rt.updateDocument)
			docs.Delete("/{id}", rt.deleteDocument)
			docs.Post("/{id}/process", rt.processDocument)
			docs.Get("/{id}/summary", rt.getSummary)
		})

		v1.Get("/summaries", rt.listSummaries)

		v1.Route("/tasks", func(tasks chi.Router) {
			tasks.Get("/", rt.listTasks)
			tasks.Post("/{id}/progress", rt.recordProgress)
			tasks.Post("/{id}/escalate", rt.escalateTask)
			tasks.Put("/{id}/assignment", rt.reassignTask)
			tasks.Get("/{id}/updates", rt.listTaskUpdates)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
