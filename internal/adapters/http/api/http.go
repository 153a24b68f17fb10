// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/crmflow/internal/adapters/repository"
	"github.com/okian/crmflow/internal/domain/dedupe"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
	"github.com/okian/crmflow/internal/domain/rules"
	"github.com/okian/crmflow/pkg/logger"
)

// Normalizer runs the pure pipeline.
type Normalizer interface {
	Normalize(payload model.Payload) (*pipeline.Normalization, error)
	Build(n *pipeline.Normalization, isNewContact bool) *model.Normalized
	Process(payload model.Payload) model.Result
	CatalogHit(rec model.Record) bool
}

// Enqueuer hands a delivery to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, d model.Delivery) error
}

// LetterStore reads and writes dead letters.
type LetterStore interface {
	Write(ctx context.Context, l repository.Letter) (string, error)
	List(ctx context.Context, limit int) ([]string, error)
	Get(ctx context.Context, name string) (*repository.Letter, error)
}

// RuleStore exposes the active rule set and reloads it.
type RuleStore interface {
	Current() *rules.RuleSet
	Path() string
	Reload() ([]string, error)
}

// ReadinessChecker reports whether the service can take traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Dependencies required by HTTP handlers. Queue may be nil, in which case
// webhooks are normalized and answered without a CRM sync. Letters and
// Ready are optional as well.
type Dependencies struct {
	Pipeline Normalizer
	Deduper  dedupe.Deduper
	Queue    Enqueuer
	Letters  LetterStore
	Rules    RuleStore
	Ready    ReadinessChecker
	Stats    StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	webhookHandler    *WebhookHandler
	rulesHandler      *RulesHandler
	deadLetterHandler *DeadLetterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(deps.Ready),
		statsHandler:      NewStatsHandler(deps.Stats),
		webhookHandler:    NewWebhookHandler(deps.Pipeline, deps.Deduper, deps.Queue, deps.Letters),
		rulesHandler:      NewRulesHandler(deps.Rules),
		deadLetterHandler: NewDeadLetterHandler(deps.Letters),
	}
}

// Router builds a chi router with the shared middleware stack and every
// route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/live", MetricsMiddleware(s.healthHandler.HandleLive, "live"))
	r.Get("/ready", MetricsMiddleware(s.healthHandler.HandleReady, "ready"))
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	r.Post("/flow/webhook/incoming", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	r.Post("/test", MetricsMiddleware(s.webhookHandler.HandleDryRun, "test"))

	r.Get("/config", MetricsMiddleware(s.rulesHandler.HandleGet, "config"))
	r.Post("/config/reload", MetricsMiddleware(s.rulesHandler.HandleReload, "config_reload"))

	r.Get("/deadletters", MetricsMiddleware(s.deadLetterHandler.HandleList, "deadletters"))
	r.Get("/deadletters/{name}", MetricsMiddleware(s.deadLetterHandler.HandleGet, "deadletter"))
}

// requestContext copies chi's request id into the logging context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

type ackResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Key       string `json:"key,omitempty"`
}

// errorResponse carries the failure in Error and a short summary in Message.
type errorResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	summary := http.StatusText(status)
	msg := summary
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Error: msg, Message: summary})
}

// isNotFound allows the API to translate store not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidName)
}
