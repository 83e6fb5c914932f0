// Package api serves parse results over HTTP as JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mohaanymo/veldscan/internal/config"
	"github.com/mohaanymo/veldscan/internal/metrics"
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/selector"
)

// Service is the parsing core behind the API.
type Service interface {
	ParseManifest(ctx context.Context, url string, headers map[string]string, mode models.Mode) *models.Manifest
	GetMasterForVariant(url string) *models.Manifest
	BestOptions(url string) (selector.Selection, bool)
	ClearCaches()
}

// API wires HTTP routes to a Service.
type API struct {
	svc     Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
	router  chi.Router
}

// New builds the router. m may be nil.
func New(svc Service, m *metrics.Metrics, logger zerolog.Logger) *API {
	a := &API{
		svc:     svc,
		metrics: m,
		logger:  logger.With().Str("component", "api").Logger(),
		router:  chi.NewRouter(),
	}

	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(a.requestLogger)
	a.router.Use(MetricsMiddleware(m))

	a.routes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) routes() {
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics.Handler())
	}

	a.router.Route("/v1", func(r chi.Router) {
		r.Get("/manifest", a.handleManifest)
		r.Get("/master", a.handleMaster)
		r.Get("/best", a.handleBest)
		r.Delete("/cache", a.handleClearCache)
	})
}

func (a *API) handleManifest(w http.ResponseWriter, r *http.Request) {
	u, ok := requireURL(w, r)
	if !ok {
		return
	}
	headers, err := requestHeaders(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := a.svc.ParseManifest(r.Context(), u, headers, models.ParseMode(r.URL.Query().Get("mode")))
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleMaster(w http.ResponseWriter, r *http.Request) {
	u, ok := requireURL(w, r)
	if !ok {
		return
	}
	m := a.svc.GetMasterForVariant(u)
	if m == nil {
		writeError(w, http.StatusNotFound, "no cached master lists this url")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleBest(w http.ResponseWriter, r *http.Request) {
	u, ok := requireURL(w, r)
	if !ok {
		return
	}
	sel, found := a.svc.BestOptions(u)
	if !found {
		writeError(w, http.StatusNotFound, "master not cached")
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (a *API) handleClearCache(w http.ResponseWriter, r *http.Request) {
	a.svc.ClearCaches()
	w.WriteHeader(http.StatusNoContent)
}

func requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return "", false
	}
	return u, true
}

// requestHeaders collects repeated header=Name:value query parameters.
func requestHeaders(r *http.Request) (map[string]string, error) {
	values := r.URL.Query()["header"]
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, err := config.ParseHeader(v)
		if err != nil {
			return nil, err
		}
		headers[name] = value
	}
	return headers, nil
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		a.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
