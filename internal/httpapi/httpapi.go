// Package httpapi is the HTTP edge: routing, authentication, tenant
// isolation and error mapping. All domain decisions live in the services
// underneath; handlers translate between the wire and the services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cybrsens.io/internal/directory"
	"cybrsens.io/internal/metrics"
	"cybrsens.io/internal/obs"
)

// ReadyProbe reports whether the backing store can serve requests.
type ReadyProbe struct {
	Pinger interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// Config carries the API's collaborators. The entry point wires it.
type Config struct {
	Directory  *directory.Service
	Metrics    *metrics.Aggregator
	Ready      ReadyProbe
	Version    string
	RateBurst  int
	RatePerSec int
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	// StoreTimeout bounds each request context; zero disables the bound.
	StoreTimeout time.Duration
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	directory  *directory.Service
	metrics    *metrics.Aggregator
	readyProbe ReadyProbe
	version    string
	maxBody    int64
}

func New(cfg Config) *API {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	a := &API{
		router:     chi.NewRouter(),
		directory:  cfg.Directory,
		metrics:    cfg.Metrics,
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		maxBody:    maxBody,
	}

	a.router.Use(RequestID)
	a.router.Use(Logging)
	a.router.Use(SecurityHeaders)
	if cfg.RateBurst > 0 && cfg.RatePerSec > 0 {
		a.router.Use(RateLimit(cfg.RateBurst, cfg.RatePerSec))
	}
	a.router.Use(MaxBodyBytes(maxBody))
	if cfg.StoreTimeout > 0 {
		a.router.Use(WithTimeout(cfg.StoreTimeout))
	}

	a.router.Get("/healthz", a.Healthz)
	a.router.Get("/readyz", a.Ready)
	a.router.Get("/v1/info", a.Info)
	a.router.Handle("/metrics", obs.Handler())

	a.router.Route("/v1/orgs/{orgID}", func(r chi.Router) {
		r.Use(a.withAuth)
		r.Use(a.requireTenant)

		r.Get("/", a.handleGetOrganization)
		r.Patch("/", a.handleUpdateOrganization)

		r.Get("/members", a.handleListMembers)
		r.Post("/members", a.handleInviteMember)
		r.Put("/members/{userID}/role", a.handleUpdateMemberRole)
		r.Delete("/members/{userID}", a.handleRemoveMember)

		r.Get("/metrics/summary", a.handleMetricsSummary)
		r.Post("/metrics", a.handleRecordMetric)
		r.Get("/threats", a.handleListThreats)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/export", a.handleExport)
	})

	return a
}

// Handler returns the fully instrumented root handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "cybrsens-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "cybrsens-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 || val > 100 {
		return 0, errors.New("limit must be an integer between 1 and 100")
	}
	return val, nil
}
