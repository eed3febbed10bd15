// Package api exposes the bot's ops HTTP surface: a liveness endpoint
// and a status endpoint probing the catalog and workflow engine.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 10 * time.Second

// HealthChecker probes a dependency's availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Prober checks the workflow engine's reachability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Deps holds the dependencies the ops surface reports on.
type Deps struct {
	Catalog  HealthChecker
	Workflow Prober
	Version  string
}

// NewHandler builds the ops router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealthz)
	r.Get("/statusz", handleStatusz(deps))
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	Version   string          `json:"version"`
	Catalog   componentStatus `json:"catalog"`
	Workflow  componentStatus `json:"workflow"`
	Timestamp string          `json:"timestamp"`
}

func handleStatusz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		resp := statusResponse{
			Version:   deps.Version,
			Catalog:   probe(func() error { return deps.Catalog.Health(ctx) }),
			Workflow:  probe(func() error { return deps.Workflow.Probe(ctx) }),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		code := http.StatusOK
		if resp.Catalog.Status != "healthy" || resp.Workflow.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}

func probe(check func() error) componentStatus {
	if err := check(); err != nil {
		return componentStatus{Status: "unhealthy", Error: err.Error()}
	}
	return componentStatus{Status: "healthy"}
}
