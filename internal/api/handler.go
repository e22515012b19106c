package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/linkbot/internal/command"
	"github.com/nidhogg/linkbot/internal/gateway"
	"go.uber.org/zap"
)

// healthProbeTimeout bounds the upstream check done by /api/health.
const healthProbeTimeout = 3 * time.Second

// HealthChecker probes the shortening service.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	gw       *gateway.Gateway
	restGW   *gateway.RESTAdapter
	commands *command.Registry
	upstream HealthChecker
	logger   *zap.Logger
}

// NewHandler creates a new API handler. restGW may be nil when the REST
// front is disabled.
func NewHandler(
	gw *gateway.Gateway,
	restGW *gateway.RESTAdapter,
	commands *command.Registry,
	upstream HealthChecker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		gw:       gw,
		restGW:   restGW,
		commands: commands,
		upstream: upstream,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/commands", h.listCommands)
		r.Get("/gateway/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
	})

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Upstream string `json:"upstream"`
	Error    string `json:"error,omitempty"`
}

// healthCheck reports bot liveness. An unreachable shortening service is
// reported in the body but does not fail the check.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: "linkbot", Upstream: "unknown"}
	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()
		if err := h.upstream.CheckHealth(ctx); err != nil {
			resp.Upstream = "unreachable"
			resp.Error = err.Error()
		} else {
			resp.Upstream = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	out := []commandInfo{}
	if h.commands != nil {
		for _, c := range h.commands.List() {
			out = append(out, commandInfo{Name: c.Name, Description: c.Description, Usage: c.Usage()})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	statuses := h.gw.StatusAll()
	writeJSON(w, http.StatusOK, statuses)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
