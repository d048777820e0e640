package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/carecall/carecall/internal/api"
	"github.com/carecall/carecall/internal/middleware"
	"go.uber.org/zap"
)

// healthPingTimeout bounds the database check behind /health.
const healthPingTimeout = 2 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Subscribers is the websocket hub as seen by the HTTP layer.
type Subscribers interface {
	http.Handler
	ClientCount() int
}

// HTTPHandler handles HTTP endpoints
type HTTPHandler struct {
	emergency *EmergencyHandler
	db        Pinger
	hub       Subscribers
	log       *zap.Logger
}

// NewHTTPHandler creates a new HTTP handler. db and hub may be nil.
func NewHTTPHandler(emergency *EmergencyHandler, db Pinger, hub Subscribers, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{
		emergency: emergency,
		db:        db,
		hub:       hub,
		log:       log,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	if h.emergency != nil {
		mux.Handle(EmergencyPrefix, h.emergency)
		mux.Handle(EmergencyPrefix+"/", h.emergency)
	}
	if h.hub != nil {
		mux.Handle("/ws/notifications", h.hub)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.RespondError(w, http.StatusNotFound, "Not found")
	})
}

// Handler returns the routed mux wrapped in the standard middleware chain.
func (h *HTTPHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(h.log),
		middleware.CORS,
		middleware.Recover(h.log),
	)
}

// handleHealth reports database reachability and the subscriber count
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := api.HealthResponse{Status: "ok", Database: "unknown"}
	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Warn("health check database ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Database = "unreachable"
			resp.Error = "Database unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if h.hub != nil {
		resp.Subscribers = h.hub.ClientCount()
	}
	api.RespondJSON(w, status, resp)
}
