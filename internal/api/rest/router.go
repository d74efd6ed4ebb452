package rest

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	RequestsPerSecond int
	BurstSize         int
	// Limiter replaces the in-process limiter, e.g. with the
	// Redis-backed one so limits hold across instances.
	Limiter ClientLimiter
}

// NewRouter assembles the route table and middleware stack.
func NewRouter(h *Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/parcels", h.handleCreateParcel)
	mux.HandleFunc("GET /api/v1/parcels/{id}", h.handleGetParcel)
	mux.HandleFunc("POST /api/v1/parcels/{id}/publish", h.handlePublishParcel)
	mux.HandleFunc("POST /api/v1/parcels/validate-boundary", h.handleValidateBoundary)
	mux.HandleFunc("POST /api/v1/parcels/check-overlap", h.handleCheckOverlap)
	mux.HandleFunc("POST /api/v1/fraud/detect", h.handleDetectFraud)

	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []Middleware{
		Recovery(logger),
		RequestID(),
		Logging(logger),
	}
	if cfg.RequestsPerSecond > 0 || cfg.Limiter != nil {
		limiter := cfg.Limiter
		if limiter == nil {
			limiter = NewLocalLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
		}
		middlewares = append(middlewares, RateLimit(limiter, cfg.RequestsPerSecond, logger))
	}
	return Chain(mux, middlewares...)
}
