package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
	"github.com/openacre/land-exchange-backend/internal/service/fraud"
	"github.com/openacre/land-exchange-backend/internal/service/geovalidation"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
	"github.com/openacre/land-exchange-backend/internal/service/publication"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lex",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method"},
	)

	boundaryValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "geometry",
			Name:      "validations_total",
			Help:      "Boundary validations by verdict",
		},
		[]string{"verdict"},
	)

	overlapChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "overlap",
			Name:      "checks_total",
			Help:      "Overlap checks by outcome",
		},
		[]string{"outcome"},
	)

	publishDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "publication",
			Name:      "decisions_total",
			Help:      "Publish decisions by outcome",
		},
		[]string{"outcome"},
	)

	fraudSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "fraud",
			Name:      "signals_total",
			Help:      "Fraud signals recorded, by type",
		},
		[]string{"type"},
	)

	fraudCheckerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "fraud",
			Name:      "checker_failures_total",
			Help:      "Fraud checker runs that failed",
		},
		[]string{"checker"},
	)
)

// instrumentHTTP wraps the router with request counting and latency
// observation.
func instrumentHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// The instrumented wrappers below count domain events as they flow
// through the service interfaces.

type instrumentedValidator struct {
	inner *geovalidation.Service
}

func (v instrumentedValidator) Validate(raw []byte) *geovalidation.Result {
	result := v.inner.Validate(raw)
	boundaryValidations.WithLabelValues(verdictLabel(result.IsValid)).Inc()
	return result
}

func (v instrumentedValidator) ValidatePolygon(p geo.Polygon) *geovalidation.Result {
	result := v.inner.ValidatePolygon(p)
	boundaryValidations.WithLabelValues(verdictLabel(result.IsValid)).Inc()
	return result
}

type instrumentedOverlap struct {
	inner *overlap.Service
}

func (o instrumentedOverlap) CheckOverlap(ctx context.Context, candidate geo.Polygon, excludeParcelID *uuid.UUID) *overlap.Result {
	result := o.inner.CheckOverlap(ctx, candidate, excludeParcelID)
	outcome := "proceed"
	if !result.CanProceed {
		outcome = "blocked"
	}
	overlapChecks.WithLabelValues(outcome).Inc()
	return result
}

type instrumentedDetector struct {
	inner *fraud.Service
}

func (d instrumentedDetector) RunFullDetection(ctx context.Context, input fraud.DetectionInput) *fraud.DetectionSummary {
	summary := d.inner.RunFullDetection(ctx, input)
	for _, result := range summary.Checkers {
		if result.Failed {
			fraudCheckerFailures.WithLabelValues(result.Checker).Inc()
		}
	}
	for _, sig := range summary.AllSignals() {
		fraudSignals.WithLabelValues(string(sig.Type)).Inc()
	}
	return summary
}

type instrumentedGateway struct {
	inner *publication.Service
}

func (g instrumentedGateway) Publish(ctx context.Context, parcelID uuid.UUID, phone values.PhoneNumber) (*publication.Decision, error) {
	decision, err := g.inner.Publish(ctx, parcelID, phone)
	if err == nil {
		publishDecisions.WithLabelValues(verdictLabel(decision.Allow)).Inc()
	}
	return decision, err
}

func verdictLabel(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}
