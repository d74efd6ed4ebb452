package rest

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Chain applies middlewares outermost-first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID assigns each request an id, honoring X-Request-ID from
// trusted upstream proxies.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging logs one line per request with latency and status.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// Recovery converts handler panics into 500 responses.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "handler panic",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()),
					)
					writeError(w, http.StatusInternalServerError,
						"INTERNAL_ERROR", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientLimiter gates requests per client. Implementations may be
// process-local or shared across instances (Redis).
type ClientLimiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}

// LocalLimiter is an in-process token-bucket ClientLimiter keyed by
// client id. Buckets idle for ten minutes are dropped.
type LocalLimiter struct {
	requestsPerSecond int
	burst             int

	mu      sync.Mutex
	buckets map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates a per-client token bucket limiter.
func NewLocalLimiter(requestsPerSecond, burst int) *LocalLimiter {
	return &LocalLimiter{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		buckets:           make(map[string]*localBucket),
	}
}

// Allow never fails; the error return satisfies ClientLimiter.
func (l *LocalLimiter) Allow(_ context.Context, clientID string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(l.requestsPerSecond), l.burst)}
		l.buckets[clientID] = b
	}
	b.lastSeen = time.Now()

	if len(l.buckets) > 10000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, v := range l.buckets {
			if v.lastSeen.Before(cutoff) {
				delete(l.buckets, k)
			}
		}
	}
	l.mu.Unlock()

	return b.limiter.Allow(), nil
}

// RateLimit enforces the limiter per remote IP. A limiter failure fails
// open: throttling is protection, and a Redis outage must not take the
// API down with it.
func RateLimit(limiter ClientLimiter, requestsPerSecond int, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), host)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					"client", host, "error", err)
				allowed = true
			}
			if !allowed {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerSecond))
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
