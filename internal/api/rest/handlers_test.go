package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
	"github.com/openacre/land-exchange-backend/internal/domain/signal"
	"github.com/openacre/land-exchange-backend/internal/service/fraud"
	"github.com/openacre/land-exchange-backend/internal/service/geovalidation"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
	"github.com/openacre/land-exchange-backend/internal/service/publication"
)

const squareBoundary = `{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`
const bowtieBoundary = `{"type":"Polygon","coordinates":[[[0,0],[0.001,0.001],[0.001,0],[0,0.001],[0,0]]]}`

// memoryStore backs the handler tests without a database.
type memoryStore struct {
	mu      sync.Mutex
	parcels map[uuid.UUID]*parcel.Parcel
	corpus  []parcel.CorpusEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{parcels: map[uuid.UUID]*parcel.Parcel{}}
}

func (m *memoryStore) Create(_ context.Context, p *parcel.Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parcels[p.ID] = p
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*parcel.Parcel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parcels[id]
	if !ok {
		return nil, apperrors.ErrParcelNotFound
	}
	return p, nil
}

func (m *memoryStore) Update(_ context.Context, p *parcel.Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parcels[p.ID]; !ok {
		return apperrors.ErrParcelNotFound
	}
	m.parcels[p.ID] = p
	return nil
}

func (m *memoryStore) ListAcceptedBoundaries(context.Context, *uuid.UUID) ([]parcel.CorpusEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corpus, nil
}

func newTestRouter(t *testing.T, store *memoryStore) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	validatorSvc := geovalidation.NewService(geovalidation.DefaultConfig())
	overlapSvc := overlap.NewService(store)
	fraudSvc := fraud.NewService(store, nil, nil, nil, nil, fraud.DefaultConfig(), logger)
	gateway := publication.NewService(store, validatorSvc, overlapSvc, nil, logger)

	h := NewHandler(validatorSvc, overlapSvc, fraudSvc, gateway, store, nil, nil, "test", logger)
	return NewRouter(h, logger, RouterConfig{})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body == "" {
		buf = bytes.NewBuffer(nil)
	} else {
		buf = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestValidateBoundaryEndpoint(t *testing.T) {
	router := newTestRouter(t, newMemoryStore())

	t.Run("valid boundary", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/validate-boundary",
			fmt.Sprintf(`{"boundary":%s}`, squareBoundary))
		require.Equal(t, http.StatusOK, rec.Code)

		var result geovalidation.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.IsValid)
		require.NotNil(t, result.Metrics)
		assert.Equal(t, 4, result.Metrics.NumVertices)
	})

	t.Run("self-intersecting boundary still returns 200", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/validate-boundary",
			fmt.Sprintf(`{"boundary":%s}`, bowtieBoundary))
		require.Equal(t, http.StatusOK, rec.Code)

		var result geovalidation.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.IsValid)
		assert.NotEmpty(t, result.Errors)
	})

	t.Run("missing boundary", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/validate-boundary", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/validate-boundary", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCheckOverlapEndpoint(t *testing.T) {
	store := newMemoryStore()
	boundary := geo.NewPolygon(orb.Ring{
		{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0},
	})
	store.corpus = []parcel.CorpusEntry{{ID: uuid.New(), Title: "existing", Boundary: boundary}}
	router := newTestRouter(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/check-overlap",
		fmt.Sprintf(`{"boundary":%s}`, squareBoundary))
	require.Equal(t, http.StatusOK, rec.Code)

	var result overlap.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.CanProceed)
	assert.True(t, result.HasOverlaps)
	assert.InDelta(t, 100, result.MaxPercentage, 0.5)

	t.Run("unsupported geometry", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/check-overlap",
			`{"boundary":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateAndPublishParcel(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(t, store)
	sellerID := uuid.New()

	createBody := fmt.Sprintf(
		`{"seller_id":%q,"title":"south ridge plot","price_amount":"125000","currency":"USD","boundary":%s}`,
		sellerID, squareBoundary)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created parcel.Parcel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, parcel.StatusDraft, created.Status)
	assert.Equal(t, sellerID, created.SellerID)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/parcels/%s/publish", created.ID), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision publication.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Allow)
	assert.Equal(t, parcel.StatusAccepted, decision.Status)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/parcels/%s", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("invalid parcel id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels/not-a-uuid/publish", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid price", func(t *testing.T) {
		body := fmt.Sprintf(
			`{"seller_id":%q,"title":"plot","price_amount":"lots","boundary":%s}`,
			uuid.New(), squareBoundary)
		rec := doJSON(t, router, http.MethodPost, "/api/v1/parcels", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDetectFraudEndpoint(t *testing.T) {
	router := newTestRouter(t, newMemoryStore())

	body := fmt.Sprintf(`{"user_id":%q,"boundary":%s,"phone":"+254712345678"}`,
		uuid.New(), bowtieBoundary)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/fraud/detect", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary fraud.DetectionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Checkers, 3)
	assert.Equal(t, 1, summary.TotalSignals)
	assert.Equal(t, signal.ScoreSelfIntersection, summary.TotalScore)
}

type capturingPriceChecker struct {
	mu    sync.Mutex
	calls int
	input fraud.PriceCheckInput
}

func (c *capturingPriceChecker) CheckPrice(_ context.Context, input fraud.PriceCheckInput) ([]*signal.Signal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.input = input
	return nil, nil
}

func TestDetectFraudForwardsPriceFields(t *testing.T) {
	store := newMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	checker := &capturingPriceChecker{}
	fraudSvc := fraud.NewService(store, nil, nil, nil, checker, fraud.DefaultConfig(), logger)
	h := NewHandler(
		geovalidation.NewService(geovalidation.DefaultConfig()),
		overlap.NewService(store), fraudSvc, nil, store, nil, nil, "test", logger)
	router := NewRouter(h, logger, RouterConfig{})

	body := fmt.Sprintf(
		`{"user_id":%q,"boundary":%s,"price_amount":"250000","currency":"KES","property_type":"agricultural"}`,
		uuid.New(), squareBoundary)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/fraud/detect", body)
	require.Equal(t, http.StatusOK, rec.Code)

	checker.mu.Lock()
	defer checker.mu.Unlock()
	require.Equal(t, 1, checker.calls)
	assert.Equal(t, "250000", checker.input.Price.Amount().String())
	assert.Equal(t, "KES", checker.input.Price.Currency())
	assert.Equal(t, "agricultural", checker.input.PropertyType)
	assert.Greater(t, checker.input.AreaM2, 0.0)

	t.Run("invalid price", func(t *testing.T) {
		body := fmt.Sprintf(`{"user_id":%q,"price_amount":"a fair amount"}`, uuid.New())
		rec := doJSON(t, router, http.MethodPost, "/api/v1/fraud/detect", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, newMemoryStore())

	rec := doJSON(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)

	rec = doJSON(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	store := newMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	validatorSvc := geovalidation.NewService(geovalidation.DefaultConfig())
	h := NewHandler(validatorSvc, overlap.NewService(store), nil, nil, store, nil, nil, "test", logger)
	router := NewRouter(h, logger, RouterConfig{RequestsPerSecond: 1, BurstSize: 2})

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst of requests should trip the limiter")
}

type stubClientLimiter struct {
	allow bool
	err   error
}

func (s stubClientLimiter) Allow(context.Context, string) (bool, error) {
	return s.allow, s.err
}

// The router prefers an injected shared limiter (the Redis-backed one
// in production) over the in-process token bucket.
func TestRateLimitSharedLimiter(t *testing.T) {
	store := newMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	h := NewHandler(
		geovalidation.NewService(geovalidation.DefaultConfig()),
		overlap.NewService(store), nil, nil, store, nil, nil, "test", logger)

	t.Run("denied by shared limiter", func(t *testing.T) {
		router := NewRouter(h, logger, RouterConfig{Limiter: stubClientLimiter{allow: false}})
		rec := doJSON(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("fails open when the limiter is down", func(t *testing.T) {
		router := NewRouter(h, logger, RouterConfig{
			Limiter: stubClientLimiter{allow: false, err: assert.AnError},
		})
		rec := doJSON(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
