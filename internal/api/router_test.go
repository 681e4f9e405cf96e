package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
)

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(NewRouter(testDeps()), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, pricing.DefaultModelVersion, resp["model_version"])
}

func TestModelEndpoint(t *testing.T) {
	d := testDeps()
	w := get(NewRouter(d), "/v1/model")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ModelVersion string         `json:"model_version"`
		Fingerprint  string         `json:"fingerprint"`
		Source       string         `json:"source"`
		Weights      map[string]any `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, d.Holder.Load().Fingerprint, resp.Fingerprint)
	assert.Equal(t, "defaults", resp.Source)
	assert.InDelta(t, 0.65, resp.Weights["alpha"], 1e-12)
}

func TestAdminReload(t *testing.T) {
	d := testDeps()
	d.AdminToken = "secret"
	rl := &stubReloader{holder: d.Holder, changed: true}
	d.Reloader = rl
	router := NewRouter(d)

	req := httptest.NewRequest(http.MethodPost, "/admin/weights/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, rl.calls)

	req = httptest.NewRequest(http.MethodPost, "/admin/weights/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, d.Holder.Load().Fingerprint, resp.Model.Fingerprint)

	rl.err = errors.New("parse weights: unexpected EOF")
	req = httptest.NewRequest(http.MethodPost, "/admin/weights/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unexpected EOF")
}

func TestAdminReloadNotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/weights/reload", nil)
	w := httptest.NewRecorder()
	NewRouter(testDeps()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecommendationsEndpoints(t *testing.T) {
	d := testDeps()
	ms := new(MockStore)
	d.Store = ms
	router := NewRouter(d)

	id := uuid.New()
	rec := &store.Recommendation{ID: id, ListingID: "L-1", RecommendedPrice: 99.5, GeneratedAt: time.Now()}

	ms.On("GetRecommendation", mock.Anything, id).Return(rec, nil)
	ms.On("GetRecommendation", mock.Anything, mock.Anything).Return(nil, nil)
	ms.On("ListRecommendations", mock.Anything, store.RecommendationFilter{ListingID: "L-1", Limit: 5}).
		Return([]*store.Recommendation{rec}, nil)
	ms.On("ListRecommendations", mock.Anything, store.RecommendationFilter{}).Return(nil, nil)

	w := get(router, "/v1/recommendations/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"listing_id":"L-1"`)

	w = get(router, "/v1/recommendations/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(router, "/v1/recommendations/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(router, "/v1/recommendations?listing_id=L-1&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Recommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = get(router, "/v1/recommendations")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = get(router, "/v1/recommendations?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsWithoutStore(t *testing.T) {
	w := get(NewRouter(testDeps()), "/v1/recommendations")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouterRateLimit(t *testing.T) {
	d := testDeps()
	d.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	router := NewRouter(d)

	assert.Equal(t, http.StatusOK, postJSON(t, router, "/v1/recommend", sampleBody).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, router, "/v1/recommend", sampleBody).Code)
	assert.Equal(t, http.StatusOK, get(router, "/health").Code, "health is not rate limited")
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := testDeps()
	d.Metrics = metrics.New(reg)
	postJSON(t, NewRouter(d), "/v1/recommend", sampleBody)

	w := get(NewMetricsRouter(reg), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `priceengine_recommendations_total{branch="competitor"} 1`)

	assert.Equal(t, http.StatusOK, get(NewMetricsRouter(reg), "/health").Code)
}
