package api

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"

	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
)

// MockStore implements store.Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) RecordRecommendation(ctx context.Context, rec *store.Recommendation) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) GetRecommendation(ctx context.Context, id uuid.UUID) (*store.Recommendation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Recommendation), args.Error(1)
}

func (m *MockStore) ListRecommendations(ctx context.Context, filter store.RecommendationFilter) ([]*store.Recommendation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Recommendation), args.Error(1)
}

func (m *MockStore) ListOutcomes(ctx context.Context, filter store.OutcomeFilter) ([]map[string]interface{}, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockStore) Close() error { return nil }

// MockHermes implements hermes.Client for testing
type MockHermes struct {
	mock.Mock
}

func (m *MockHermes) Publish(subject string, data interface{}) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func (m *MockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	args := m.Called(subject, handler)
	return args.Error(0)
}

func (m *MockHermes) Close() {}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*pricing.Result
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*pricing.Result{}}
}

func (c *memCache) Get(_ context.Context, key string) (*pricing.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	res, ok := c.entries[key]
	return res, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, res *pricing.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = res
	return nil
}

type stubReloader struct {
	holder  *pricing.Holder
	changed bool
	err     error
	calls   int
}

func (s *stubReloader) ReloadNow(_ string) (*pricing.Snapshot, bool, error) {
	s.calls++
	return s.holder.Load(), s.changed, s.err
}

func testDeps() Deps {
	return Deps{
		Holder:  pricing.NewHolder(pricing.DefaultWeights(), "defaults"),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimit: config.RateLimitConfig{
			Enabled: false,
		},
	}
}
