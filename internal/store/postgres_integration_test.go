//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE recommendations")
		_, _ = s.pool.Exec(ctx, "TRUNCATE pricing_outcomes")
		s.Close()
	})

	return s
}

func TestRecordAndGetRecommendation(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	rec := &Recommendation{
		ListingID:          "L-42",
		RecommendedPrice:   189.99,
		Confidence:         0.75,
		ModelVersion:       "formula-v2",
		WeightsFingerprint: "abc123",
		Branch:             "competitor",
		CeilingHit:         true,
		Request:            map[string]interface{}{"competitor_avg": 200.0},
	}
	if err := s.RecordRecommendation(ctx, rec); err != nil {
		t.Fatalf("RecordRecommendation failed: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Fatal("expected ID after record")
	}
	if rec.GeneratedAt.IsZero() {
		t.Fatal("expected generated_at to be set")
	}

	got, err := s.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecommendation failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected recommendation, got nil")
	}
	if got.RecommendedPrice != 189.99 {
		t.Errorf("expected price 189.99, got %f", got.RecommendedPrice)
	}
	if !got.CeilingHit || got.MinPriceHit {
		t.Errorf("unexpected bound flags: %+v", got)
	}
	if got.Request["competitor_avg"] != 200.0 {
		t.Errorf("expected request round-trip, got %v", got.Request)
	}

	missing, err := s.GetRecommendation(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetRecommendation(missing) failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing recommendation")
	}
}

func TestListRecommendationsFilters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i, listing := range []string{"A", "A", "B"} {
		rec := &Recommendation{
			ListingID:          listing,
			RecommendedPrice:   float64(100 + i),
			Confidence:         0.6,
			ModelVersion:       "formula-v2",
			WeightsFingerprint: "f",
			Branch:             "competitor",
		}
		if err := s.RecordRecommendation(ctx, rec); err != nil {
			t.Fatalf("RecordRecommendation failed: %v", err)
		}
	}

	all, err := s.ListRecommendations(ctx, RecommendationFilter{})
	if err != nil {
		t.Fatalf("ListRecommendations failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 recommendations, got %d", len(all))
	}

	onlyA, err := s.ListRecommendations(ctx, RecommendationFilter{ListingID: "A", Limit: 1})
	if err != nil {
		t.Fatalf("ListRecommendations(A) failed: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].ListingID != "A" {
		t.Errorf("expected one A recommendation, got %+v", onlyA)
	}
}

func TestListOutcomes(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricing_outcomes (listing_id, features, actual_best_price, observed_at)
		VALUES ('old', '{"competitor_avg": 100}', 95, now() - interval '30 days'),
		       ('new', '{"competitor_avg": 200, "min_price": 150}', 190, now())`)
	if err != nil {
		t.Fatalf("seed outcomes: %v", err)
	}

	since := time.Now().Add(-24 * time.Hour)
	recs, err := s.ListOutcomes(ctx, OutcomeFilter{Since: &since})
	if err != nil {
		t.Fatalf("ListOutcomes failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recent outcome, got %d", len(recs))
	}
	if recs[0]["listing_id"] != "new" || recs[0]["actual_best_price"] != 190.0 {
		t.Errorf("unexpected outcome record: %v", recs[0])
	}
}
