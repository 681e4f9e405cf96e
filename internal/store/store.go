package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Recommendation is one served price, logged for auditing and later
// comparison with observed outcomes.
type Recommendation struct {
	ID                 uuid.UUID              `json:"id"`
	ListingID          string                 `json:"listing_id,omitempty"`
	RecommendedPrice   float64                `json:"recommended_price"`
	Confidence         float64                `json:"confidence"`
	ModelVersion       string                 `json:"model_version"`
	WeightsFingerprint string                 `json:"weights_fingerprint"`
	Branch             string                 `json:"branch"`
	MinPriceHit        bool                   `json:"min_price_hit"`
	CeilingHit         bool                   `json:"ceiling_hit"`
	Request            map[string]interface{} `json:"request,omitempty"`
	GeneratedAt        time.Time              `json:"generated_at"`
}

type RecommendationFilter struct {
	ListingID    string
	ModelVersion string
	Limit        int
	Offset       int
}

// OutcomeFilter selects historical outcomes for training.
type OutcomeFilter struct {
	Since *time.Time
	Limit int
}

type Store interface {
	RecordRecommendation(ctx context.Context, rec *Recommendation) error
	GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error)
	ListRecommendations(ctx context.Context, filter RecommendationFilter) ([]*Recommendation, error)

	// ListOutcomes returns training records: the stored request fields plus
	// actual_best_price and listing_id.
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]map[string]interface{}, error)

	Close() error
}

// clampLimit applies the default and maximum page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
