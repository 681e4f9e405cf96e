package hermes

import "time"

type RecommendationCreatedEvent struct {
	RecommendationID string    `json:"recommendation_id"`
	ListingID        string    `json:"listing_id,omitempty"`
	RecommendedPrice float64   `json:"recommended_price"`
	Confidence       float64   `json:"confidence"`
	ModelVersion     string    `json:"model_version"`
	Branch           string    `json:"branch"`
	MinPriceHit      bool      `json:"min_price_hit"`
	CeilingHit       bool      `json:"ceiling_hit"`
	Timestamp        time.Time `json:"timestamp"`
}

// ModelTrainedEvent announces a new weights document. Servers watching Path
// reload it on receipt.
type ModelTrainedEvent struct {
	ModelVersion string    `json:"model_version"`
	Path         string    `json:"path"`
	Dataset      string    `json:"dataset,omitempty"`
	RowsTrain    int       `json:"rows_train"`
	ValMAE       float64   `json:"val_mae"`
	Warnings     []string  `json:"warnings,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type WeightsReloadedEvent struct {
	ModelVersion string    `json:"model_version"`
	Fingerprint  string    `json:"fingerprint"`
	Trigger      string    `json:"trigger"`
	Timestamp    time.Time `json:"timestamp"`
}
