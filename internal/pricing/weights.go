package pricing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

const DefaultModelVersion = "formula-v2"

// WeightConfig holds every tunable hyperparameter of the pricing formula.
// Values are only meaningful after Sanitize; a sanitized config is treated
// as immutable and shared across requests.
type WeightConfig struct {
	ModelVersion            string
	Alpha                   float64
	Beta                    float64
	GammaMultiplier         float64
	CompetitiveCeilingPct   float64
	DemandDefault           float64
	SalesVelocityRef        float64
	SalesVelocityWeight     float64
	StockLevelRef           float64
	StockMultiplierMaxDelta float64
	RatingWeight            float64
	CurrentPriceSmoothing   float64

	// Training is the metadata block written by the trainer, nil otherwise.
	Training *TrainingMetadata
	// Extra keeps unrecognized keys so newer documents survive a round trip.
	Extra map[string]json.RawMessage
}

// DefaultWeights returns the formula defaults.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		ModelVersion:            DefaultModelVersion,
		Alpha:                   0.65,
		Beta:                    0.35,
		GammaMultiplier:         0.05,
		CompetitiveCeilingPct:   0.07,
		DemandDefault:           0.5,
		SalesVelocityRef:        50,
		SalesVelocityWeight:     0.12,
		StockLevelRef:           100,
		StockMultiplierMaxDelta: 0.05,
		RatingWeight:            0.08,
		CurrentPriceSmoothing:   0.10,
	}
}

// Sanitize clamps or defaults every value into its documented range. It never
// fails and is idempotent.
func Sanitize(w WeightConfig) WeightConfig {
	d := DefaultWeights()
	out := w

	if out.ModelVersion == "" {
		out.ModelVersion = d.ModelVersion
	}

	alpha, beta := finiteOr(w.Alpha, 0), finiteOr(w.Beta, 0)
	if alpha <= 0 && beta <= 0 {
		alpha, beta = d.Alpha, d.Beta
	}
	alpha, beta = math.Max(0, alpha), math.Max(0, beta)
	if sum := alpha + beta; math.IsInf(sum, 0) || math.Abs(sum-1) > 1e-12 {
		// Scale by the larger weight first so the sum cannot overflow.
		m := math.Max(alpha, beta)
		alpha, beta = alpha/m, beta/m
		sum = alpha + beta
		alpha, beta = alpha/sum, beta/sum
	}
	out.Alpha, out.Beta = alpha, beta

	out.GammaMultiplier = clampOr(w.GammaMultiplier, 0, 0.2, d.GammaMultiplier)
	out.CompetitiveCeilingPct = clampOr(w.CompetitiveCeilingPct, 0, 0.3, d.CompetitiveCeilingPct)
	out.DemandDefault = clampOr(w.DemandDefault, 0, 1, d.DemandDefault)
	out.SalesVelocityRef = atLeastOr(w.SalesVelocityRef, 1, d.SalesVelocityRef)
	out.SalesVelocityWeight = clampOr(w.SalesVelocityWeight, 0, 0.25, d.SalesVelocityWeight)
	out.StockLevelRef = atLeastOr(w.StockLevelRef, 1, d.StockLevelRef)
	out.StockMultiplierMaxDelta = clampOr(w.StockMultiplierMaxDelta, 0, 0.15, d.StockMultiplierMaxDelta)
	out.RatingWeight = clampOr(w.RatingWeight, 0, 0.25, d.RatingWeight)
	out.CurrentPriceSmoothing = clampOr(w.CurrentPriceSmoothing, 0, 0.30, d.CurrentPriceSmoothing)

	return out
}

// Fingerprint identifies the formula-relevant values of a config. Two configs
// with the same fingerprint produce identical recommendations.
func (w WeightConfig) Fingerprint() string {
	doc := weightsDoc{
		ModelVersion:            w.ModelVersion,
		Alpha:                   &w.Alpha,
		Beta:                    &w.Beta,
		GammaMultiplier:         &w.GammaMultiplier,
		CompetitiveCeilingPct:   &w.CompetitiveCeilingPct,
		DemandDefault:           &w.DemandDefault,
		SalesVelocityRef:        &w.SalesVelocityRef,
		SalesVelocityWeight:     &w.SalesVelocityWeight,
		StockLevelRef:           &w.StockLevelRef,
		StockMultiplierMaxDelta: &w.StockMultiplierMaxDelta,
		RatingWeight:            &w.RatingWeight,
		CurrentPriceSmoothing:   &w.CurrentPriceSmoothing,
	}
	b, _ := json.Marshal(doc)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// weightsDoc is the persisted flat form. Pointers distinguish missing keys
// from explicit zeros.
type weightsDoc struct {
	ModelVersion            string            `json:"model_version,omitempty"`
	Alpha                   *float64          `json:"alpha,omitempty"`
	Beta                    *float64          `json:"beta,omitempty"`
	GammaMultiplier         *float64          `json:"gamma_multiplier,omitempty"`
	CompetitiveCeilingPct   *float64          `json:"competitive_ceiling_pct,omitempty"`
	DemandDefault           *float64          `json:"demand_default,omitempty"`
	SalesVelocityRef        *float64          `json:"sales_velocity_ref,omitempty"`
	SalesVelocityWeight     *float64          `json:"sales_velocity_weight,omitempty"`
	StockLevelRef           *float64          `json:"stock_level_ref,omitempty"`
	StockMultiplierMaxDelta *float64          `json:"stock_multiplier_max_delta,omitempty"`
	RatingWeight            *float64          `json:"rating_weight,omitempty"`
	CurrentPriceSmoothing   *float64          `json:"current_price_smoothing,omitempty"`
	Training                *TrainingMetadata `json:"training,omitempty"`
}

var knownKeys = map[string]bool{
	"model_version": true, "alpha": true, "beta": true, "gamma_multiplier": true,
	"competitive_ceiling_pct": true, "demand_default": true, "sales_velocity_ref": true,
	"sales_velocity_weight": true, "stock_level_ref": true, "stock_multiplier_max_delta": true,
	"rating_weight": true, "current_price_smoothing": true, "training": true,
}

// MarshalJSON writes the flat document, extra keys included.
func (w WeightConfig) MarshalJSON() ([]byte, error) {
	doc := weightsDoc{
		ModelVersion:            w.ModelVersion,
		Alpha:                   &w.Alpha,
		Beta:                    &w.Beta,
		GammaMultiplier:         &w.GammaMultiplier,
		CompetitiveCeilingPct:   &w.CompetitiveCeilingPct,
		DemandDefault:           &w.DemandDefault,
		SalesVelocityRef:        &w.SalesVelocityRef,
		SalesVelocityWeight:     &w.SalesVelocityWeight,
		StockLevelRef:           &w.StockLevelRef,
		StockMultiplierMaxDelta: &w.StockMultiplierMaxDelta,
		RatingWeight:            &w.RatingWeight,
		CurrentPriceSmoothing:   &w.CurrentPriceSmoothing,
		Training:                w.Training,
	}
	known, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if len(w.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(w.Extra)+len(knownKeys))
	for k, v := range w.Extra {
		if !knownKeys[k] {
			merged[k] = v
		}
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON overlays the document on the current values. Keys absent from
// the document keep whatever the receiver already held.
func (w *WeightConfig) UnmarshalJSON(data []byte) error {
	var doc weightsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	if doc.ModelVersion != "" {
		w.ModelVersion = doc.ModelVersion
	}
	assign(&w.Alpha, doc.Alpha)
	assign(&w.Beta, doc.Beta)
	assign(&w.GammaMultiplier, doc.GammaMultiplier)
	assign(&w.CompetitiveCeilingPct, doc.CompetitiveCeilingPct)
	assign(&w.DemandDefault, doc.DemandDefault)
	assign(&w.SalesVelocityRef, doc.SalesVelocityRef)
	assign(&w.SalesVelocityWeight, doc.SalesVelocityWeight)
	assign(&w.StockLevelRef, doc.StockLevelRef)
	assign(&w.StockMultiplierMaxDelta, doc.StockMultiplierMaxDelta)
	assign(&w.RatingWeight, doc.RatingWeight)
	assign(&w.CurrentPriceSmoothing, doc.CurrentPriceSmoothing)
	if doc.Training != nil {
		w.Training = doc.Training
	}

	for k, v := range all {
		if knownKeys[k] {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]json.RawMessage)
		}
		w.Extra[k] = v
	}
	return nil
}

// ParseWeights overlays a JSON document on the defaults and sanitizes it.
func ParseWeights(data []byte) (WeightConfig, error) {
	w := DefaultWeights()
	if len(bytes.TrimSpace(data)) == 0 {
		return Sanitize(w), nil
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return DefaultWeights(), fmt.Errorf("parse weights: %w", err)
	}
	return Sanitize(w), nil
}

// LoadWeights reads a weights document. A missing file yields the defaults.
func LoadWeights(path string) (WeightConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Sanitize(DefaultWeights()), nil
	}
	if err != nil {
		return DefaultWeights(), fmt.Errorf("read weights: %w", err)
	}
	return ParseWeights(data)
}

func assign(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, def float64) float64 {
	if !finite(v) {
		return def
	}
	return v
}

func clampOr(v, lo, hi, def float64) float64 {
	if !finite(v) {
		v = def
	}
	return clamp(v, lo, hi)
}

func atLeastOr(v, lo, def float64) float64 {
	if !finite(v) {
		v = def
	}
	return math.Max(lo, v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
