package pricing

import "math"

// FactorResult captures one component's contribution to the confidence score.
type FactorResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

// Confidence is the heuristic trust score with its components.
type Confidence struct {
	Score   float64        `json:"score"`
	Quality float64        `json:"quality"`
	Factors []FactorResult `json:"factors"`
}

const (
	confidenceBase  = 0.35
	confidenceScale = 0.6
	boundPenalty    = 0.05
)

// --- Individual factor calculators ---

// CompetitorQualityFactor grows with the market sample size.
func CompetitorQualityFactor(signal *CompetitorSignal) FactorResult {
	if signal == nil || signal.SampleSize <= 0 {
		return FactorResult{Name: "competitor_quality", Score: 0.6, Available: false, Reason: "no sample size"}
	}
	score := clamp(math.Log1p(float64(signal.SampleSize))/math.Log1p(10), 0, 1)
	return FactorResult{Name: "competitor_quality", Score: score, Available: true, Reason: "from sample size"}
}

// DemandQualityFactor rewards an explicitly provided demand factor.
func DemandQualityFactor(demandProvided bool) FactorResult {
	if demandProvided {
		return FactorResult{Name: "demand_quality", Score: 1.0, Available: true, Reason: "demand provided"}
	}
	return FactorResult{Name: "demand_quality", Score: 0.7, Available: false, Reason: "demand defaulted"}
}

// ExtrasQualityFactor is the fraction of optional signals present and non-zero.
func ExtrasQualityFactor(req *Request) FactorResult {
	present := 0
	for _, v := range []float64{
		deref(req.SalesVelocity),
		deref(req.StockLevel),
		deref(req.Rating),
		req.ShippingCost,
		req.PlatformFeePct,
	} {
		if v != 0 {
			present++
		}
	}
	return FactorResult{
		Name:      "extras_quality",
		Score:     float64(present) / 5,
		Available: present > 0,
		Reason:    "optional signals present",
	}
}

// ScoreWithCompetitor computes confidence when a competitor signal exists.
//
//	quality    = 0.55*competitor + 0.25*demand + 0.20*extras
//	confidence = 0.35 + 0.6*quality - 0.05*min_price_hit - 0.05*ceiling_hit
func ScoreWithCompetitor(req *Request, demandProvided, minHit, ceilingHit bool) Confidence {
	factors := []FactorResult{
		CompetitorQualityFactor(req.Competitor),
		DemandQualityFactor(demandProvided),
		ExtrasQualityFactor(req),
	}
	weights := []float64{0.55, 0.25, 0.20}

	var quality float64
	for i := range factors {
		factors[i].Weight = weights[i]
		factors[i].Weighted = factors[i].Score * weights[i]
		quality += factors[i].Weighted
	}

	score := confidenceBase + confidenceScale*quality
	if minHit {
		score -= boundPenalty
	}
	if ceilingHit {
		score -= boundPenalty
	}
	return Confidence{Score: clamp(score, 0, 1), Quality: quality, Factors: factors}
}

// ScoreWithoutCompetitor is the fixed heuristic used when there is no market
// signal. Only demand availability moves it.
func ScoreWithoutCompetitor(demandProvided bool) Confidence {
	demand := DemandQualityFactor(demandProvided)
	if !demandProvided {
		demand.Score = 0.6
	}
	demand.Weight = 0.20
	demand.Weighted = demand.Score * demand.Weight

	base := FactorResult{Name: "no_market_signal", Score: 1, Weight: 0.30, Weighted: 0.30, Available: false, Reason: "fixed baseline"}
	quality := base.Weighted + demand.Weighted
	return Confidence{
		Score:   clamp(confidenceBase+confidenceScale*quality, 0, 1),
		Quality: quality,
		Factors: []FactorResult{base, demand},
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
