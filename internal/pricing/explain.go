package pricing

import "math"

// Explain is the full trace of one evaluation. Floats are rounded to 6 places.
type Explain struct {
	Branch string `json:"branch"`

	MinPrice         float64  `json:"min_price"`
	MinPriceSource   string   `json:"min_price_source"`
	MinPriceWinner   string   `json:"min_price_winner"`
	ProvidedMinPrice *float64 `json:"provided_min_price"`
	ComputedMinPrice *float64 `json:"computed_min_price"`

	CompetitorAvgUsed    *float64 `json:"competitor_avg_used"`
	CompetitorMethod     *string  `json:"competitor_method"`
	CompetitorSampleSize *int     `json:"competitor_sample_size"`

	DemandFactor      float64  `json:"demand_factor"`
	DemandProvided    bool     `json:"demand_provided"`
	DemandEffective   float64  `json:"demand_effective"`
	SalesVelocityNorm *float64 `json:"sales_velocity_norm"`
	RatingNorm        *float64 `json:"rating_norm"`

	StockNorm             *float64 `json:"stock_norm"`
	StockMultiplier       float64  `json:"stock_multiplier"`
	PromoMultiplier       float64  `json:"promo_multiplier"`
	SeasonalityMultiplier float64  `json:"seasonality_multiplier"`

	CurrentPrice      float64  `json:"current_price"`
	RawCandidate      float64  `json:"raw_candidate"`
	AdjustedCandidate float64  `json:"adjusted_candidate"`
	SmoothedCandidate float64  `json:"smoothed_candidate"`
	Ceiling           *float64 `json:"ceiling"`
	MinPriceHit       bool     `json:"min_price_hit"`
	CeilingHit        bool     `json:"ceiling_hit"`

	Quality           float64        `json:"quality"`
	ConfidenceFactors []FactorResult `json:"confidence_factors"`
	Weights           ExplainWeights `json:"weights"`
}

// ExplainWeights are the formula weights an evaluation used.
type ExplainWeights struct {
	Alpha                   float64 `json:"alpha"`
	Beta                    float64 `json:"beta"`
	GammaMultiplier         float64 `json:"gamma_multiplier"`
	CompetitiveCeilingPct   float64 `json:"competitive_ceiling_pct"`
	CurrentPriceSmoothing   float64 `json:"current_price_smoothing"`
	SalesVelocityWeight     float64 `json:"sales_velocity_weight"`
	RatingWeight            float64 `json:"rating_weight"`
	StockMultiplierMaxDelta float64 `json:"stock_multiplier_max_delta"`
}

// trace collects intermediate values while the evaluator runs.
type trace struct {
	branch      string
	demand      Demand
	mult        Multipliers
	raw         float64
	adjusted    float64
	smoothed    float64
	final       float64
	ceiling     *float64
	minHit      bool
	ceilingHit  bool
	confidence  Confidence
	currentUsed float64
}

func buildExplain(req *Request, w WeightConfig, t *trace) *Explain {
	e := &Explain{
		Branch:           t.branch,
		MinPrice:         round6(req.Floor.Value),
		MinPriceSource:   req.Floor.Source,
		MinPriceWinner:   req.Floor.Winner,
		ProvidedMinPrice: round6Ptr(req.Floor.Provided),
		ComputedMinPrice: round6Ptr(req.Floor.Computed),

		DemandFactor:      round6(t.demand.Base),
		DemandProvided:    t.demand.Provided,
		DemandEffective:   round6(t.demand.Effective),
		SalesVelocityNorm: round6Ptr(t.demand.SalesVelocityNorm),
		RatingNorm:        round6Ptr(t.demand.RatingNorm),

		StockNorm:             round6Ptr(t.mult.StockNorm),
		StockMultiplier:       round6(t.mult.Stock),
		PromoMultiplier:       round6(t.mult.Promo),
		SeasonalityMultiplier: round6(t.mult.Seasonality),

		CurrentPrice:      round6(t.currentUsed),
		RawCandidate:      round6(t.raw),
		AdjustedCandidate: round6(t.adjusted),
		SmoothedCandidate: round6(t.smoothed),
		Ceiling:           round6Ptr(t.ceiling),
		MinPriceHit:       t.minHit,
		CeilingHit:        t.ceilingHit,

		Quality: round6(t.confidence.Quality),
		Weights: ExplainWeights{
			Alpha:                   round6(w.Alpha),
			Beta:                    round6(w.Beta),
			GammaMultiplier:         round6(w.GammaMultiplier),
			CompetitiveCeilingPct:   round6(w.CompetitiveCeilingPct),
			CurrentPriceSmoothing:   round6(w.CurrentPriceSmoothing),
			SalesVelocityWeight:     round6(w.SalesVelocityWeight),
			RatingWeight:            round6(w.RatingWeight),
			StockMultiplierMaxDelta: round6(w.StockMultiplierMaxDelta),
		},
	}

	if c := req.Competitor; c != nil {
		avg := round6(c.Avg)
		method := c.Method
		e.CompetitorAvgUsed = &avg
		e.CompetitorMethod = &method
		if c.SampleSize > 0 {
			n := c.SampleSize
			e.CompetitorSampleSize = &n
		}
	}

	e.ConfidenceFactors = make([]FactorResult, len(t.confidence.Factors))
	for i, f := range t.confidence.Factors {
		f.Score = round6(f.Score)
		f.Weight = round6(f.Weight)
		f.Weighted = round6(f.Weighted)
		e.ConfidenceFactors[i] = f
	}
	return e
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func round6(v float64) float64 { return roundTo(v, 6) }

func round6Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round6(*v)
	return &r
}
