package pricing

import "math"

// Demand is the demand factor before and after blending in sales velocity and
// rating. Norm fields are nil when the signal was absent.
type Demand struct {
	Base              float64
	Provided          bool
	Effective         float64
	SalesVelocityNorm *float64
	RatingNorm        *float64
}

// logNorm maps a non-negative quantity onto [0,1] relative to a reference.
func logNorm(x, ref float64) float64 {
	return clamp(math.Log1p(math.Max(0, x))/math.Log1p(ref), 0, 1)
}

// BaseDemand returns the normalized demand factor and whether it was given.
func BaseDemand(req *Request, w WeightConfig) (float64, bool) {
	if req.DemandFactor == nil {
		return clamp(w.DemandDefault, 0, 1), false
	}
	d := *req.DemandFactor
	if d > 1 {
		d /= 100
	}
	return clamp(d, 0, 1), true
}

// DemandEffective nudges the base demand by sales velocity and rating. The
// trainer builds its interaction feature from this same function.
func DemandEffective(req *Request, w WeightConfig) Demand {
	base, provided := BaseDemand(req, w)
	d := Demand{Base: base, Provided: provided, Effective: base}

	if req.SalesVelocity != nil {
		norm := logNorm(*req.SalesVelocity, w.SalesVelocityRef)
		d.SalesVelocityNorm = &norm
		d.Effective += w.SalesVelocityWeight * ((norm - 0.5) * 2)
	}
	if req.Rating != nil {
		norm := clamp(*req.Rating/5, 0, 1)
		d.RatingNorm = &norm
		d.Effective += w.RatingWeight * ((norm - 0.5) * 2)
	}
	d.Effective = clamp(d.Effective, 0, 1)
	return d
}

// Multipliers are the stock, promo and seasonality adjustments.
type Multipliers struct {
	StockNorm   *float64
	Stock       float64
	Promo       float64
	Seasonality float64
}

// Product is the combined multiplier applied to a candidate.
func (m Multipliers) Product() float64 {
	return m.Stock * m.Promo * m.Seasonality
}

// ComputeMultipliers derives the candidate multipliers. High relative stock
// lowers the price, low stock raises it.
func ComputeMultipliers(req *Request, w WeightConfig) Multipliers {
	m := Multipliers{Stock: 1, Promo: 1, Seasonality: 1}

	if req.StockLevel != nil {
		norm := logNorm(*req.StockLevel, w.StockLevelRef)
		m.StockNorm = &norm
		delta := w.StockMultiplierMaxDelta
		m.Stock = clamp(1+delta*(0.5-norm)*2, 1-delta, 1+delta)
	}

	if req.PromoFactor != nil {
		p := *req.PromoFactor
		if p >= 1.5 && p <= 100 {
			p = 1 - p/100
		}
		m.Promo = clamp(p, 0.70, 1.20)
	}

	if req.SeasonalityFactor != nil {
		m.Seasonality = clamp(*req.SeasonalityFactor, 0.85, 1.15)
	}
	return m
}
