package training

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

// FeatureNames are the regression columns, matching alpha, beta and
// gamma_multiplier in that order.
var FeatureNames = []string{"competitor_avg", "min_price", "competitor_avg*demand_effective"}

const (
	minCeilingPct = 0.05
	maxCeilingPct = 0.30
)

// FeatureSet is the design matrix built from historical rows plus the
// dataset-level defaults derived alongside it.
type FeatureSet struct {
	X       [][]float64
	Y       []float64
	Dropped int

	// DemandDefault is the median provided demand factor, or the prior value
	// when no row supplied one.
	DemandDefault float64
	// CeilingPct is the 95th-percentile premium over the competitor signal.
	CeilingPct float64
}

// BuildFeatures reruns the live validator, floor, aggregator and demand logic
// on every row using the current weights w. Rows the validator rejects or that
// resolve to no competitor signal are dropped and counted.
func BuildFeatures(rows []Row, w pricing.WeightConfig) FeatureSet {
	fs := FeatureSet{
		X:             make([][]float64, 0, len(rows)),
		Y:             make([]float64, 0, len(rows)),
		DemandDefault: w.DemandDefault,
		CeilingPct:    w.CompetitiveCeilingPct,
	}

	var demands, ratios []float64
	for _, row := range rows {
		req, err := pricing.Validate(row.Payload)
		if err != nil || req.Competitor == nil || req.Competitor.Avg <= 0 {
			fs.Dropped++
			continue
		}

		c := req.Competitor.Avg
		d := pricing.DemandEffective(req, w)
		if d.Provided {
			demands = append(demands, d.Base)
		}

		fs.X = append(fs.X, []float64{c, req.Floor.Value, c * d.Effective})
		fs.Y = append(fs.Y, row.Label)
		ratios = append(ratios, row.Label/c-1)
	}

	if len(demands) > 0 {
		sort.Float64s(demands)
		fs.DemandDefault = percentile(demands, 0.5)
	}
	if len(ratios) > 0 {
		sort.Float64s(ratios)
		p95 := math.Max(0, percentile(ratios, 0.95))
		fs.CeilingPct = math.Max(minCeilingPct, math.Min(p95, maxCeilingPct))
	}
	return fs
}

// percentile returns the nearest-rank value at q of an ascending slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))
	idx := int(math.Round(q * float64(len(sorted)-1)))
	return sorted[idx]
}
