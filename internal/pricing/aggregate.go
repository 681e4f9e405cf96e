package pricing

import (
	"errors"
	"sort"
)

const (
	MethodAvg            = "avg"
	MethodMedian         = "median"
	MethodTrimmedMean    = "trimmed_mean_10pct"
	MethodMedianFallback = "median_fallback"
)

// CompetitorSignal is the single market price the formula blends against.
type CompetitorSignal struct {
	Avg        float64 `json:"avg"`
	Method     string  `json:"method"`
	SampleSize int     `json:"sample_size"`
}

// ErrNoPrices is returned when there is nothing to aggregate.
var ErrNoPrices = errors.New("no competitor prices")

// Aggregate collapses positive competitor prices into one value. Small samples
// use the median; five or more use a 10% trimmed mean.
func Aggregate(prices []float64) (CompetitorSignal, error) {
	n := len(prices)
	if n == 0 {
		return CompetitorSignal{}, ErrNoPrices
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	if n < 5 {
		return CompetitorSignal{Avg: median(sorted), Method: MethodMedian, SampleSize: n}, nil
	}

	trim := n / 10
	if trim < 1 {
		trim = 1
	}
	core := sorted[trim : n-trim]
	if len(core) == 0 {
		return CompetitorSignal{Avg: median(sorted), Method: MethodMedianFallback, SampleSize: n}, nil
	}

	var sum float64
	for _, p := range core {
		sum += p
	}
	return CompetitorSignal{Avg: sum / float64(len(core)), Method: MethodTrimmedMean, SampleSize: n}, nil
}

// median of an already sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
