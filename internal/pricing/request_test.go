package pricing

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectsAllFieldErrors(t *testing.T) {
	_, err := Validate(map[string]any{
		"cost_price":        "abc",
		"shipping_cost":     -4.0,
		"rating":            math.Inf(1),
		"competitor_prices": []any{10.0, "x"},
		"min_price":         true,
	})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "invalid input", verr.Message)
	assert.Equal(t, map[string]string{
		"cost_price":        "must be a number",
		"shipping_cost":     "must be >= 0",
		"rating":            "must be finite",
		"competitor_prices": "item 1 must be a number",
		"min_price":         "must be a number",
	}, verr.Fields)
	assert.Contains(t, verr.Error(), "competitor_prices")
}

func TestValidateNumberForms(t *testing.T) {
	req, err := Validate(map[string]any{
		"cost_price":       json.Number("80"),
		"desired_margin":   "25",
		"platform_fee_pct": 12,
		"current_price":    "",
		"listing_id":       "  sku-1 ",
	})
	require.NoError(t, err)

	require.NotNil(t, req.CostPrice)
	assert.Equal(t, 80.0, *req.CostPrice)
	assert.InDelta(t, 0.25, req.DesiredMargin, 1e-12)
	assert.InDelta(t, 0.12, req.PlatformFeePct, 1e-12)
	assert.Equal(t, 0.0, req.CurrentPrice)
	assert.Equal(t, "sku-1", req.ListingID)
}

func TestNormalizeFraction(t *testing.T) {
	assert.Equal(t, 0.2, normalizeFraction(0.2, 1))
	assert.InDelta(t, 0.2, normalizeFraction(20, 1), 1e-12)
	assert.Equal(t, 1.0, normalizeFraction(500, 1))
	assert.Equal(t, 0.3, normalizeFraction(45, 0.3))
	assert.Equal(t, 1.0, normalizeFraction(1, 1))
}

func TestMinPriceFloor(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		value  float64
		source string
		winner string
	}{
		{"provided only", map[string]any{"min_price": 42.0}, 42, FloorProvided, FloorProvided},
		{"computed only", map[string]any{"cost_price": 100.0, "desired_margin": 0.2}, 120, FloorComputed, FloorComputed},
		{"computed wins", map[string]any{"cost_price": 100.0, "desired_margin": 0.2, "min_price": 110.0}, 120, FloorMax, FloorComputed},
		{"provided wins", map[string]any{"cost_price": 100.0, "desired_margin": 0.2, "min_price": 130.0}, 130, FloorMax, FloorProvided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Validate(tt.body)
			require.NoError(t, err)
			assert.InDelta(t, tt.value, req.Floor.Value, 1e-9)
			assert.Equal(t, tt.source, req.Floor.Source)
			assert.Equal(t, tt.winner, req.Floor.Winner)
		})
	}
}

func TestMinPriceRequired(t *testing.T) {
	for _, body := range []map[string]any{
		{},
		{"cost_price": 0.0},
		{"min_price": -5.0},
	} {
		_, err := Validate(body)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "body %v", body)
		assert.Contains(t, verr.Fields, "min_price")
	}
}

func TestCompetitorResolution(t *testing.T) {
	t.Run("average wins over list", func(t *testing.T) {
		req, err := Validate(map[string]any{
			"min_price":          1.0,
			"competitor_avg":     50.0,
			"competitor_prices":  []any{10.0, 20.0},
			"market_sample_size": 12.0,
		})
		require.NoError(t, err)
		require.NotNil(t, req.Competitor)
		assert.Equal(t, 50.0, req.Competitor.Avg)
		assert.Equal(t, MethodAvg, req.Competitor.Method)
		assert.Equal(t, 12, req.Competitor.SampleSize)
	})

	t.Run("non-positive average falls back to list", func(t *testing.T) {
		req, err := Validate(map[string]any{
			"min_price":         1.0,
			"competitor_avg":    0.0,
			"competitor_prices": []string{"10", "30", "0", "20"},
		})
		require.NoError(t, err)
		require.NotNil(t, req.Competitor)
		assert.Equal(t, 20.0, req.Competitor.Avg)
		assert.Equal(t, MethodMedian, req.Competitor.Method)
		assert.Equal(t, 3, req.Competitor.SampleSize)
	})

	t.Run("list without positives is invalid", func(t *testing.T) {
		_, err := Validate(map[string]any{
			"min_price":         1.0,
			"competitor_prices": []any{0.0, -3.0},
		})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must contain at least one positive price", verr.Fields["competitor_prices"])
	})

	t.Run("huge sample size saturates", func(t *testing.T) {
		req, err := Validate(map[string]any{
			"min_price":          1.0,
			"competitor_avg":     50.0,
			"market_sample_size": 1e300,
		})
		require.NoError(t, err)
		require.NotNil(t, req.Competitor)
		assert.Equal(t, int(maxSampleSize), req.Competitor.SampleSize)
		f := CompetitorQualityFactor(req.Competitor)
		assert.True(t, f.Available)
		assert.Equal(t, 1.0, f.Score)
	})

	t.Run("no signal", func(t *testing.T) {
		req, err := Validate(map[string]any{"min_price": 1.0, "competitor_prices": []any{}})
		require.NoError(t, err)
		assert.Nil(t, req.Competitor)
	})
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		avg    float64
		method string
	}{
		{"single", []float64{42}, 42, MethodMedian},
		{"even median", []float64{40, 10, 30, 20}, 25, MethodMedian},
		{"five trims one each side", []float64{199, 205, 198, 240, 9999}, (199.0 + 205 + 240) / 3, MethodTrimmedMean},
		{"twenty trims two each side", seq(1, 20), 10.5, MethodTrimmedMean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Aggregate(tt.prices)
			require.NoError(t, err)
			assert.InDelta(t, tt.avg, s.Avg, 1e-9)
			assert.Equal(t, tt.method, s.Method)
			assert.Equal(t, len(tt.prices), s.SampleSize)
		})
	}

	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoPrices)
}

func TestAggregateDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}
