package training

import (
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }

// syntheticRecords follows y = 0.7*C + 0.3*floor + 0.04*C*demand exactly.
func syntheticRecords(n int, seed uint64) []map[string]any {
	rng := rand.New(rand.NewPCG(seed, 99))
	out := make([]map[string]any, n)
	for i := range out {
		c := 50 + rng.Float64()*250
		floor := 20 + rng.Float64()*130
		d := rng.Float64()
		out[i] = map[string]any{
			"competitor_avg":    c,
			"min_price":         floor,
			"demand_factor":     d,
			"actual_best_price": 0.7*c + 0.3*floor + 0.04*c*d,
		}
	}
	return out
}

func trainOpts() Options {
	o := DefaultOptions()
	o.RidgeLambda = 0
	o.Dataset = "synthetic.json"
	o.Now = fixedNow
	return o
}

func TestTrainRecoversFormulaWeights(t *testing.T) {
	res, err := Train(syntheticRecords(60, 3), pricing.DefaultWeights(), trainOpts())
	require.NoError(t, err)

	w := res.Weights
	assert.InDelta(t, 0.7, w.Alpha, 1e-6)
	assert.InDelta(t, 0.3, w.Beta, 1e-6)
	assert.InDelta(t, 0.04, w.GammaMultiplier, 1e-6)
	assert.InDelta(t, 1.0, w.Alpha+w.Beta, 1e-12)
	assert.Equal(t, "formula-v2-trained-20260309", w.ModelVersion)
	assert.Empty(t, res.Metadata.Warnings)

	m := res.Metadata
	require.Same(t, m, w.Training)
	assert.Equal(t, 60, m.RowsTotal)
	assert.Equal(t, 60, m.RowsParsed)
	assert.Equal(t, 12, m.RowsVal)
	assert.Equal(t, 48, m.RowsTrain)
	assert.Equal(t, 48, m.RowsFeatures)
	assert.Equal(t, 0, m.RowsDropped)
	assert.Equal(t, 12, m.RowsValScored)
	assert.Equal(t, uint64(42), m.Seed)
	assert.Equal(t, FeatureNames, m.Features)
	assert.Equal(t, "synthetic.json", m.Dataset)
	assert.Equal(t, "2026-03-09T12:00:00Z", m.TimestampUTC)
	assert.GreaterOrEqual(t, w.CompetitiveCeilingPct, 0.05)
	assert.LessOrEqual(t, w.CompetitiveCeilingPct, 0.3)

	total := 0
	for _, b := range m.ConfidenceCalibration.Quartiles {
		total += b.N
	}
	assert.Equal(t, m.RowsValScored, total)
	assert.Len(t, m.ConfidenceCalibration.Quartiles, 4)
}

func TestTrainIsDeterministic(t *testing.T) {
	records := syntheticRecords(80, 11)
	opts := trainOpts()
	opts.RidgeLambda = 0.01

	a, err := Train(records, pricing.DefaultWeights(), opts)
	require.NoError(t, err)
	b, err := Train(syntheticRecords(80, 11), pricing.DefaultWeights(), opts)
	require.NoError(t, err)

	assert.Equal(t, a.Raw, b.Raw)
	assert.Equal(t, a.Weights.Fingerprint(), b.Weights.Fingerprint())
	assert.Equal(t, a.Metadata.MetricsVal, b.Metadata.MetricsVal)

	opts.Seed = 7
	c, err := Train(syntheticRecords(80, 11), pricing.DefaultWeights(), opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Metadata.MetricsVal, c.Metadata.MetricsVal)
}

func TestTrainAborts(t *testing.T) {
	t.Run("too few parsed rows", func(t *testing.T) {
		_, err := Train(syntheticRecords(19, 1), pricing.DefaultWeights(), trainOpts())
		var abort *AbortError
		require.True(t, errors.As(err, &abort))
		assert.Contains(t, abort.Reason, "19")
	})

	t.Run("too few feature rows", func(t *testing.T) {
		records := syntheticRecords(25, 1)
		// min_price 0 passes parsing but the floor validator rejects it
		for i := 0; i < 20; i++ {
			records[i]["min_price"] = 0.0
		}
		opts := trainOpts()
		opts.ValSplit = 0.05
		_, err := Train(records, pricing.DefaultWeights(), opts)
		var abort *AbortError
		require.True(t, errors.As(err, &abort))
		assert.Contains(t, abort.Reason, "after feature build")
	})

	t.Run("singular system", func(t *testing.T) {
		records := make([]map[string]any, 30)
		for i := range records {
			records[i] = map[string]any{
				"competitor_avg":    100.0,
				"min_price":         80.0,
				"demand_factor":     0.5,
				"actual_best_price": 95.0,
			}
		}
		_, err := Train(records, pricing.DefaultWeights(), trainOpts())
		var abort *AbortError
		require.True(t, errors.As(err, &abort))
		assert.ErrorIs(t, err, ErrSingular)
	})
}

func TestTrainKeepsPriorExtras(t *testing.T) {
	prior, err := pricing.ParseWeights([]byte(`{"rating_weight": 0.2, "owner": "pricing-team"}`))
	require.NoError(t, err)

	res, err := Train(syntheticRecords(40, 5), prior, trainOpts())
	require.NoError(t, err)
	assert.Equal(t, 0.2, res.Weights.RatingWeight)
	assert.Contains(t, res.Weights.Extra, "owner")
}

func TestSanitizeWarnings(t *testing.T) {
	w := pricing.DefaultWeights()
	w.Alpha, w.Beta, w.GammaMultiplier = -0.2, 1.4, 0.5
	s := pricing.Sanitize(w)

	got := sanitizeWarnings(-0.2, 1.4, 0.5, s)
	assert.Equal(t, []string{WarnNegativeAlphaBeta, WarnGammaTooLarge, WarnAlphaBetaShift}, got)

	w.Alpha, w.Beta, w.GammaMultiplier = 0.6, 0.4, -0.01
	got = sanitizeWarnings(0.6, 0.4, -0.01, pricing.Sanitize(w))
	assert.Equal(t, []string{WarnNegativeGamma}, got)
}

func TestWriteWeightsIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "weights.json")

	res, err := Train(syntheticRecords(40, 8), pricing.DefaultWeights(), trainOpts())
	require.NoError(t, err)
	require.NoError(t, WriteWeights(path, res.Weights))

	back, err := pricing.LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, res.Weights.Fingerprint(), back.Fingerprint())
	require.NotNil(t, back.Training)
	assert.Equal(t, res.Metadata.RowsTrain, back.Training.RowsTrain)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "weights.json", entries[0].Name())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "}\n"))
}

func TestWriteSummary(t *testing.T) {
	res, err := Train(syntheticRecords(40, 2), pricing.DefaultWeights(), trainOpts())
	require.NoError(t, err)

	var sb strings.Builder
	res.WriteSummary(&sb, "out/weights.json")
	out := sb.String()
	assert.Contains(t, out, "Saved weights: out/weights.json")
	assert.Contains(t, out, "alpha: 0.700000")
	assert.Contains(t, out, "Validation metrics:")
}

func TestMetricsAndCalibration(t *testing.T) {
	preds := []Prediction{
		{Actual: 100, Predicted: 110, Confidence: 0.4},
		{Actual: 100, Predicted: 106, Confidence: 0.5},
		{Actual: 0, Predicted: 3, Confidence: 0.7},
		{Actual: 100, Predicted: 101, Confidence: 0.9},
		{Actual: 50, Predicted: 50, Confidence: 0.95},
	}

	m := Metrics(preds)
	assert.InDelta(t, 4.0, m.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt((100+36+9+1)/5.0), m.RMSE, 1e-6)
	assert.InDelta(t, (0.1+0.06+0.01+0)/4, m.MAPE, 1e-9)

	cal := Calibrate(preds)
	require.NotNil(t, cal.PearsonRConfAbsError)
	assert.Less(t, *cal.PearsonRConfAbsError, 0.0)
	require.Len(t, cal.Quartiles, 4)
	assert.Equal(t, []int{1, 1, 1, 2}, []int{
		cal.Quartiles[0].N, cal.Quartiles[1].N, cal.Quartiles[2].N, cal.Quartiles[3].N,
	})
	assert.Equal(t, 0.4, cal.Quartiles[0].AvgConfidence)
	assert.Equal(t, 0.925, cal.Quartiles[3].AvgConfidence)
	assert.Equal(t, 0.5, cal.Quartiles[3].MAE)

	empty := Calibrate(nil)
	assert.Nil(t, empty.PearsonRConfAbsError)
	assert.Empty(t, empty.Quartiles)
	assert.Equal(t, Metrics(nil), pricing.ValidationMetrics{})
}

func TestPearsonUndefined(t *testing.T) {
	assert.Nil(t, Pearson([]float64{1}, []float64{2}))
	assert.Nil(t, Pearson([]float64{1, 1, 1}, []float64{1, 2, 3}))
	r := Pearson([]float64{1, 2, 3}, []float64{6, 4, 2})
	require.NotNil(t, r)
	assert.InDelta(t, -1.0, *r, 1e-12)
}
