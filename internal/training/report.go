package training

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

// Prediction is one validation row after evaluation.
type Prediction struct {
	Actual     float64
	Predicted  float64
	Confidence float64
}

// AbsError is the absolute prediction error.
func (p Prediction) AbsError() float64 { return math.Abs(p.Predicted - p.Actual) }

// Metrics computes MAE, RMSE and MAPE. MAPE skips zero labels.
func Metrics(rows []Prediction) pricing.ValidationMetrics {
	var absSum, sqSum, pctSum float64
	pctN := 0
	for _, r := range rows {
		e := r.Predicted - r.Actual
		absSum += math.Abs(e)
		sqSum += e * e
		if r.Actual != 0 {
			pctSum += math.Abs(e) / math.Abs(r.Actual)
			pctN++
		}
	}
	n := float64(max(1, len(rows)))
	return pricing.ValidationMetrics{
		MAE:  round(absSum/n, 6),
		RMSE: round(math.Sqrt(sqSum/n), 6),
		MAPE: round(pctSum/float64(max(1, pctN)), 6),
	}
}

// Pearson returns the correlation of xs and ys, or nil when fewer than two
// points or either series has zero variance.
func Pearson(xs, ys []float64) *float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return nil
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))

	var num, dx, dy float64
	for i := range xs {
		a, b := xs[i]-mx, ys[i]-my
		num += a * b
		dx += a * a
		dy += b * b
	}
	if dx == 0 || dy == 0 {
		return nil
	}
	r := num / (math.Sqrt(dx) * math.Sqrt(dy))
	return &r
}

// Calibrate relates confidence to absolute error: the Pearson correlation and
// four confidence-ordered buckets, the last absorbing any remainder.
func Calibrate(rows []Prediction) pricing.Calibration {
	conf := make([]float64, len(rows))
	errs := make([]float64, len(rows))
	for i, r := range rows {
		conf[i] = r.Confidence
		errs[i] = r.AbsError()
	}

	cal := pricing.Calibration{Quartiles: []pricing.CalibrationBucket{}}
	if r := Pearson(conf, errs); r != nil {
		v := round(*r, 6)
		cal.PearsonRConfAbsError = &v
	}
	if len(rows) == 0 {
		return cal
	}

	ordered := append([]Prediction(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence < ordered[j].Confidence
		}
		return ordered[i].AbsError() < ordered[j].AbsError()
	})

	q := max(1, len(ordered)/4)
	for i := 0; i < 4; i++ {
		lo := i * q
		hi := (i + 1) * q
		if i == 3 || hi > len(ordered) {
			hi = len(ordered)
		}
		if lo >= hi {
			continue
		}
		chunk := ordered[lo:hi]
		var c, e float64
		for _, r := range chunk {
			c += r.Confidence
			e += r.AbsError()
		}
		cal.Quartiles = append(cal.Quartiles, pricing.CalibrationBucket{
			AvgConfidence: round(c/float64(len(chunk)), 4),
			MAE:           round(e/float64(len(chunk)), 6),
			N:             len(chunk),
		})
	}
	return cal
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
