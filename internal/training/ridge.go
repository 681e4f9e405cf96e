package training

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const pivotEpsilon = 1e-12

var (
	// ErrSingular means the regularized normal equations have no unique
	// solution.
	ErrSingular = errors.New("singular matrix")
	ErrEmpty    = errors.New("no training rows")
	ErrNoFeats  = errors.New("no features")
)

// SolveRidge solves (XᵀX + λI)w = Xᵀy by Gaussian elimination with partial
// pivoting. X is n×p.
func SolveRidge(X [][]float64, y []float64, lambda float64) ([]float64, error) {
	n := len(X)
	if n == 0 {
		return nil, ErrEmpty
	}
	if len(y) != n {
		return nil, fmt.Errorf("ridge: %d rows but %d labels", n, len(y))
	}
	p := len(X[0])
	if p == 0 {
		return nil, ErrNoFeats
	}
	lambda = math.Max(0, lambda)

	// augmented [A | b] with A = XᵀX + λI and b = Xᵀy
	aug := make([][]float64, p)
	for i := range aug {
		aug[i] = make([]float64, p+1)
	}
	for r, row := range X {
		if len(row) != p {
			return nil, fmt.Errorf("ridge: row %d has %d features, want %d", r, len(row), p)
		}
		for i := 0; i < p; i++ {
			aug[i][p] += row[i] * y[r]
			for j := 0; j < p; j++ {
				aug[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		aug[i][i] += lambda
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < pivotEpsilon {
			return nil, fmt.Errorf("%w at column %d (try increasing ridge_lambda)", ErrSingular, col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := col; j <= p; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= p; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	w := make([]float64, p)
	for i := range w {
		w[i] = aug[i][p]
	}
	return w, nil
}

// ScaleColumns divides every column by the 95th percentile of its absolute
// values. Scales below 1e-6 are replaced by 1.
func ScaleColumns(X [][]float64) ([][]float64, []float64) {
	if len(X) == 0 {
		return nil, nil
	}
	p := len(X[0])
	scales := make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i, row := range X {
			col[i] = math.Abs(row[j])
		}
		sort.Float64s(col)
		s := percentile(col, 0.95)
		if s <= 1e-6 {
			s = 1
		}
		scales[j] = s
	}

	scaled := make([][]float64, len(X))
	for i, row := range X {
		out := make([]float64, p)
		for j := 0; j < p && j < len(row); j++ {
			out[j] = row[j] / scales[j]
		}
		scaled[i] = out
	}
	return scaled, scales
}

// FitScaled solves the ridge system on column-scaled features and maps the
// weights back to the original units.
func FitScaled(X [][]float64, y []float64, lambda float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	for i, row := range X {
		if len(row) != len(X[0]) {
			return nil, fmt.Errorf("ridge: row %d has %d features, want %d", i, len(row), len(X[0]))
		}
	}
	scaled, scales := ScaleColumns(X)
	w, err := SolveRidge(scaled, y, lambda)
	if err != nil {
		return nil, err
	}
	for j := range w {
		w[j] /= scales[j]
	}
	return w, nil
}
