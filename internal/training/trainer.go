package training

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

const (
	MinParsedRows  = 20
	MinFeatureRows = 10

	DefaultRidgeLambda = 0.01
	DefaultValSplit    = 0.2
	DefaultSeed        = 42

	modelVersionPrefix = pricing.DefaultModelVersion + "-trained-"
)

// Warning messages attached when sanitizing changed the raw fit.
const (
	WarnNegativeAlphaBeta = "alpha/beta had negative values; clamped + renormalized."
	WarnNegativeGamma     = "gamma_multiplier was negative; clamped to 0."
	WarnGammaTooLarge     = "gamma_multiplier exceeded 0.2; clamped."
	WarnAlphaBetaShift    = "alpha/beta changed noticeably after renormalization."
)

// Options tune a training run.
type Options struct {
	RidgeLambda float64
	ValSplit    float64
	Seed        uint64
	Dataset     string
	Now         func() time.Time
}

// DefaultOptions returns the stock hyperparameters.
func DefaultOptions() Options {
	return Options{
		RidgeLambda: DefaultRidgeLambda,
		ValSplit:    DefaultValSplit,
		Seed:        DefaultSeed,
	}
}

// AbortError stops a training run. No weights are produced.
type AbortError struct {
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return "training aborted: " + e.Reason + ": " + e.Err.Error()
	}
	return "training aborted: " + e.Reason
}

func (e *AbortError) Unwrap() error { return e.Err }

// Result is a fitted configuration with its report.
type Result struct {
	Weights  pricing.WeightConfig
	Raw      []float64
	Metadata *pricing.TrainingMetadata
	// EvalFailures counts validation rows whose evaluation hit a
	// computation error.
	EvalFailures int
}

// Train fits alpha, beta and gamma_multiplier on historical records. prior
// supplies every other weight and the demand logic used to build features.
func Train(records []map[string]any, prior pricing.WeightConfig, opts Options) (*Result, error) {
	prior = pricing.Sanitize(prior)
	lambda := math.Max(0, opts.RidgeLambda)
	split := math.Max(0.05, math.Min(0.5, opts.ValSplit))
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	rows := ParseRecords(records)
	if len(rows) < MinParsedRows {
		return nil, &AbortError{Reason: fmt.Sprintf("not enough valid rows for training: %d", len(rows))}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	valN := max(1, int(float64(len(rows))*split))
	valRows, trainRows := rows[:valN], rows[valN:]

	fs := BuildFeatures(trainRows, prior)
	if len(fs.X) < MinFeatureRows {
		return nil, &AbortError{Reason: fmt.Sprintf("not enough usable rows after feature build: %d", len(fs.X))}
	}

	raw, err := FitScaled(fs.X, fs.Y, lambda)
	if err != nil {
		return nil, &AbortError{Reason: "ridge solve failed", Err: err}
	}
	alphaRaw, betaRaw, gammaRaw := raw[0], raw[1], raw[2]

	fitted := prior
	fitted.Alpha = alphaRaw
	fitted.Beta = betaRaw
	fitted.GammaMultiplier = gammaRaw
	fitted.CompetitiveCeilingPct = fs.CeilingPct
	fitted.DemandDefault = fs.DemandDefault
	fitted.Training = nil
	fitted = pricing.Sanitize(fitted)

	preds, failures := evaluate(valRows, fitted)

	ts := now().UTC()
	fitted.ModelVersion = modelVersionPrefix + ts.Format("20060102")
	fitted.Training = &pricing.TrainingMetadata{
		TimestampUTC:  ts.Format(time.RFC3339Nano),
		Dataset:       opts.Dataset,
		RowsTotal:     len(records),
		RowsParsed:    len(rows),
		RowsTrain:     len(trainRows),
		RowsVal:       len(valRows),
		RowsFeatures:  len(fs.X),
		RowsDropped:   fs.Dropped,
		RowsValScored: len(preds),
		RidgeLambda:   lambda,
		ValSplit:      split,
		Seed:          opts.Seed,
		Features:      append([]string(nil), FeatureNames...),
		RawCoefficients: map[string]float64{
			"alpha":            alphaRaw,
			"beta":             betaRaw,
			"gamma_multiplier": gammaRaw,
		},
		MetricsVal:            Metrics(preds),
		ConfidenceCalibration: Calibrate(preds),
		Warnings:              sanitizeWarnings(alphaRaw, betaRaw, gammaRaw, fitted),
	}

	return &Result{Weights: fitted, Raw: raw, Metadata: fitted.Training, EvalFailures: failures}, nil
}

// evaluate runs the live evaluator on every validation row. Rows the
// validator rejects are skipped; computation errors are skipped and counted.
func evaluate(rows []Row, w pricing.WeightConfig) ([]Prediction, int) {
	preds := make([]Prediction, 0, len(rows))
	failures := 0
	for _, row := range rows {
		res, err := pricing.EvaluateBody(row.Payload, w, false)
		if err != nil {
			var cerr *pricing.ComputationError
			if errors.As(err, &cerr) {
				failures++
			}
			continue
		}
		preds = append(preds, Prediction{
			Actual:     row.Label,
			Predicted:  res.RecommendedPrice,
			Confidence: res.Confidence,
		})
	}
	return preds, failures
}

func sanitizeWarnings(alphaRaw, betaRaw, gammaRaw float64, w pricing.WeightConfig) []string {
	var out []string
	if alphaRaw < 0 || betaRaw < 0 {
		out = append(out, WarnNegativeAlphaBeta)
	}
	if gammaRaw < 0 {
		out = append(out, WarnNegativeGamma)
	}
	if gammaRaw > 0.2 {
		out = append(out, WarnGammaTooLarge)
	}
	if math.Abs(w.Alpha-alphaRaw) > 0.05 || math.Abs(w.Beta-betaRaw) > 0.05 {
		out = append(out, WarnAlphaBetaShift)
	}
	return out
}

// WriteSummary prints the learned weights and the validation report.
func (r *Result) WriteSummary(out io.Writer, path string) {
	w, m := r.Weights, r.Metadata
	fmt.Fprintln(out, "Saved weights:", path)
	fmt.Fprintln(out, "Model version:", w.ModelVersion)
	fmt.Fprintln(out, "Learned (sanitized):")
	fmt.Fprintf(out, "  alpha: %.6f\n", w.Alpha)
	fmt.Fprintf(out, "  beta: %.6f\n", w.Beta)
	fmt.Fprintf(out, "  gamma_multiplier: %.6f\n", w.GammaMultiplier)
	fmt.Fprintf(out, "  competitive_ceiling_pct: %.6f\n", w.CompetitiveCeilingPct)
	fmt.Fprintf(out, "  demand_default: %.6f\n", w.DemandDefault)
	fmt.Fprintf(out, "Validation metrics: mae=%.6f rmse=%.6f mape=%.6f (n=%d)\n",
		m.MetricsVal.MAE, m.MetricsVal.RMSE, m.MetricsVal.MAPE, m.RowsValScored)
	if pr := m.ConfidenceCalibration.PearsonRConfAbsError; pr != nil {
		fmt.Fprintf(out, "Confidence calibration (pearson r vs abs error): %.4f (negative is better)\n", *pr)
	}
	if len(m.Warnings) > 0 {
		fmt.Fprintln(out, "Sanity warnings:")
		for _, warn := range m.Warnings {
			fmt.Fprintf(out, "  - %s\n", warn)
		}
	}
}
