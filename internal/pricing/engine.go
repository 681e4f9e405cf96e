package pricing

import "math"

const (
	BranchCompetitor   = "competitor"
	BranchNoCompetitor = "no_competitor"

	boundTolerance = 1e-9
)

// Result is the outcome of one evaluation.
type Result struct {
	RecommendedPrice float64  `json:"recommended_price"`
	Confidence       float64  `json:"confidence"`
	ModelVersion     string   `json:"model_version"`
	Explain          *Explain `json:"explain,omitempty"`

	Branch      string `json:"-"`
	MinPriceHit bool   `json:"-"`
	CeilingHit  bool   `json:"-"`
}

// EvaluateBody validates an untyped body and evaluates it.
func EvaluateBody(body map[string]any, w WeightConfig, explain bool) (*Result, error) {
	req, err := Validate(body)
	if err != nil {
		return nil, err
	}
	return Evaluate(req, w, explain)
}

// Evaluate computes the recommended price for a validated request. It is a pure
// function of its inputs and safe to call concurrently with a shared config.
func Evaluate(req *Request, w WeightConfig, explain bool) (*Result, error) {
	t := &trace{
		demand: DemandEffective(req, w),
		mult:   ComputeMultipliers(req, w),
	}

	var err error
	if req.Competitor == nil || req.Competitor.Avg <= 0 {
		err = evaluateWithoutCompetitor(req, w, t)
	} else {
		err = evaluateWithCompetitor(req, w, t)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		RecommendedPrice: roundWithin(t.final, req.Floor.Value, t.ceiling),
		Confidence:       roundTo(t.confidence.Score, 4),
		ModelVersion:     w.ModelVersion,
		Branch:           t.branch,
		MinPriceHit:      t.minHit,
		CeilingHit:       t.ceilingHit,
	}
	if explain {
		res.Explain = buildExplain(req, w, t)
	}
	return res, nil
}

func evaluateWithoutCompetitor(req *Request, w WeightConfig, t *trace) error {
	floor := req.Floor.Value
	t.branch = BranchNoCompetitor

	base := floor
	if req.CurrentPrice > 0 {
		base = req.CurrentPrice
		t.currentUsed = req.CurrentPrice
	}
	t.raw = math.Max(floor, base)
	t.adjusted = t.raw * t.mult.Product()
	t.smoothed = smooth(t.adjusted, req.CurrentPrice, w.CurrentPriceSmoothing)
	t.final = math.Max(floor, t.smoothed)
	t.minHit = math.Abs(t.final-floor) <= boundTolerance

	if err := checkFinite(
		stageValue{"adjusted_candidate", t.adjusted},
		stageValue{"smoothed_candidate", t.smoothed},
		stageValue{"final_candidate", t.final},
	); err != nil {
		return err
	}
	t.confidence = ScoreWithoutCompetitor(t.demand.Provided)
	return nil
}

func evaluateWithCompetitor(req *Request, w WeightConfig, t *trace) error {
	floor := req.Floor.Value
	c := req.Competitor.Avg
	t.branch = BranchCompetitor
	t.currentUsed = req.CurrentPrice

	t.raw = w.Alpha*c + w.Beta*floor + w.GammaMultiplier*c*t.demand.Effective
	t.adjusted = t.raw * t.mult.Product()
	t.smoothed = smooth(t.adjusted, req.CurrentPrice, w.CurrentPriceSmoothing)

	ceiling := math.Max(floor, c*(1+w.CompetitiveCeilingPct))
	t.ceiling = &ceiling

	if err := checkFinite(
		stageValue{"raw_candidate", t.raw},
		stageValue{"adjusted_candidate", t.adjusted},
		stageValue{"smoothed_candidate", t.smoothed},
		stageValue{"ceiling", ceiling},
	); err != nil {
		return err
	}

	t.final = clamp(t.smoothed, floor, ceiling)
	t.minHit = math.Abs(t.final-floor) <= boundTolerance
	t.ceilingHit = math.Abs(t.final-ceiling) <= boundTolerance
	t.confidence = ScoreWithCompetitor(req, t.demand.Provided, t.minHit, t.ceilingHit)
	return nil
}

// smooth blends a candidate toward the current price when one is known.
func smooth(candidate, current, weight float64) float64 {
	if current <= 0 {
		return candidate
	}
	return candidate*(1-weight) + current*weight
}

type stageValue struct {
	stage string
	value float64
}

func checkFinite(values ...stageValue) error {
	for _, sv := range values {
		if !finite(sv.value) {
			return &ComputationError{Stage: sv.stage, Value: sv.value}
		}
	}
	return nil
}

// roundWithin rounds to cents without leaving [lo, hi]. A clamped price that
// rounds below the floor moves up to the next cent. When lo and hi share a
// cent no rounded price fits both, and the floor wins: the result may then
// exceed hi by less than a cent.
func roundWithin(v, lo float64, hi *float64) float64 {
	r := roundTo(v, 2)
	if hi != nil && r > *hi {
		r = math.Floor(*hi*100) / 100
	}
	if r < lo {
		r = math.Ceil(lo*100) / 100
	}
	return r
}
