package pricing

import "math"

const (
	FloorProvided = "provided"
	FloorComputed = "computed"
	FloorMax      = "max(provided,computed)"
)

// MinPriceFloor is the resolved minimum acceptable price.
type MinPriceFloor struct {
	Value    float64  `json:"value"`
	Source   string   `json:"source"`
	Winner   string   `json:"winner"`
	Provided *float64 `json:"provided,omitempty"`
	Computed *float64 `json:"computed,omitempty"`
}

// FloorInput carries the already-normalized inputs of the floor formula.
type FloorInput struct {
	CostPrice      *float64
	DesiredMargin  float64
	ShippingCost   float64
	PlatformFeePct float64
	MinPriceInput  *float64
}

// ComputedFloor applies the cost-plus formula. It is undefined unless
// cost_price is positive.
func ComputedFloor(in FloorInput) (float64, bool) {
	if in.CostPrice == nil || *in.CostPrice <= 0 {
		return 0, false
	}
	base := math.Max(0, *in.CostPrice) + in.ShippingCost
	return base / math.Max(0.01, 1-in.PlatformFeePct) * (1 + in.DesiredMargin), true
}

// ComputeMinPrice resolves the floor from an explicit minimum and the
// cost-plus formula, failing when neither yields a positive value.
func ComputeMinPrice(in FloorInput) (MinPriceFloor, error) {
	computed, hasComputed := ComputedFloor(in)
	if hasComputed && !finite(computed) {
		return MinPriceFloor{}, &ComputationError{Stage: "computed_min_price", Value: computed}
	}

	if in.MinPriceInput == nil {
		if !hasComputed {
			return MinPriceFloor{}, newFieldError("min_price", "min_price or a cost_price > 0 is required")
		}
		return MinPriceFloor{Value: computed, Source: FloorComputed, Winner: FloorComputed, Computed: &computed}, nil
	}

	provided := *in.MinPriceInput
	if provided <= 0 {
		return MinPriceFloor{}, newFieldError("min_price", "must be > 0")
	}
	if !hasComputed {
		return MinPriceFloor{Value: provided, Source: FloorProvided, Winner: FloorProvided, Provided: &provided}, nil
	}

	f := MinPriceFloor{Source: FloorMax, Provided: &provided, Computed: &computed}
	if computed > provided {
		f.Value, f.Winner = computed, FloorComputed
	} else {
		f.Value, f.Winner = provided, FloorProvided
	}
	return f, nil
}
