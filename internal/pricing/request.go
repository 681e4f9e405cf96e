package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Request is a validated pricing request. Optional inputs are nil when absent;
// fee, margin, shipping and current price default to zero.
type Request struct {
	ListingID         string    `json:"listing_id,omitempty"`
	CostPrice         *float64  `json:"cost_price,omitempty"`
	DesiredMargin     float64   `json:"desired_margin"`
	CurrentPrice      float64   `json:"current_price"`
	ShippingCost      float64   `json:"shipping_cost"`
	PlatformFeePct    float64   `json:"platform_fee_pct"`
	CompetitorAvg     *float64  `json:"competitor_avg,omitempty"`
	CompetitorPrices  []float64 `json:"competitor_prices,omitempty"`
	DemandFactor      *float64  `json:"demand_factor,omitempty"`
	SalesVelocity     *float64  `json:"sales_velocity,omitempty"`
	StockLevel        *float64  `json:"stock_level,omitempty"`
	Rating            *float64  `json:"rating,omitempty"`
	PromoFactor       *float64  `json:"promo_factor,omitempty"`
	SeasonalityFactor *float64  `json:"seasonality_factor,omitempty"`
	MarketSampleSize  *float64  `json:"market_sample_size,omitempty"`
	MinPrice          *float64  `json:"min_price,omitempty"`

	Floor      MinPriceFloor     `json:"-"`
	Competitor *CompetitorSignal `json:"-"`
}

// NumericFields lists every numeric key the validator reads.
var NumericFields = []string{
	"cost_price", "desired_margin", "current_price", "shipping_cost",
	"platform_fee_pct", "competitor_avg", "demand_factor", "sales_velocity",
	"stock_level", "rating", "promo_factor", "seasonality_factor",
	"market_sample_size", "min_price",
}

var nonNegativeFields = []string{
	"cost_price", "current_price", "shipping_cost", "platform_fee_pct", "desired_margin",
}

// Validate converts an untyped request body into a Request. All field-level
// problems are reported together in one *ValidationError.
func Validate(body map[string]any) (*Request, error) {
	fields := make(map[string]string)
	nums := make(map[string]float64)

	for _, key := range NumericFields {
		v, ok, reason := toFloat(body[key])
		if reason != "" {
			fields[key] = reason
			continue
		}
		if ok {
			nums[key] = v
		}
	}

	for _, key := range nonNegativeFields {
		if v, ok := nums[key]; ok && v < 0 {
			fields[key] = "must be >= 0"
		}
	}

	prices, reason := parsePriceList(body["competitor_prices"])
	if reason != "" {
		fields["competitor_prices"] = reason
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Message: "invalid input", Fields: fields}
	}

	req := &Request{
		CostPrice:         ptr(nums, "cost_price"),
		DesiredMargin:     normalizeFraction(nums["desired_margin"], 1),
		CurrentPrice:      nums["current_price"],
		ShippingCost:      nums["shipping_cost"],
		PlatformFeePct:    normalizeFraction(nums["platform_fee_pct"], 0.3),
		CompetitorAvg:     ptr(nums, "competitor_avg"),
		CompetitorPrices:  prices,
		DemandFactor:      ptr(nums, "demand_factor"),
		SalesVelocity:     ptr(nums, "sales_velocity"),
		StockLevel:        ptr(nums, "stock_level"),
		Rating:            ptr(nums, "rating"),
		PromoFactor:       ptr(nums, "promo_factor"),
		SeasonalityFactor: ptr(nums, "seasonality_factor"),
		MarketSampleSize:  ptr(nums, "market_sample_size"),
		MinPrice:          ptr(nums, "min_price"),
	}
	if id, ok := body["listing_id"]; ok && id != nil {
		req.ListingID = strings.TrimSpace(fmt.Sprint(id))
	}

	floor, err := ComputeMinPrice(FloorInput{
		CostPrice:      req.CostPrice,
		DesiredMargin:  req.DesiredMargin,
		ShippingCost:   req.ShippingCost,
		PlatformFeePct: req.PlatformFeePct,
		MinPriceInput:  req.MinPrice,
	})
	if err != nil {
		return nil, err
	}
	req.Floor = floor

	signal, err := resolveCompetitor(req)
	if err != nil {
		return nil, err
	}
	req.Competitor = signal

	return req, nil
}

func resolveCompetitor(req *Request) (*CompetitorSignal, error) {
	if req.CompetitorAvg != nil && *req.CompetitorAvg > 0 {
		s := &CompetitorSignal{Avg: *req.CompetitorAvg, Method: MethodAvg}
		if req.MarketSampleSize != nil && *req.MarketSampleSize > 0 {
			s.SampleSize = sampleSize(*req.MarketSampleSize)
		}
		return s, nil
	}
	if len(req.CompetitorPrices) == 0 {
		return nil, nil
	}
	s, err := Aggregate(req.CompetitorPrices)
	if err != nil {
		return nil, err
	}
	if req.MarketSampleSize != nil && *req.MarketSampleSize > 0 {
		s.SampleSize = sampleSize(*req.MarketSampleSize)
	}
	return &s, nil
}

// maxSampleSize bounds market_sample_size before the int conversion.
const maxSampleSize = 1e9

func sampleSize(v float64) int {
	return int(math.Min(v, maxSampleSize))
}

// normalizeFraction accepts a fraction or a percentage above 1.
func normalizeFraction(v, max float64) float64 {
	if v > 1 {
		v /= 100
	}
	return clamp(v, 0, max)
}

func ptr(nums map[string]float64, key string) *float64 {
	v, ok := nums[key]
	if !ok {
		return nil
	}
	return &v
}

// ParseNumber reads a duck-typed numeric value the way Validate does. It
// reports false for absent, malformed and non-finite values.
func ParseNumber(v any) (float64, bool) {
	f, ok, reason := toFloat(v)
	return f, ok && reason == ""
}

// toFloat reads a duck-typed numeric value. ok is false when the value is
// absent; reason is non-empty when it is present but unusable.
func toFloat(v any) (f float64, ok bool, reason string) {
	switch x := v.(type) {
	case nil:
		return 0, false, ""
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		return parseNumber(string(x))
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, false, ""
		}
		return parseNumber(x)
	default:
		return 0, false, "must be a number"
	}
	if !finite(f) {
		return 0, false, "must be finite"
	}
	return f, true, ""
}

func parseNumber(s string) (float64, bool, string) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return 0, false, "must be a number"
		}
	}
	if !finite(f) {
		return 0, false, "must be finite"
	}
	return f, true, ""
}

// parsePriceList returns the positive prices of a competitor price list.
func parsePriceList(v any) ([]float64, string) {
	var items []any
	switch x := v.(type) {
	case nil:
		return nil, ""
	case []any:
		items = x
	case []float64:
		items = make([]any, len(x))
		for i, p := range x {
			items[i] = p
		}
	case []string:
		items = make([]any, len(x))
		for i, p := range x {
			items[i] = p
		}
	default:
		return nil, "must be a list of numbers"
	}
	if len(items) == 0 {
		return nil, ""
	}

	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, ok, reason := toFloat(item)
		if reason != "" || !ok {
			return nil, fmt.Sprintf("item %d must be a number", i)
		}
		if f > 0 {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, "must contain at least one positive price"
	}
	return out, ""
}
