package training

import (
	"encoding/json"
	"strings"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

// LabelKeys are the accepted label columns, in lookup order.
var LabelKeys = []string{"actual_best_price", "label", "y"}

// Row is one historical record reduced to a pricing payload and its label.
type Row struct {
	Payload map[string]any
	Label   float64
}

// ParseRecord converts a raw dataset record into a Row. It reports false when
// the record has no positive label, no competitor signal or no usable floor.
func ParseRecord(rec map[string]any) (Row, bool) {
	label, ok := readLabel(rec)
	if !ok || label <= 0 {
		return Row{}, false
	}

	payload := make(map[string]any, len(pricing.NumericFields)+2)
	for _, key := range pricing.NumericFields {
		if f, ok := pricing.ParseNumber(rec[key]); ok {
			payload[key] = f
		}
	}
	if prices := competitorPrices(rec["competitor_prices"]); len(prices) > 0 {
		payload["competitor_prices"] = prices
	}
	if id, ok := rec["listing_id"]; ok && id != nil {
		payload["listing_id"] = id
	}

	if !hasCompetitor(payload) || !hasFloor(payload) {
		return Row{}, false
	}
	return Row{Payload: payload, Label: label}, true
}

// ParseRecords applies ParseRecord to every record and keeps the usable rows.
func ParseRecords(records []map[string]any) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if row, ok := ParseRecord(rec); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// readLabel takes the first label key that holds a non-zero number.
func readLabel(rec map[string]any) (float64, bool) {
	for _, key := range LabelKeys {
		if f, ok := pricing.ParseNumber(rec[key]); ok && f != 0 {
			return f, true
		}
	}
	return 0, false
}

// competitorPrices accepts a list, a JSON list string or a comma-separated
// string.
func competitorPrices(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []float64:
		out := make([]any, len(x))
		for i, p := range x {
			out[i] = p
		}
		return out
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return list
			}
		}
		var out []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

func hasCompetitor(payload map[string]any) bool {
	if avg, ok := payload["competitor_avg"].(float64); ok && avg > 0 {
		return true
	}
	prices, ok := payload["competitor_prices"].([]any)
	return ok && len(prices) > 0
}

func hasFloor(payload map[string]any) bool {
	if _, ok := payload["min_price"]; ok {
		return true
	}
	cost, ok := payload["cost_price"].(float64)
	return ok && cost > 0
}
