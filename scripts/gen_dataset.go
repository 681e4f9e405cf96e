// gen_dataset.go: standalone script that writes a synthetic pricing history
// for the trainer. Competitor prices vary per platform around a product's base
// price and the label follows the serving formula plus noise.
//
// Usage:
//
//	go run scripts/gen_dataset.go -n 500 -seed 7 -out data/history.csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type product struct {
	name      string
	basePrice float64
}

var products = []product{
	{"Apple AirPods Pro 2nd Generation", 14990},
	{"Samsung Galaxy Buds2 Pro", 9990},
	{"Xiaomi Redmi Note 13 Pro 5G", 15990},
	{"Anker PowerCore 20000mAh Power Bank", 2499},
	{"JBL Flip 6 Portable Bluetooth Speaker", 6995},
	{"Logitech G Pro X Superlight Mouse", 7495},
	{"Sony WH-1000XM5 Headphones", 19990},
	{"Nintendo Switch OLED Model", 17995},
	{"Kindle Paperwhite 11th Gen", 7490},
	{"Dyson V15 Detect Vacuum", 34990},
	{"Instant Pot Duo 7-in-1", 5990},
	{"Govee LED Strip Lights", 1990},
}

var platforms = []string{"lazada", "shopee", "tiktokshop"}

var columns = []string{
	"listing_id", "cost_price", "desired_margin", "shipping_cost", "platform_fee_pct",
	"competitor_prices", "demand_factor", "sales_velocity", "stock_level", "rating",
	"current_price", "actual_best_price",
}

// Label coefficients the trainer should roughly recover.
const (
	trueAlpha = 0.7
	trueBeta  = 0.3
	trueGamma = 0.04
)

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func genRecord(rng *rand.Rand, i int, noise float64) map[string]any {
	p := products[i%len(products)]

	prices := make([]float64, 0, len(platforms))
	sum := 0.0
	for range platforms {
		v := round2(p.basePrice * (1 + float64(rng.IntN(36)-15)/100))
		prices = append(prices, v)
		sum += v
	}
	avg := sum / float64(len(prices))

	cost := round2(p.basePrice * (0.55 + 0.1*rng.Float64()))
	margin := round2(0.1 + 0.2*rng.Float64())
	shipping := round2(20 + 80*rng.Float64())
	fee := round2(0.03 + 0.05*rng.Float64())
	demand := round2(rng.Float64())
	floor := (cost + shipping) * (1 + margin) / (1 - fee)

	label := trueAlpha*avg + trueBeta*floor + trueGamma*avg*demand
	label *= 1 + noise*rng.NormFloat64()

	return map[string]any{
		"listing_id":        fmt.Sprintf("%s-%05d", platforms[i%len(platforms)], i),
		"cost_price":        cost,
		"desired_margin":    margin,
		"shipping_cost":     shipping,
		"platform_fee_pct":  fee,
		"competitor_prices": prices,
		"demand_factor":     demand,
		"sales_velocity":    rng.IntN(500),
		"stock_level":       rng.IntN(300),
		"rating":            math.Round((4+rng.Float64())*10) / 10,
		"current_price":     round2(avg * (0.9 + 0.2*rng.Float64())),
		"actual_best_price": round2(math.Max(label, 1)),
	}
}

func writeCSV(path string, records []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, rec := range records {
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = cell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case []float64:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func writeJSON(path string, records []map[string]any) error {
	data, err := json.MarshalIndent(map[string]any{"rows": records}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func main() {
	n := flag.Int("n", 500, "number of records")
	seed := flag.Uint64("seed", 42, "random seed")
	noise := flag.Float64("noise", 0.02, "relative label noise (stddev)")
	out := flag.String("out", "history.csv", "output file (.csv or .json)")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	records := make([]map[string]any, 0, *n)
	for i := 0; i < *n; i++ {
		records = append(records, genRecord(rng, i, *noise))
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create output dir: %v", err)
		}
	}

	var err error
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".json":
		err = writeJSON(*out, records)
	case ".csv":
		err = writeCSV(*out, records)
	default:
		log.Fatalf("unsupported output extension %q (use .csv or .json)", filepath.Ext(*out))
	}
	if err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("wrote %d records to %s", len(records), *out)
}
