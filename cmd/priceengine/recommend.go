package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

func newRecommendCmd(configPath *string) *cobra.Command {
	var weightsPath string
	var explain bool
	cmd := &cobra.Command{
		Use:   "recommend [file|-]",
		Short: "Evaluate one request document and print the recommendation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()
			if weightsPath == "" {
				weightsPath = cfg.Weights.Path
			}
			w, err := pricing.LoadWeights(weightsPath)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return recommendOne(in, cmd.OutOrStdout(), w, explain)
		},
	}
	cmd.Flags().StringVar(&weightsPath, "weights", "", "weights file (default: weights.path from config)")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the evaluation trace")
	return cmd
}

func recommendOne(in io.Reader, out io.Writer, w pricing.WeightConfig, explain bool) error {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("request must be a JSON object: %w", err)
	}
	if v, ok := body["explain"].(bool); ok {
		explain = explain || v
	}
	delete(body, "explain")

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	res, err := pricing.EvaluateBody(body, w, explain)
	var verr *pricing.ValidationError
	if errors.As(err, &verr) {
		_ = enc.Encode(verr)
		return err
	}
	if err != nil {
		return err
	}
	return enc.Encode(res)
}
