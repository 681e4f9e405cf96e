package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "priceengine",
		Short:        "Price recommendation engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newTrainCmd(&configPath))
	root.AddCommand(newRecommendCmd(&configPath))
	return root
}

// setup loads the config and installs the process logger. The returned func
// flushes and closes the log output.
func setup(configPath string) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, func() { _ = closer.Close() }, nil
}
