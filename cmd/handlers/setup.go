// Package handlers builds the CLI subcommands. Each constructor returns a
// self-contained cobra command; shared wiring lives in setup.
package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"parkintel/internal/config"
	"parkintel/internal/logger"
	"parkintel/internal/store"
)

// setup loads configuration, initializes logging, and opens the store.
// Callers own the returned store and must Close it.
func setup(cmd *cobra.Command) (*config.Config, *store.Store, error) {
	cfgFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.App.LogLevel)

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, st, nil
}
