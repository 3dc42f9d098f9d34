package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/config"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

var (
	cfg      *config.Config
	registry = vocab.Default()
)

var rootCmd = &cobra.Command{
	Use:   "pyxis",
	Short: "Oil and gas source data harmonization pipeline",
	Long:  "Ingests heterogeneous facility datasets, maps them onto the canonical OPGEE vocabulary, assigns H3 spatial index cells, and resolves records across sources into facility clusters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config-file")
		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}
		if format, _ := cmd.Flags().GetString("log-format"); format != "" {
			cfg.Log.Format = format
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config-file", "", "path to pyxis.yaml (default: search working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (json, console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
