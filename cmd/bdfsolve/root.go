package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/bdfsolve/config"
	"github.com/notargets/bdfsolve/runner"
)

var (
	configPath string
	outputPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bdfsolve",
	Short: "Linear static and modal solver for Nastran bulk data",
	Long: `bdfsolve reads bulk data records from a YAML deck, cross-references and
prunes the model, assembles the global stiffness and mass matrices, and solves
the configured subcases (SOL 101 statics or SOL 103 normal modes).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Case control YAML (default: SOL 101, one subcase)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Development logging at debug level")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

// newRunner builds the runner shared by every subcommand; the caller syncs
// the returned logger
func newRunner() (*runner.Runner, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	return runner.NewRunner(cfg, logger), logger, nil
}

func createOutput() (*os.File, func() error, error) {
	if outputPath == "" || outputPath == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
