// Command conforme audits public-sector contract publications: it discovers
// contracts on the transparency portal, locates each one's official gazette
// publication, and reports whether publication was timely and faithful.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"conforme/config"
)

// Exit codes: 0 success, 1 runtime failure, 2 configuration error.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

var (
	flagConfig   string
	flagYear     int
	flagMax      int
	flagHeadless bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "conforme",
	Short: "Contract publication conformity auditor",
	Long: `conforme verifies whether public-sector contracts were published in the
official gazette within the statutory 20-day deadline and whether the
published details match the signed contract.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errConfig marks failures that should exit with code 2.
var errConfig = errors.New("configuration error")

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	if flagYear != 0 {
		cfg.Portal.FilterYear = flagYear
	}
	if flagMax != 0 {
		cfg.Run.MaxCompanies = flagMax
	}
	if cmdChangedHeadless() {
		cfg.Browser.Headless = flagHeadless
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	level := parseLevel(cfg.Run.LogLevel)
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func cmdChangedHeadless() bool {
	f := rootCmd.PersistentFlags().Lookup("headless")
	return f != nil && f.Changed
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML configuration file")
	rootCmd.PersistentFlags().IntVar(&flagYear, "year", 0, "filter year override")
	rootCmd.PersistentFlags().IntVar(&flagMax, "max", 0, "limit number of companies processed")
	rootCmd.PersistentFlags().BoolVar(&flagHeadless, "headless", true, "run the browser headless")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(conformityCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "conforme:", err)
		if errors.Is(err, errConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitRuntime)
	}
	os.Exit(exitOK)
}
