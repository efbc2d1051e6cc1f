package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "geoscore",
	Short: "Score brand visibility in AI assistant answers",
	Long: "geoscore aggregates repeated judge evaluations of AI answers, detects\n" +
		"competitor mentions and rolls a scan up into a share of voice.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		switch rootFlags.logFormat {
		case "text", "json":
		default:
			return fmt.Errorf("invalid log format %q: want text or json", rootFlags.logFormat)
		}
		logging.Init(level, rootFlags.logFormat, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.Version = version
}

// loadConfig returns the defaults when path is empty.
func loadConfig(path string) (application.ScoringConfig, error) {
	if path == "" {
		return application.DefaultScoringConfig(), nil
	}
	cfg, err := application.LoadScoringConfig(path)
	if err != nil {
		return application.ScoringConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
