// Package cmd implements the pampa CLI. Commands stay thin: they parse
// flags, call pkg/pampa, and print JSON results.
package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pampa-ai/pampa/internal/logging"
	"github.com/pampa-ai/pampa/pkg/pampa"
)

var (
	flagRepo     string
	flagProvider string
	flagDebug    bool

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "pampa",
	Short: "Per-project code memory: index code chunks, search them semantically",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env at the repo root supplies provider keys and the
		// encryption key without shell ceremony.
		_ = godotenv.Load(filepath.Join(flagRepo, ".env"))

		if flagDebug {
			logger, cleanup, err := logging.Setup(logging.DebugConfig())
			if err != nil {
				return err
			}
			logCleanup = cleanup
			slog.SetDefault(logger)
		} else {
			slog.SetDefault(logging.SetupStderr("warn"))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRepo, "repo", "r", ".", "repository root")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "embedding provider (openai, transformers, ollama, cohere, auto)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging to ~/.pampa/logs")
}

func newClient() (*pampa.Client, error) {
	repo, err := filepath.Abs(flagRepo)
	if err != nil {
		return nil, err
	}
	return pampa.New(repo, flagProvider)
}
