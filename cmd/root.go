package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "match-cli",
	Short: "Contractor matching and outreach engine",
	Long: "Ranks contractors for homeowner bid cards, answers hybrid lexical+vector search, " +
		"and escalates thin shortlists into directory prospecting and invitation delivery.",
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// loadRuntime parses configuration and installs the global logger before
// any subcommand runs.
func loadRuntime(*cobra.Command, []string) error {
	c, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
