// Package commands defines all Cobra CLI commands for the helpdesk binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/audit"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/config"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "helpdesk",
		Short: "Retrieval-augmented question answering for the school support desk",
		Long: `helpdesk answers recurring student and staff questions from a curated
knowledge base of validated question/answer records.

Questions are matched against the knowledge base with embedding similarity
and the best matches are handed to a watsonx foundation model, which writes
the final answer grounded in those records.

Configuration comes from environment variables or a YAML config file
(~/.helpdesk/config.yaml). See 'helpdesk --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.helpdesk/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewVersionCmd(),
	)

	return root
}
