// Package commands defines all Cobra CLI commands for the luxrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/luxweb/luxrag-go/internal/audit"
	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "luxrag",
		Short: "LuxRAG — grounded answers from your silicon photonics paper library",
		Long: `LuxRAG is a local-first retrieval-augmented assistant for silicon photonics
and co-packaged optics research.

It indexes a directory of papers (PDF, HTML, Markdown, plain text) into a
vector store and answers natural language questions grounded on the most
relevant passages, with citations back to the source documents.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.luxrag/config.yaml).
See 'luxrag --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.luxrag/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return root
}
