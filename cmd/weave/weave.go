// Package weavecmder
package weavecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/weave/cmd/weave/config"
	ingestcmder "github.com/papercomputeco/weave/cmd/weave/ingest"
	servecmder "github.com/papercomputeco/weave/cmd/weave/serve"
	sessioncmder "github.com/papercomputeco/weave/cmd/weave/session"
	versioncmder "github.com/papercomputeco/weave/cmd/weave/version"
)

const weaveLongDesc string = `Weave is a node-graph workspace for composing LLM conversations.

Chat nodes hold conversations, memory nodes hold embedded documents, and
edges wire context and retrieval between them.

Common commands:
  weave serve              Run the canvas API server
  weave config list        Show the persistent configuration
  weave session list       List saved sessions
  weave ingest <file>      Upload a document into a memory node`

const weaveShortDesc string = "Weave - a canvas for composable conversations"

func NewWeaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weave",
		Short: weaveShortDesc,
		Long:  weaveLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.weave or ~/.weave)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
