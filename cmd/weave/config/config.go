// Package configcmder provides the config command for managing persistent
// weave configuration stored in the .weave/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent weave configuration.

Configuration is stored as config.toml in the .weave/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path,
  api.listen,
  llm.provider, llm.target, llm.model, llm.api_key,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  index.provider, index.dir,
  session.debounce_ms, session.periodic_save_s,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  weave config set <key> <value>    Set a configuration value
  weave config get <key>            Get a configuration value
  weave config list                 List all configuration values

Examples:
  weave config set llm.model llama3.2
  weave config set embedding.model nomic-embed-text
  weave config get api.listen
  weave config list`

const configShortDesc string = "Manage persistent weave configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
