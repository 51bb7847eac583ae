// Package sessioncmder provides commands for managing saved canvas sessions
// directly against the session store, without a running server.
package sessioncmder

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/config"
	"github.com/papercomputeco/weave/pkg/dotdir"
	"github.com/papercomputeco/weave/pkg/kvstore"
	kvinmemory "github.com/papercomputeco/weave/pkg/kvstore/inmemory"
	kvsqlite "github.com/papercomputeco/weave/pkg/kvstore/sqlite"
)

const sessionLongDesc string = `Manage saved canvas sessions.

Sessions are stored in the configured session store (storage.provider).
These commands open the store directly, so run them against the same
configuration as the server.

  weave session list              List saved sessions
  weave session delete <id>       Delete a saved session
  weave session export <id>       Write a session document to stdout or a file
  weave session import <file>     Store an exported document under a fresh id`

const sessionShortDesc string = "Manage saved canvas sessions"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())

	return cmd
}

// openStore opens the session store named by the resolved configuration.
// The in-memory driver is accepted for symmetry but holds no sessions
// across processes, so these commands warn-by-failing naturally (empty
// lists, not-found errors) rather than special-casing it.
func openStore(configDir string) (kvstore.Driver, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	switch provider := v.GetString("storage.provider"); provider {
	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			ddm := dotdir.NewManager()
			dir, err := ddm.Target(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving weave dir: %w", err)
			}
			path = filepath.Join(dir, "sessions.db")
		}
		return kvsqlite.NewDriver(path)
	case "memory":
		return kvinmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}
