package sessioncmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/cliui"
	"github.com/papercomputeco/weave/pkg/utils"
)

const listLongDesc string = `List saved sessions.

Shows the id, name, and last-updated time of every session in the
configured store, most recently updated first.`

const listShortDesc string = "List saved sessions"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}

	return cmd
}

func runList(configDir string) error {
	driver, err := openStore(configDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer driver.Close()

	records, err := driver.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No saved sessions."))
		return nil
	}

	fmt.Println()
	for _, r := range records {
		fmt.Printf("  %s  %s  %s\n",
			cliui.KeyStyle.Render(r.ID),
			cliui.ValueStyle.Render(utils.Truncate(r.Name, 48)),
			cliui.DimStyle.Render(r.UpdatedAt.Format("2006-01-02 15:04:05")),
		)
	}
	fmt.Printf("\n  %d session(s)\n\n", len(records))

	return nil
}
