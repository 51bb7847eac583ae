package sessioncmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/cliui"
)

const deleteLongDesc string = `Delete a saved session.

Removes the session with the given id from the configured store. The
canvas of a running server is not touched.`

const deleteShortDesc string = "Delete a saved session"

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runDelete(args[0], configDir)
		},
	}

	return cmd
}

func runDelete(id, configDir string) error {
	driver, err := openStore(configDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer driver.Close()

	if err := driver.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	fmt.Printf("\n  %s Deleted session %s\n\n", cliui.SuccessMark, cliui.KeyStyle.Render(id))
	return nil
}
