package sessioncmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/cliui"
)

const exportLongDesc string = `Export a saved session.

Writes the session's self-contained JSON document to stdout, or to a
file with --output. The document can be imported later, on this machine
or another one.

Examples:
  weave session export 4f7c... > research.json
  weave session export 4f7c... --output research.json`

const exportShortDesc string = "Export a saved session as JSON"

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runExport(args[0], output, configDir)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the document to (default: stdout)")

	return cmd
}

func runExport(id, output, configDir string) error {
	driver, err := openStore(configDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer driver.Close()

	rec, err := driver.Get(context.Background(), id)
	if err != nil {
		return fmt.Errorf("exporting session: %w", err)
	}

	if output == "" {
		_, err = os.Stdout.Write(rec.Data)
		return err
	}

	if err := os.WriteFile(output, rec.Data, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	fmt.Printf("\n  %s Exported %s to %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(rec.Name),
		cliui.ValueStyle.Render(output),
	)
	return nil
}
