package sessioncmder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/weave/pkg/cliui"
	"github.com/papercomputeco/weave/pkg/kvstore"
	"github.com/papercomputeco/weave/pkg/session"
)

const importLongDesc string = `Import an exported session document.

Stores the document under a fresh id so an import can never clobber an
existing session. The imported session is not loaded onto any canvas;
load it from the server afterwards.

Examples:
  weave session import research.json`

const importShortDesc string = "Import an exported session document"

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: importShortDesc,
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runImport(args[0], configDir)
		},
	}

	return cmd
}

func runImport(path, configDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}

	doc, err := session.DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("importing session: %w", err)
	}

	now := time.Now().UTC()
	doc.ID = uuid.NewString()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Name == "" {
		doc.Name = "Imported session"
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}

	driver, err := openStore(configDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer driver.Close()

	rec := kvstore.Record{
		ID:        doc.ID,
		Name:      doc.Name,
		Data:      encoded,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if err := driver.Put(context.Background(), rec); err != nil {
		return fmt.Errorf("storing import: %w", err)
	}

	fmt.Printf("\n  %s Imported %s as %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(doc.Name),
		cliui.KeyStyle.Render(doc.ID),
	)
	return nil
}
