package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import receipts from a JSON export",
	Long: `Import receipts from a JSON export into the local database.

Imported receipts land in the local cache only; nothing is queued for
sync. Use --strategy to control what happens when a receipt already
exists locally, and --dry-run to preview without writing.

Example:
  pocket import backup.json
  pocket import backup.json --strategy skip --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importStrategy string
	importDryRun   bool
)

func init() {
	importCmd.Flags().StringVar(&importStrategy, "strategy", "replace", "Conflict strategy: replace, skip")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview the import without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	strategy := pocket.MergeStrategy(importStrategy)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.ImportJSON(cmd.Context(), f, strategy, importDryRun)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	if importDryRun {
		printInfo(out, "Dry run: no changes written")
	}
	fmt.Fprintf(out, "%s %d\n", label("Total:"), result.Total)
	fmt.Fprintf(out, "%s %d\n", label("Created:"), result.Created)
	fmt.Fprintf(out, "%s %d\n", label("Replaced:"), result.Replaced)
	fmt.Fprintf(out, "%s %d\n", label("Skipped:"), result.Skipped)
	for _, e := range result.Errors {
		printWarning(out, "%s", e)
	}
	if len(result.Errors) == 0 && !importDryRun {
		printSuccess(out, "Import complete")
	}
	return nil
}
