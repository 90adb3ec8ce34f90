package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a receipt",
	Long: `Delete a receipt. The local copy disappears immediately; when offline,
the remote deletion is queued and reconciled later.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}

	if !outputJSON {
		printSuccess(cmd.OutOrStdout(), "Receipt deleted")
	}
	return nil
}
