package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a receipt",
	Long: `Show one receipt by ID. When online, the authoritative copy is fetched
from the service; otherwise the local copy is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	receipt, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("show receipt: %w", err)
	}

	return outputReceipt(cmd, receipt)
}
