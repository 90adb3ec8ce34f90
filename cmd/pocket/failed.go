package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Inspect the failed queue",
	Long: `List queue items that exhausted their retries, or return one to
the pending queue.

Example:
  pocket failed
  pocket failed --retry 12`,
	RunE: runFailed,
}

var failedRetry int64

func init() {
	failedCmd.Flags().Int64Var(&failedRetry, "retry", 0, "Requeue the failed item with this ID")
}

func runFailed(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if cmd.Flags().Changed("retry") {
		if err := client.Requeue(failedRetry); err != nil {
			return fmt.Errorf("requeue item %d: %w", failedRetry, err)
		}
		if !outputJSON {
			printSuccess(cmd.OutOrStdout(), "Item %d returned to the pending queue", failedRetry)
		}
		return nil
	}

	items, err := client.DeadLetters()
	if err != nil {
		return fmt.Errorf("list failed items: %w", err)
	}

	return outputDeadLetters(cmd, items)
}
