package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending sync queue",
	Long: `Push queued offline changes to the receipt service.

Example:
  pocket sync`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.APIURL == "" {
		return fmt.Errorf("POCKET_API_URL not configured")
	}

	client, err := pocket.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	summary, err := client.SyncNow(ctx)
	if err != nil {
		if errors.Is(err, pocket.ErrOffline) {
			return fmt.Errorf("receipt service is not reachable")
		}
		return fmt.Errorf("sync: %w", err)
	}

	return outputSyncSummary(cmd, summary)
}
