package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr, ensuring no tokens are leaked.
func outputError(w io.Writer, err error) {
	msg := scrubSensitiveData(err.Error())
	fmt.Fprintf(w, "Error: %s\n", msg)
}

// scrubSensitiveData removes potential access tokens from error messages.
// The library already avoids including tokens, but if one slips through
// it is redacted here.
func scrubSensitiveData(msg string) string {
	if cfgAPIToken != "" && strings.Contains(msg, cfgAPIToken) {
		msg = strings.ReplaceAll(msg, cfgAPIToken, "[REDACTED]")
	}
	return msg
}

// outputReceipt prints a single receipt in the configured format.
func outputReceipt(cmd *cobra.Command, r *pocket.Receipt) error {
	if outputJSON {
		return outputAsJSON(cmd, r)
	}
	return outputReceiptHuman(cmd, r)
}

func outputReceiptHuman(cmd *cobra.Command, r *pocket.Receipt) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s %s\n", label("Receipt:"), value(r.ID))
	fmt.Fprintf(out, "%s %s\n", label("Status:"), value(string(r.Status)))
	if r.VendorName != "" {
		fmt.Fprintf(out, "%s %s\n", label("Vendor:"), value(r.VendorName))
	}
	fmt.Fprintf(out, "%s %s\n", label("Total:"), value(formatAmount(r.TotalCents, r.Currency)))
	if r.TaxCents > 0 {
		fmt.Fprintf(out, "%s %s\n", label("Tax:"), value(formatAmount(r.TaxCents, r.Currency)))
	}
	if r.Category != "" {
		fmt.Fprintf(out, "%s %s\n", label("Category:"), value(r.Category))
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(out, "%s %s\n", label("Tags:"), value(strings.Join(r.Tags, ", ")))
	}
	if r.Description != "" {
		fmt.Fprintf(out, "%s %s\n", label("Description:"), value(r.Description))
	}
	if r.Notes != "" {
		fmt.Fprintf(out, "%s %s\n", label("Notes:"), value(r.Notes))
	}
	if r.ReceiptDate != nil {
		fmt.Fprintf(out, "%s %s\n", label("Date:"), value(r.ReceiptDate.Format("2006-01-02")))
	}
	fmt.Fprintf(out, "%s %s\n", label("Synced:"), value(syncedText(r)))

	return nil
}

// outputReceiptList prints search results.
func outputReceiptList(cmd *cobra.Command, receipts []pocket.Receipt) error {
	if outputJSON {
		return outputAsJSON(cmd, receipts)
	}

	out := cmd.OutOrStdout()

	if len(receipts) == 0 {
		fmt.Fprintln(out, "No matching receipts.")
		return nil
	}

	fmt.Fprintf(out, "Found %d receipts:\n\n", len(receipts))

	for i := range receipts {
		r := &receipts[i]
		date := "          "
		if r.ReceiptDate != nil {
			date = r.ReceiptDate.Format("2006-01-02")
		}
		vendor := r.VendorName
		if vendor == "" {
			vendor = "(unknown vendor)"
		}
		marker := " "
		if !r.IsSynced {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %-10s  %10s  %s\n",
			marker, shortID(r.ID), date, formatAmount(r.TotalCents, r.Currency), vendor)
	}

	if hasUnsynced(receipts) {
		fmt.Fprintln(out)
		printMuted(out, "* not yet synced")
	}
	return nil
}

// outputSyncSummary prints the result of a drain cycle.
func outputSyncSummary(cmd *cobra.Command, s *pocket.SyncSummary) error {
	if outputJSON {
		return outputAsJSON(cmd, s)
	}

	out := cmd.OutOrStdout()
	if s.Processed == 0 {
		fmt.Fprintln(out, "Nothing to sync.")
		return nil
	}

	fmt.Fprintf(out, "Sync complete (took %s)\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Synced: %d\n", s.Succeeded)
	if s.Transient > 0 {
		fmt.Fprintf(out, "  Deferred (network): %d\n", s.Transient)
	}
	if s.Failed > 0 {
		fmt.Fprintf(out, "  Failed: %d\n", s.Failed)
	}
	if s.DeadLettered > 0 {
		printWarning(out, "%d items moved to the failed queue ('pocket failed' to inspect)", s.DeadLettered)
	}
	return nil
}

// outputStatus prints the sync status.
func outputStatus(cmd *cobra.Command, st *pocket.Status) error {
	if outputJSON {
		return outputAsJSON(cmd, st)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d\n", label("Pending:"), st.PendingCount)
	fmt.Fprintf(out, "%s %d\n", label("Failed:"), st.FailedCount)
	if !st.LastSyncTime.IsZero() {
		fmt.Fprintf(out, "%s %s\n", label("Last sync:"), st.LastSyncTime.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintf(out, "%s never\n", label("Last sync:"))
	}
	if st.IsSyncing {
		printInfo(out, "Sync in progress")
	}
	return nil
}

// outputDeadLetters prints the failed queue.
func outputDeadLetters(cmd *cobra.Command, items []pocket.QueueItem) error {
	if outputJSON {
		return outputAsJSON(cmd, items)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No failed items.")
		return nil
	}

	fmt.Fprintf(out, "%d failed items:\n\n", len(items))
	for _, item := range items {
		fmt.Fprintf(out, "#%d  %s %s  (retried %d times)\n",
			item.ID, item.Action, shortID(item.EntityID), item.RetryCount)
		if item.ErrorMessage != "" {
			fmt.Fprintf(out, "    %s\n", item.ErrorMessage)
		}
	}
	fmt.Fprintln(out)
	printMuted(out, "Use 'pocket failed --retry <id>' to requeue an item.")
	return nil
}

func formatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func syncedText(r *pocket.Receipt) string {
	if r.IsSynced {
		return "yes"
	}
	if r.SyncError != "" {
		return "no (" + r.SyncError + ")"
	}
	return "no (pending)"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func hasUnsynced(receipts []pocket.Receipt) bool {
	for i := range receipts {
		if !receipts[i].IsSynced {
			return true
		}
	}
	return false
}
