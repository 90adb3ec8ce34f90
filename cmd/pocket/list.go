package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List receipts",
	Long: `List receipts from the local store. When online, the local cache is
refreshed from the service first.

Example:
  pocket list
  pocket list --text coffee --category meals
  pocket list --from 2026-08-01 --to 2026-08-31 --min 10 --max 200`,
	RunE: runList,
}

var (
	listText     string
	listCategory string
	listVendor   string
	listTag      string
	listStatus   string
	listFrom     string
	listTo       string
	listMin      float64
	listMax      float64
	listLimit    int
)

func init() {
	listCmd.Flags().StringVar(&listText, "text", "", "Substring match over vendor, description and OCR text")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Filter by category")
	listCmd.Flags().StringVar(&listVendor, "vendor", "", "Filter by vendor name")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listFrom, "from", "", "Receipt date lower bound (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Receipt date upper bound (YYYY-MM-DD)")
	listCmd.Flags().Float64Var(&listMin, "min", 0, "Minimum total amount")
	listCmd.Flags().Float64Var(&listMax, "max", 0, "Maximum total amount")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum results")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	params := pocket.SearchParams{
		Text:     listText,
		Category: listCategory,
		Vendor:   listVendor,
		Tag:      listTag,
		Status:   pocket.ReceiptStatus(listStatus),
		Limit:    listLimit,
	}
	if listFrom != "" {
		t, err := time.Parse("2006-01-02", listFrom)
		if err != nil {
			return fmt.Errorf("parse from date: %w", err)
		}
		params.From = &t
	}
	if listTo != "" {
		t, err := time.Parse("2006-01-02", listTo)
		if err != nil {
			return fmt.Errorf("parse to date: %w", err)
		}
		params.To = &t
	}
	if cmd.Flags().Changed("min") {
		v := toCents(listMin)
		params.MinCents = &v
	}
	if cmd.Flags().Changed("max") {
		v := toCents(listMax)
		params.MaxCents = &v
	}

	receipts, err := client.Search(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}

	return outputReceiptList(cmd, receipts)
}
