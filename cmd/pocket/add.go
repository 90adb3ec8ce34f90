package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new receipt",
	Long: `Add a new receipt. Works offline: the receipt is stored locally and
synced to the service when the network allows.

Example:
  pocket add --total 42.50 --vendor "Blue Bottle" --category meals
  pocket add --total 1200 --currency EUR --date 2026-08-12 --tag travel --tag client-x`,
	RunE: runAdd,
}

var (
	addTotal       float64
	addTax         float64
	addCurrency    string
	addVendor      string
	addCategory    string
	addDescription string
	addNotes       string
	addTags        []string
	addDate        string
	addStatus      string
)

func init() {
	addCmd.Flags().Float64Var(&addTotal, "total", 0, "Total amount (required)")
	addCmd.Flags().Float64Var(&addTax, "tax", 0, "Tax amount")
	addCmd.Flags().StringVar(&addCurrency, "currency", "USD", "Currency code")
	addCmd.Flags().StringVar(&addVendor, "vendor", "", "Vendor name")
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Expense category")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Description")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	addCmd.Flags().StringArrayVar(&addTags, "tag", nil, "Tag (repeatable)")
	addCmd.Flags().StringVar(&addDate, "date", "", "Receipt date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addStatus, "status", "", "Initial status (default PENDING)")

	addCmd.MarkFlagRequired("total")
}

func runAdd(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	params := pocket.CreateParams{
		OwnerID:     os.Getenv("POCKET_OWNER_ID"),
		Status:      pocket.ReceiptStatus(addStatus),
		VendorName:  addVendor,
		Category:    addCategory,
		Tags:        addTags,
		Description: addDescription,
		Notes:       addNotes,
		TotalCents:  toCents(addTotal),
		TaxCents:    toCents(addTax),
		Currency:    addCurrency,
	}
	if params.OwnerID == "" {
		params.OwnerID = "local"
	}
	if addDate != "" {
		t, err := time.Parse("2006-01-02", addDate)
		if err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
		params.ReceiptDate = &t
	}

	receipt, err := client.Create(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("add receipt: %w", err)
	}

	if !outputJSON {
		if receipt.IsSynced {
			printSuccess(cmd.OutOrStdout(), "Receipt added and synced")
		} else {
			printInfo(cmd.OutOrStdout(), "Receipt added locally; will sync when online")
		}
	}
	return outputReceipt(cmd, receipt)
}

// toCents converts a flag amount to integer cents, rounding half away from zero.
func toCents(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}
