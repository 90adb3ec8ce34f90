package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a receipt",
	Long: `Edit the user-editable fields of a receipt. Only the flags you pass are
changed. Edits made offline are applied locally and reconciled with the
service later; if the server copy moved in the meantime your edits win
for the fields you touched.

Example:
  pocket edit 01J3ZK... --category travel --note "client visit"
  pocket edit 01J3ZK... --status REVIEWED`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var (
	editStatus      string
	editCategory    string
	editDescription string
	editNotes       string
	editTags        []string
)

func init() {
	editCmd.Flags().StringVar(&editStatus, "status", "", "New status")
	editCmd.Flags().StringVarP(&editCategory, "category", "c", "", "New category")
	editCmd.Flags().StringVar(&editDescription, "description", "", "New description")
	editCmd.Flags().StringVar(&editNotes, "note", "", "New notes")
	editCmd.Flags().StringArrayVar(&editTags, "tag", nil, "Replace tags (repeatable)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var params pocket.UpdateParams
	if cmd.Flags().Changed("status") {
		s := pocket.ReceiptStatus(editStatus)
		params.Status = &s
	}
	if cmd.Flags().Changed("category") {
		params.Category = &editCategory
	}
	if cmd.Flags().Changed("description") {
		params.Description = &editDescription
	}
	if cmd.Flags().Changed("note") {
		params.Notes = &editNotes
	}
	if cmd.Flags().Changed("tag") {
		params.Tags = &editTags
	}
	if params.IsZero() {
		return fmt.Errorf("nothing to edit: pass at least one of --status, --category, --description, --note, --tag")
	}

	receipt, err := client.Update(cmd.Context(), args[0], params)
	if err != nil {
		return fmt.Errorf("edit receipt: %w", err)
	}

	if !outputJSON {
		if receipt.IsSynced {
			printSuccess(cmd.OutOrStdout(), "Receipt updated and synced")
		} else {
			printInfo(cmd.OutOrStdout(), "Receipt updated locally; will sync when online")
		}
	}
	return outputReceipt(cmd, receipt)
}
