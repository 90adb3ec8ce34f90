package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/receiptwise/pocket"
)

// testEnv sets up a test environment with a temporary database.
// Returns a cleanup function.
func testEnv(t *testing.T) func() {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "receipts.db")

	// Save original env
	origDBPath := os.Getenv("POCKET_DB_PATH")
	origProfile := os.Getenv("POCKET_PROFILE")
	origAPIURL := os.Getenv("POCKET_API_URL")
	origAPIToken := os.Getenv("POCKET_API_TOKEN")
	origOwnerID := os.Getenv("POCKET_OWNER_ID")

	// Set test env
	os.Setenv("POCKET_DB_PATH", dbPath)
	os.Setenv("POCKET_PROFILE", "")
	os.Setenv("POCKET_API_URL", "")
	os.Setenv("POCKET_API_TOKEN", "")
	os.Setenv("POCKET_OWNER_ID", "owner-test")

	resetFlags := func() {
		cfgDBPath = ""
		cfgProfile = ""
		cfgAPIURL = ""
		cfgAPIToken = ""
		outputJSON = false
		addTotal = 0
		addTax = 0
		addCurrency = "USD"
		addVendor = ""
		addCategory = ""
		addDescription = ""
		addNotes = ""
		addTags = nil
		addDate = ""
		addStatus = ""
		failedRetry = 0
	}
	resetFlags()

	return func() {
		os.Setenv("POCKET_DB_PATH", origDBPath)
		os.Setenv("POCKET_PROFILE", origProfile)
		os.Setenv("POCKET_API_URL", origAPIURL)
		os.Setenv("POCKET_API_TOKEN", origAPIToken)
		os.Setenv("POCKET_OWNER_ID", origOwnerID)
		resetFlags()
	}
}

func TestCLI_Help_ListsAllCommands(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	output := stdout.String()
	for _, cmd := range []string{"add", "list", "show", "edit", "rm", "sync", "status", "failed", "export", "import", "version"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("help should list %q command, got:\n%s", cmd, output)
		}
	}
}

func TestCLI_Add_MissingTotal(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"add", "--vendor", "Blue Bottle"})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing total flag")
	}
	if !strings.Contains(err.Error(), "total") {
		t.Errorf("error should mention total, got: %s", err)
	}
}

func TestCLI_Add_Offline(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"add", "--total", "42.50", "--vendor", "Blue Bottle", "-c", "meals"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Receipt added locally; will sync when online") {
		t.Errorf("offline add should report a deferred sync, got:\n%s", output)
	}
	if !strings.Contains(output, "Blue Bottle") {
		t.Errorf("output should contain the vendor, got:\n%s", output)
	}
	if !strings.Contains(output, "42.50 USD") {
		t.Errorf("output should contain the formatted total, got:\n%s", output)
	}
	if !strings.Contains(output, "Synced:") {
		t.Errorf("output should contain the sync state, got:\n%s", output)
	}
}

func TestCLI_Add_JSONOutput(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"add", "--total", "12.50", "--vendor", "Corner Deli", "--json"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("add --json failed: %v", err)
	}

	var receipt pocket.Receipt
	if err := json.Unmarshal(stdout.Bytes(), &receipt); err != nil {
		t.Fatalf("output should be valid JSON: %v\noutput:\n%s", err, stdout.String())
	}
	if receipt.ID == "" {
		t.Error("JSON output should carry the assigned receipt ID")
	}
	if receipt.TotalCents != 1250 {
		t.Errorf("TotalCents = %d, want 1250", receipt.TotalCents)
	}
	if receipt.IsSynced {
		t.Error("receipt added without a remote should not be synced")
	}
	if !strings.Contains(stdout.String(), `"total_cents"`) {
		t.Errorf("JSON fields should be snake_case, got:\n%s", stdout.String())
	}
}

func TestCLI_Add_InvalidDate(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"add", "--total", "5", "--date", "12/08/2026"})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
	if !strings.Contains(err.Error(), "date") {
		t.Errorf("error should mention the date, got: %s", err)
	}
}

func TestCLI_List_ShowsUnsyncedReceipts(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"add", "--total", "9.99", "--vendor", "Kiosk"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"list"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Found 1 receipts:") {
		t.Errorf("list should report one receipt, got:\n%s", output)
	}
	if !strings.Contains(output, "Kiosk") {
		t.Errorf("list should contain the vendor, got:\n%s", output)
	}
	if !strings.Contains(output, "* not yet synced") {
		t.Errorf("list should flag unsynced receipts, got:\n%s", output)
	}
}

func TestCLI_List_Empty(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"list"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "No matching receipts.") {
		t.Errorf("empty list output wrong, got:\n%s", stdout.String())
	}
}

func TestCLI_Status_ReportsQueueDepths(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"add", "--total", "3.25"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"status"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("status failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Pending:") || !strings.Contains(output, "1") {
		t.Errorf("status should report one pending item, got:\n%s", output)
	}
	if !strings.Contains(output, "Failed:") {
		t.Errorf("status should report the failed count, got:\n%s", output)
	}
	if !strings.Contains(output, "never") {
		t.Errorf("status should report that no sync has run, got:\n%s", output)
	}
}

func TestCLI_Failed_Empty(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"failed"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("failed command errored: %v", err)
	}
	if !strings.Contains(stdout.String(), "No failed items.") {
		t.Errorf("empty failed queue output wrong, got:\n%s", stdout.String())
	}
}

func TestCLI_Failed_RetryRequeues(t *testing.T) {
	cleanup := testEnv(t)
	defer cleanup()

	// Seed a dead-lettered item directly in the store the CLI will open.
	dbPath := os.Getenv("POCKET_DB_PATH")
	store, err := pocket.NewStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	itemID, err := store.Enqueue(pocket.NewDeleteMutation("r-1", 1))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.DeadLetterNow(itemID, "remote rejected the payload"); err != nil {
		t.Fatalf("dead-letter: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	var listOut bytes.Buffer
	rootCmd.SetOut(&listOut)
	rootCmd.SetArgs([]string{"failed"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("failed command errored: %v", err)
	}
	if !strings.Contains(listOut.String(), "remote rejected the payload") {
		t.Errorf("failed listing should show the failure reason, got:\n%s", listOut.String())
	}
	if !strings.Contains(listOut.String(), "--retry") {
		t.Errorf("failed listing should hint at --retry, got:\n%s", listOut.String())
	}

	var retryOut bytes.Buffer
	rootCmd.SetOut(&retryOut)
	rootCmd.SetArgs([]string{"failed", "--retry", "1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("failed --retry errored: %v", err)
	}
	if !strings.Contains(retryOut.String(), "returned to the pending queue") {
		t.Errorf("retry should confirm the requeue, got:\n%s", retryOut.String())
	}

	store, err = pocket.NewStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	dead, err := store.DeadLetters()
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 0 {
		t.Errorf("dead letter queue should be empty after retry, got %d items", len(dead))
	}
	pending, err := store.PeekBatch(10)
	if err != nil {
		t.Fatalf("peek batch: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending queue should hold the requeued item, got %d items", len(pending))
	}
}

func TestCLI_APIToken_NeverInOutput(t *testing.T) {
	secretToken := "tok-super-secret-12345"
	cfgAPIToken = secretToken

	input := "request failed: auth error with " + secretToken + " token"
	scrubbed := scrubSensitiveData(input)

	if strings.Contains(scrubbed, secretToken) {
		t.Error("scrubSensitiveData should remove the API token from messages")
	}
	if !strings.Contains(scrubbed, "[REDACTED]") {
		t.Error("scrubSensitiveData should replace the API token with [REDACTED]")
	}

	cfgAPIToken = ""
}
