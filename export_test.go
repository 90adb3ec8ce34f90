package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestExportJSON_StreamsAllReceipts(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"rcpt-1", "rcpt-2", "rcpt-3"} {
		if err := s.SaveReceipt(testReceipt(id)); err != nil {
			t.Fatalf("SaveReceipt: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := s.ExportJSON(context.Background(), &buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var export ExportFormat
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if export.Version != ExportVersion {
		t.Errorf("Version = %q, want %q", export.Version, ExportVersion)
	}
	if len(export.Receipts) != 3 {
		t.Fatalf("exported %d receipts, want 3", len(export.Receipts))
	}
	if export.Receipts[0].VendorName != "Blue Bottle" {
		t.Errorf("VendorName = %q, want %q", export.Receipts[0].VendorName, "Blue Bottle")
	}
}

func TestExportJSON_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	var buf bytes.Buffer
	if err := s.ExportJSON(context.Background(), &buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var export ExportFormat
	if err := json.Unmarshal(buf.Bytes(), &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(export.Receipts) != 0 {
		t.Errorf("exported %d receipts, want 0", len(export.Receipts))
	}
}

func TestExportSQLite_ProducesOpenableCopy(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveReceipt(testReceipt("rcpt-1")); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	destPath := filepath.Join(t.TempDir(), "backup.db")
	if err := s.ExportSQLite(context.Background(), destPath); err != nil {
		t.Fatalf("ExportSQLite: %v", err)
	}

	fi, err := os.Stat(destPath)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatal("copy is empty")
	}

	copied, err := NewStore(destPath)
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer copied.Close()

	got, err := copied.GetReceipt("rcpt-1")
	if err != nil {
		t.Fatalf("GetReceipt from copy: %v", err)
	}
	if got.VendorName != "Blue Bottle" {
		t.Errorf("VendorName = %q, want %q", got.VendorName, "Blue Bottle")
	}
}

func TestExport_ClosedStore(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.ExportJSON(context.Background(), &bytes.Buffer{}); err != ErrStoreClosed {
		t.Errorf("ExportJSON on closed store = %v, want ErrStoreClosed", err)
	}
	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := s.ExportSQLite(context.Background(), dest); err != ErrStoreClosed {
		t.Errorf("ExportSQLite on closed store = %v, want ErrStoreClosed", err)
	}
}
