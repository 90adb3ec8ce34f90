package pocket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportFormat is the top-level structure for JSON exports. Receipts are
// written in full local form, including sync bookkeeping, so an import on
// another device reproduces this device's view exactly.
type ExportFormat struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Receipts   []Receipt `json:"receipts"`
}

// ExportJSON streams all local receipts as JSON to the writer. Rows are
// iterated with a cursor rather than loaded into memory, so exports of
// large databases stay flat.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	header := fmt.Sprintf(`{"version":%q,"exported_at":%q,"receipts":[`,
		ExportVersion, time.Now().UTC().Format(time.RFC3339))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, company_id, status, vendor_name, category, tags,
		       description, notes, total_cents, tax_cents, currency, ocr_text,
		       receipt_date, version, is_synced, sync_error, created_at, updated_at
		FROM receipts
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	first := true

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r, err := scanReceipt(rows)
		if err != nil {
			return fmt.Errorf("scan receipt: %w", err)
		}

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		first = false

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate receipts: %w", err)
	}

	if _, err := io.WriteString(w, "]}"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return nil
}

// ExportSQLite copies the store's database to destPath as a standalone
// SQLite file. The WAL is checkpointed first so pending writes land in
// the copy.
func (s *Store) ExportSQLite(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}

	srcFile, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy database: %w", err)
	}

	return destFile.Sync()
}
