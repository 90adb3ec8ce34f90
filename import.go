package pocket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// MergeStrategy defines how to handle receipts that already exist locally
// during an import.
type MergeStrategy string

const (
	// MergeStrategySkip leaves existing receipts untouched.
	MergeStrategySkip MergeStrategy = "skip"
	// MergeStrategyReplace overwrites existing receipts with the imported
	// version (default).
	MergeStrategyReplace MergeStrategy = "replace"
)

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total    int      `json:"total"`
	Created  int      `json:"created"`
	Replaced int      `json:"replaced"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportJSON imports receipts from a JSON export. The stream is decoded
// incrementally so large files never load fully into memory. Imported
// receipts go straight into the local cache without touching the sync
// queue; they carry whatever sync state the export recorded.
//
// The write lock is held for the whole import, blocking other store
// operations until it completes. Run with dryRun first to preview the
// scope of a large import.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, strategy MergeStrategy, dryRun bool) (*ImportResult, error) {
	if strategy != MergeStrategySkip && strategy != MergeStrategyReplace {
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	dec := json.NewDecoder(r)
	result := &ImportResult{}

	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	var version string
	for dec.More() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		fieldName, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		switch fieldName {
		case "version":
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != ExportVersion {
				return nil, fmt.Errorf("unsupported export version %q (expected %q)", version, ExportVersion)
			}

		case "receipts":
			if err := s.importReceiptArray(ctx, dec, strategy, dryRun, result); err != nil {
				return result, fmt.Errorf("import receipts: %w", err)
			}

		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("decode field %s: %w", fieldName, err)
			}
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in export file")
	}

	return result, nil
}

func (s *Store) importReceiptArray(ctx context.Context, dec *json.Decoder, strategy MergeStrategy, dryRun bool, result *ImportResult) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read receipts array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected receipts array, got %v", token)
	}

	for dec.More() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var rec Receipt
		if err := dec.Decode(&rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("decode receipt: %v", err))
			continue
		}
		result.Total++

		if rec.ID == "" {
			result.Errors = append(result.Errors, "receipt missing id")
			continue
		}
		if !rec.Status.IsValid() {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: invalid status %q", rec.ID, rec.Status))
			continue
		}

		exists, err := s.receiptExistsUnlocked(rec.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("check existence %s: %v", rec.ID, err))
			continue
		}

		if exists && strategy == MergeStrategySkip {
			result.Skipped++
			continue
		}

		if !dryRun {
			if err := upsertReceipt(s.db, &rec); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("import %s: %v", rec.ID, err))
				continue
			}
		}

		if exists {
			result.Replaced++
		} else {
			result.Created++
		}
	}

	token, err = dec.Token()
	if err != nil {
		return fmt.Errorf("read receipts array end: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != ']' {
		return fmt.Errorf("expected receipts array end, got %v", token)
	}

	return nil
}

func (s *Store) receiptExistsUnlocked(id string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM receipts WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
