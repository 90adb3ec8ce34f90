package pocket

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/receiptwise/pocket/internal/store/migrations"
	_ "modernc.org/sqlite"
)

const schemaVersion = "3"

// Store manages the local SQLite receipt database. It is the sole source of
// truth while offline and the authoritative cache while online. All operations
// are synchronous; nothing here touches the network.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a local receipt store.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	// Set schema version if not set
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// execer abstracts Exec shared by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// SaveReceipt upserts a receipt by ID. Saving the same receipt twice is a
// no-op beyond refreshing its stored fields.
func (s *Store) SaveReceipt(r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	return upsertReceipt(s.db, r)
}

func upsertReceipt(e execer, r *Receipt) error {
	var tagsStr *string
	if len(r.Tags) > 0 {
		joined := strings.Join(r.Tags, ",")
		tagsStr = &joined
	}

	var receiptDate *string
	if r.ReceiptDate != nil {
		d := r.ReceiptDate.UTC().Format(time.RFC3339)
		receiptDate = &d
	}

	_, err := e.Exec(`
		INSERT INTO receipts (
			id, owner_id, company_id, status, vendor_name, category, tags,
			description, notes, total_cents, tax_cents, currency, ocr_text,
			receipt_date, version, is_synced, sync_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			company_id = excluded.company_id,
			status = excluded.status,
			vendor_name = excluded.vendor_name,
			category = excluded.category,
			tags = excluded.tags,
			description = excluded.description,
			notes = excluded.notes,
			total_cents = excluded.total_cents,
			tax_cents = excluded.tax_cents,
			currency = excluded.currency,
			ocr_text = excluded.ocr_text,
			receipt_date = excluded.receipt_date,
			version = excluded.version,
			is_synced = excluded.is_synced,
			sync_error = excluded.sync_error,
			updated_at = excluded.updated_at
	`,
		r.ID,
		r.OwnerID,
		nullString(r.CompanyID),
		string(r.Status),
		nullString(r.VendorName),
		nullString(r.Category),
		tagsStr,
		nullString(r.Description),
		nullString(r.Notes),
		r.TotalCents,
		r.TaxCents,
		r.Currency,
		nullString(r.OCRText),
		receiptDate,
		r.Version,
		boolToInt(r.IsSynced),
		nullString(r.SyncError),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: upsert receipt: %w", err)
	}
	return nil
}

// ReceiptExists reports whether a receipt with the given ID is present
// locally.
func (s *Store) ReceiptExists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	return s.receiptExistsUnlocked(id)
}

// GetReceipt retrieves a receipt by ID.
func (s *Store) GetReceipt(id string) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.getReceipt(id)
}

func (s *Store) getReceipt(id string) (*Receipt, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, company_id, status, vendor_name, category, tags,
		       description, notes, total_cents, tax_cents, currency, ocr_text,
		       receipt_date, version, is_synced, sync_error, created_at, updated_at
		FROM receipts WHERE id = ?
	`, id)

	return scanReceipt(row)
}

// SearchReceipts returns receipts matching the given predicates, newest first.
// All set predicates compose with AND. No matches yields an empty slice, not
// an error.
func (s *Store) SearchReceipts(params SearchParams) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, owner_id, company_id, status, vendor_name, category, tags,
		       description, notes, total_cents, tax_cents, currency, ocr_text,
		       receipt_date, version, is_synced, sync_error, created_at, updated_at
		FROM receipts WHERE 1=1
	`
	args := []any{}

	if params.Text != "" {
		needle := "%" + strings.ToLower(params.Text) + "%"
		query += ` AND (
			LOWER(COALESCE(vendor_name, '')) LIKE ?
			OR LOWER(COALESCE(description, '')) LIKE ?
			OR LOWER(COALESCE(ocr_text, '')) LIKE ?
		)`
		args = append(args, needle, needle, needle)
	}
	if params.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, params.OwnerID)
	}
	if params.CompanyID != "" {
		query += " AND company_id = ?"
		args = append(args, params.CompanyID)
	}
	if params.Category != "" {
		query += " AND category = ?"
		args = append(args, params.Category)
	}
	if params.Vendor != "" {
		query += " AND vendor_name = ?"
		args = append(args, params.Vendor)
	}
	if params.Status != "" {
		query += " AND status = ?"
		args = append(args, string(params.Status))
	}
	if params.Tag != "" {
		query += " AND (',' || COALESCE(tags, '') || ',') LIKE ?"
		args = append(args, "%,"+params.Tag+",%")
	}
	if params.From != nil {
		query += " AND receipt_date >= ?"
		args = append(args, params.From.UTC().Format(time.RFC3339))
	}
	if params.To != nil {
		query += " AND receipt_date <= ?"
		args = append(args, params.To.UTC().Format(time.RFC3339))
	}
	if params.MinCents != nil {
		query += " AND total_cents >= ?"
		args = append(args, *params.MinCents)
	}
	if params.MaxCents != nil {
		query += " AND total_cents <= ?"
		args = append(args, *params.MaxCents)
	}

	query += " ORDER BY receipt_date IS NULL, receipt_date DESC, created_at DESC"

	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search receipts: %w", err)
	}
	defer rows.Close()

	results := []Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}

	return results, rows.Err()
}

// DeleteReceipt removes a receipt. Deleting an absent receipt is a no-op.
func (s *Store) DeleteReceipt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM receipts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete receipt: %w", err)
	}
	return nil
}

// ReplaceReceiptID atomically swaps a placeholder receipt for its
// server-confirmed form. The confirmed receipt may carry a different ID; the
// placeholder row is removed in the same transaction.
func (s *Store) ReplaceReceiptID(placeholderID string, confirmed *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if placeholderID != confirmed.ID {
		if _, err := tx.Exec(`DELETE FROM receipts WHERE id = ?`, placeholderID); err != nil {
			return fmt.Errorf("store: remove placeholder: %w", err)
		}
	}
	if err := upsertReceipt(tx, confirmed); err != nil {
		return err
	}

	return tx.Commit()
}

// SetSyncError records a reconciliation failure on a receipt and marks it
// unsynced. An empty message clears the error without changing sync state.
func (s *Store) SetSyncError(id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var err error
	if message == "" {
		_, err = s.db.Exec(`UPDATE receipts SET sync_error = NULL WHERE id = ?`, id)
	} else {
		_, err = s.db.Exec(`UPDATE receipts SET sync_error = ?, is_synced = 0 WHERE id = ?`, message, id)
	}
	if err != nil {
		return fmt.Errorf("store: set sync error: %w", err)
	}
	return nil
}

// GetMetadata returns the value for a metadata key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata: %w", err)
	}
	return value, nil
}

// SetMetadata sets a metadata key to a value, overwriting any previous value.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata: %w", err)
	}
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM receipts").Scan(&count); err != nil {
		return nil, err
	}

	var unsynced int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM receipts WHERE is_synced = 0").Scan(&unsynced); err != nil {
		return nil, err
	}

	var pending int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE status = 'pending'").Scan(&pending); err != nil {
		return nil, err
	}

	var dead int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE status = 'dead'").Scan(&dead); err != nil {
		return nil, err
	}

	var lastSyncStr sql.NullString
	s.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_sync'").Scan(&lastSyncStr)

	var lastSync time.Time
	if lastSyncStr.Valid {
		lastSync, _ = time.Parse(time.RFC3339, lastSyncStr.String)
	}

	return &StoreStats{
		ReceiptCount:  count,
		UnsyncedCount: unsynced,
		PendingQueue:  pending,
		DeadLetters:   dead,
		LastSync:      lastSync,
		SchemaVersion: schemaVersion,
	}, nil
}

// Path returns the filesystem location of the database.
func (s *Store) Path() string {
	return s.path
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanReceipt scans a single receipt row from any scanner (Row or Rows).
// Returns ErrNotFound for sql.ErrNoRows from *sql.Row.
func scanReceipt(sc scanner) (*Receipt, error) {
	var (
		r           Receipt
		companyID   sql.NullString
		status      string
		vendor      sql.NullString
		category    sql.NullString
		tags        sql.NullString
		description sql.NullString
		notes       sql.NullString
		ocrText     sql.NullString
		receiptDate sql.NullString
		isSynced    int
		syncError   sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := sc.Scan(
		&r.ID,
		&r.OwnerID,
		&companyID,
		&status,
		&vendor,
		&category,
		&tags,
		&description,
		&notes,
		&r.TotalCents,
		&r.TaxCents,
		&r.Currency,
		&ocrText,
		&receiptDate,
		&r.Version,
		&isSynced,
		&syncError,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Status = ReceiptStatus(status)
	if companyID.Valid {
		r.CompanyID = companyID.String
	}
	if vendor.Valid {
		r.VendorName = vendor.String
	}
	if category.Valid {
		r.Category = category.String
	}
	if tags.Valid && tags.String != "" {
		r.Tags = strings.Split(tags.String, ",")
	}
	if description.Valid {
		r.Description = description.String
	}
	if notes.Valid {
		r.Notes = notes.String
	}
	if ocrText.Valid {
		r.OCRText = ocrText.String
	}
	if receiptDate.Valid {
		t, _ := time.Parse(time.RFC3339, receiptDate.String)
		r.ReceiptDate = &t
	}
	r.IsSynced = isSynced != 0
	if syncError.Valid {
		r.SyncError = syncError.String
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &r, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
