package pocket

import "time"

// Receipt is the synchronized domain entity: one receipt as known on this
// device. A receipt created offline carries a locally assigned ULID until the
// server confirms it, at which point the confirmed ID and version replace the
// placeholder.
type Receipt struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	CompanyID   string        `json:"company_id,omitempty"`
	Status      ReceiptStatus `json:"status"`
	VendorName  string        `json:"vendor_name,omitempty"`
	Category    string        `json:"category,omitempty"`
	// Tags are stored comma-joined locally, so a tag itself must not contain
	// a comma (enforced at the repository boundary).
	Tags        []string      `json:"tags,omitempty"`
	Description string        `json:"description,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	TotalCents  int64         `json:"total_cents"`
	TaxCents    int64         `json:"tax_cents"`
	Currency    string        `json:"currency"`
	OCRText     string        `json:"ocr_text,omitempty"`
	ReceiptDate *time.Time    `json:"receipt_date,omitempty"`

	// Version is the optimistic-concurrency token. It only ever advances, and
	// only from a server-confirmed response, never from local edits.
	Version int64 `json:"version"`

	// IsSynced is true iff the local copy matches the last-known remote
	// representation exactly.
	IsSynced bool `json:"is_synced"`

	// SyncError holds the last reconciliation failure, cleared on success.
	SyncError string `json:"sync_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReceiptStatus classifies the processing state of a receipt.
type ReceiptStatus string

const (
	StatusPending   ReceiptStatus = "PENDING"
	StatusProcessed ReceiptStatus = "PROCESSED"
	StatusReviewed  ReceiptStatus = "REVIEWED"
	StatusExported  ReceiptStatus = "EXPORTED"
)

// ValidStatuses returns all valid receipt statuses.
func ValidStatuses() []ReceiptStatus {
	return []ReceiptStatus{StatusPending, StatusProcessed, StatusReviewed, StatusExported}
}

// IsValid checks if the status is a valid receipt status.
func (s ReceiptStatus) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// HasTag reports whether the receipt carries the given tag.
func (r *Receipt) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CreateParams contains the caller-supplied fields for a new receipt.
type CreateParams struct {
	OwnerID     string        `json:"owner_id"`
	CompanyID   string        `json:"company_id,omitempty"`
	Status      ReceiptStatus `json:"status,omitempty"`
	VendorName  string        `json:"vendor_name,omitempty"`
	Category    string        `json:"category,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Description string        `json:"description,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	TotalCents  int64         `json:"total_cents"`
	TaxCents    int64         `json:"tax_cents"`
	Currency    string        `json:"currency,omitempty"`
	ReceiptDate *time.Time    `json:"receipt_date,omitempty"`
}

// UpdateParams describes a partial edit: only non-nil fields are touched.
// These are exactly the user-editable fields; server-derived fields (vendor
// name, extracted text, computed totals) cannot be edited locally.
type UpdateParams struct {
	Status      *ReceiptStatus `json:"status,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Description *string        `json:"description,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
}

// IsZero reports whether the update touches no fields.
func (p UpdateParams) IsZero() bool {
	return p.Status == nil && p.Category == nil && p.Description == nil &&
		p.Notes == nil && p.Tags == nil
}

// SearchParams filters and bounds a local receipt search. All set predicates
// compose with logical AND.
type SearchParams struct {
	// Text matches as a case-insensitive substring over vendor name,
	// description, and extracted OCR text.
	Text string `json:"text,omitempty"`

	OwnerID   string `json:"owner_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	Category  string `json:"category,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Tag       string `json:"tag,omitempty"`

	Status ReceiptStatus `json:"status,omitempty"`

	// Receipt date range, inclusive.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// Total amount range in cents, inclusive.
	MinCents *int64 `json:"min_cents,omitempty"`
	MaxCents *int64 `json:"max_cents,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// SyncSummary reports the outcome of a single drain cycle.
type SyncSummary struct {
	Processed    int           `json:"processed"`
	Succeeded    int           `json:"succeeded"`
	Transient    int           `json:"transient"`
	Failed       int           `json:"failed"`
	DeadLettered int           `json:"dead_lettered"`
	Duration     time.Duration `json:"duration"`
}

// Status is the engine state exposed to the application shell.
type Status struct {
	PendingCount int       `json:"pending_count"`
	FailedCount  int       `json:"failed_count"`
	LastSyncTime time.Time `json:"last_sync_time"`
	IsSyncing    bool      `json:"is_syncing"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	ReceiptCount  int       `json:"receipt_count"`
	UnsyncedCount int       `json:"unsynced_count"`
	PendingQueue  int       `json:"pending_queue"`
	DeadLetters   int       `json:"dead_letters"`
	LastSync      time.Time `json:"last_sync"`
	SchemaVersion string    `json:"schema_version"`
}
