package pocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// DefaultOnlineTimeout bounds a single optimistic remote attempt made on the
// caller's behalf. Past it, the operation falls back to the offline path
// instead of blocking the user.
const DefaultOnlineTimeout = 5 * time.Second

// Repository is the single read/write surface the application shell talks to.
// Every operation succeeds locally regardless of connectivity: when the remote
// attempt fails with a network-class error, the write lands in the local store
// and a durable intent is queued for the engine.
type Repository struct {
	store  *Store
	remote RemoteClient
	reach  Reachability
	logger *DebugLogger

	onlineTimeout time.Duration
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithOnlineTimeout bounds the optimistic remote attempt per operation.
func WithOnlineTimeout(d time.Duration) RepositoryOption {
	return func(r *Repository) {
		if d > 0 {
			r.onlineTimeout = d
		}
	}
}

// WithRepositoryLogger attaches a debug logger.
func WithRepositoryLogger(logger *DebugLogger) RepositoryOption {
	return func(r *Repository) { r.logger = logger }
}

// NewRepository creates the façade. remote and reach may be nil for
// offline-only mode; every operation then takes the offline path directly.
func NewRepository(store *Store, remote RemoteClient, reach Reachability, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:         store,
		remote:        remote,
		reach:         reach,
		onlineTimeout: DefaultOnlineTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) online() bool {
	if r.remote == nil {
		return false
	}
	if r.reach == nil {
		return true
	}
	return r.reach.Reachable()
}

func (r *Repository) attemptCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.onlineTimeout)
}

// Create stores a new receipt. Online, the server assigns the ID and initial
// version. Offline (or when the remote attempt fails with a network-class
// error), the receipt gets a local placeholder ID and a queued create intent;
// the placeholder is replaced when the server confirms.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*Receipt, error) {
	if params.OwnerID == "" {
		return nil, &ValidationError{Field: "owner_id", Message: "required"}
	}
	if params.Status == "" {
		params.Status = StatusPending
	}
	if !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, params.Status)
	}
	if params.TotalCents < 0 || params.TaxCents < 0 {
		return nil, &ValidationError{Field: "total_cents", Message: "must not be negative"}
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	if err := validateTags(params.Tags); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	local := &Receipt{
		ID:          ulid.Make().String(),
		OwnerID:     params.OwnerID,
		CompanyID:   params.CompanyID,
		Status:      params.Status,
		VendorName:  params.VendorName,
		Category:    params.Category,
		Tags:        append([]string(nil), params.Tags...),
		Description: params.Description,
		Notes:       params.Notes,
		TotalCents:  params.TotalCents,
		TaxCents:    params.TaxCents,
		Currency:    params.Currency,
		ReceiptDate: params.ReceiptDate,
		Version:     0,
		IsSynced:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	idempotencyKey := uuid.NewString()

	if r.online() {
		req := &CreateReceiptRequest{
			ClientID:       local.ID,
			IdempotencyKey: idempotencyKey,
			OwnerID:        local.OwnerID,
			CompanyID:      local.CompanyID,
			Status:         string(local.Status),
			VendorName:     local.VendorName,
			Category:       local.Category,
			Tags:           local.Tags,
			Description:    local.Description,
			Notes:          local.Notes,
			TotalCents:     local.TotalCents,
			TaxCents:       local.TaxCents,
			Currency:       local.Currency,
		}
		if local.ReceiptDate != nil {
			req.ReceiptDate = local.ReceiptDate.UTC().Format(time.RFC3339)
		}

		attemptCtx, cancel := r.attemptCtx(ctx)
		rr, err := r.remote.Create(attemptCtx, req)
		cancel()
		if err == nil {
			confirmed := rr.ToReceipt()
			if saveErr := r.store.SaveReceipt(confirmed); saveErr != nil {
				return nil, saveErr
			}
			return confirmed, nil
		}
		if IsApplicationError(err) {
			return nil, err
		}
		r.logger.LogError("create", err)
	}

	m := NewCreateMutation(*local, idempotencyKey)
	if _, err := r.store.SaveAndEnqueue(local, m); err != nil {
		return nil, err
	}
	return local, nil
}

// Update applies a partial edit to a receipt. Online, the edit is submitted
// with the record's last confirmed version as precondition; a conflict or a
// network-class failure turns it into an offline edit, applied locally and
// queued for reconciliation.
func (r *Repository) Update(ctx context.Context, id string, params UpdateParams) (*Receipt, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *params.Status)
	}
	if params.Tags != nil {
		if err := validateTags(*params.Tags); err != nil {
			return nil, err
		}
	}

	record, err := r.store.GetReceipt(id)
	if err != nil {
		return nil, err
	}
	if params.IsZero() {
		return record, nil
	}

	if r.online() {
		req := updateRequest(record.Version, params)

		attemptCtx, cancel := r.attemptCtx(ctx)
		rr, err := r.remote.Update(attemptCtx, id, req)
		cancel()
		if err == nil {
			confirmed := rr.ToReceipt()
			if saveErr := r.store.SaveReceipt(confirmed); saveErr != nil {
				return nil, saveErr
			}
			return confirmed, nil
		}
		// A conflict is not terminal for the user: the edit lands locally and
		// the engine merges against the authoritative version on drain.
		if IsApplicationError(err) && !IsConflict(err) {
			return nil, err
		}
		r.logger.LogError("update", err)
	}

	m := NewUpdateMutation(id, record.Version, params)

	updated := *record
	m.Update.Apply(&updated)
	updated.IsSynced = false
	updated.UpdatedAt = time.Now().UTC()

	if _, err := r.store.SaveAndEnqueue(&updated, m); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a receipt. The local record disappears immediately in either
// path; offline, a delete intent is queued so the remote copy is reconciled
// later. Deleting an unknown receipt returns ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	record, err := r.store.GetReceipt(id)
	if err != nil {
		return err
	}

	if r.online() {
		attemptCtx, cancel := r.attemptCtx(ctx)
		err := r.remote.Delete(attemptCtx, id)
		cancel()
		if err == nil {
			return r.store.DeleteReceipt(id)
		}
		if IsApplicationError(err) {
			return err
		}
		r.logger.LogError("delete", err)
	}

	m := NewDeleteMutation(id, record.Version)
	_, err = r.store.DeleteAndEnqueue(id, m)
	return err
}

// GetByID returns a receipt, preferring the authoritative remote copy and
// refreshing the local cache with it. Records with pending local edits are
// served from the local store so unsynced changes stay visible. Offline, the
// local copy is returned.
func (r *Repository) GetByID(ctx context.Context, id string) (*Receipt, error) {
	if !r.online() {
		return r.store.GetReceipt(id)
	}

	open, err := r.store.OpenItemCount(id)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return r.store.GetReceipt(id)
	}

	attemptCtx, cancel := r.attemptCtx(ctx)
	rr, err := r.remote.Get(attemptCtx, id)
	cancel()
	if err == nil {
		confirmed := rr.ToReceipt()
		if saveErr := r.store.SaveReceipt(confirmed); saveErr != nil {
			return nil, saveErr
		}
		return confirmed, nil
	}

	// A locally created placeholder is not known to the server yet; anything
	// network-class falls back to the cache too.
	var re *RemoteError
	if errors.As(err, &re) && re.StatusCode == 404 {
		return r.store.GetReceipt(id)
	}
	if IsNetworkError(err) {
		r.logger.LogError("get", err)
		return r.store.GetReceipt(id)
	}
	return nil, err
}

// Search queries the local store. Online, the cache is refreshed from the
// remote first (incrementally, from the last drain time) so results reflect
// the server; records with pending local edits are never overwritten by the
// refresh. The refresh is best effort: a failed refresh degrades to a purely
// local search.
func (r *Repository) Search(ctx context.Context, params SearchParams) ([]Receipt, error) {
	if r.online() {
		r.refresh(ctx)
	}
	return r.store.SearchReceipts(params)
}

func (r *Repository) refresh(ctx context.Context) {
	var since time.Time
	if raw, err := r.store.GetMetadata(metaLastSync); err == nil && raw != "" {
		since, _ = time.Parse(time.RFC3339, raw)
	}

	attemptCtx, cancel := r.attemptCtx(ctx)
	defer cancel()

	remotes, err := r.remote.List(attemptCtx, since)
	if err != nil {
		r.logger.LogError("refresh", err)
		return
	}

	for i := range remotes {
		rr := &remotes[i]
		open, err := r.store.OpenItemCount(rr.ID)
		if err != nil || open > 0 {
			continue
		}
		if err := r.store.SaveReceipt(rr.ToReceipt()); err != nil {
			r.logger.LogError("refresh", err)
		}
	}
}

// validateTags rejects tags the comma-joined tags column cannot represent.
func validateTags(tags []string) error {
	for _, tag := range tags {
		if strings.Contains(tag, ",") {
			return &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q must not contain a comma", tag)}
		}
	}
	return nil
}

// updateRequest converts a partial edit into the wire request. version is the
// optimistic-concurrency precondition.
func updateRequest(version int64, params UpdateParams) *UpdateReceiptRequest {
	req := &UpdateReceiptRequest{
		Version:     version,
		Category:    params.Category,
		Description: params.Description,
		Notes:       params.Notes,
		Tags:        params.Tags,
	}
	if params.Status != nil {
		s := string(*params.Status)
		req.Status = &s
	}
	return req
}
