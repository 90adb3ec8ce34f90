package pocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultSyncInterval is the periodic drain cadence when none is configured.
const DefaultSyncInterval = 5 * time.Minute

// metadata key holding the completion time of the last drain cycle.
const metaLastSync = "last_sync"

// Engine drains the sync queue against the remote service. It is the only
// component that mutates queue items after enqueue, and it never deletes a
// user intent without either a remote acknowledgement or a dead-letter
// transition.
type Engine struct {
	store  *Store
	remote RemoteClient
	reach  Reachability
	tokens TokenSource
	logger *DebugLogger

	batchSize int
	interval  time.Duration

	mu      sync.Mutex
	syncing bool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBatchSize bounds the snapshot taken per drain cycle.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithSyncInterval sets the periodic drain cadence.
func WithSyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithEngineLogger attaches a debug logger.
func WithEngineLogger(logger *DebugLogger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a sync engine. remote may be nil for offline-only mode,
// in which case every drain returns ErrOffline.
func NewEngine(store *Store, remote RemoteClient, reach Reachability, tokens TokenSource, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		remote:    remote,
		reach:     reach,
		tokens:    tokens,
		batchSize: DefaultBatchSize,
		interval:  DefaultSyncInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsSyncing reports whether a drain is currently running.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// SyncNow runs one drain cycle immediately. Returns ErrSyncInProgress if a
// drain is already running (the in-flight drain will pick up any new work on
// its next cycle), ErrOffline when no remote is configured or reachable, and
// ErrSessionExpired when there is no authenticated session.
func (e *Engine) SyncNow(ctx context.Context) (*SyncSummary, error) {
	return e.drain(ctx)
}

// StartPeriodicSync launches the background scheduler: a periodic tick plus
// an immediate drain whenever connectivity is regained. Calling it twice is a
// no-op.
func (e *Engine) StartPeriodicSync() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.started {
		return
	}
	e.started = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(ctx)
}

// StopPeriodicSync cancels the scheduler and any in-flight drain, then waits
// for the loop to exit.
func (e *Engine) StopPeriodicSync() {
	e.runMu.Lock()
	if !e.started {
		e.runMu.Unlock()
		return
	}
	e.started = false
	cancel, done := e.cancel, e.done
	e.runMu.Unlock()

	cancel()
	<-done
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	var changes <-chan bool
	if e.reach != nil {
		changes = e.reach.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = e.drain(ctx)
		case regained := <-changes:
			if regained {
				_, _ = e.drain(ctx)
			}
		}
	}
}

// drain runs a single cycle: snapshot a bounded batch, process each item
// independently, and summarize. A single item's failure never aborts the
// batch; only a local storage failure or context cancellation stops early.
func (e *Engine) drain(ctx context.Context) (*SyncSummary, error) {
	if e.remote == nil {
		return nil, ErrOffline
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	// Preconditions: abort with no state change.
	if e.reach != nil && !e.reach.Reachable() {
		return nil, ErrOffline
	}
	if e.tokens != nil {
		if _, err := e.tokens.Token(); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	batch, err := e.store.PeekBatch(e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	summary := &SyncSummary{}

	// Placeholder IDs confirmed mid-drain; later items in this snapshot may
	// still reference the pre-confirmation ID.
	remapped := map[string]string{}

	for _, item := range batch {
		if ctx.Err() != nil {
			break
		}

		err := e.processItem(ctx, item, remapped)
		summary.Processed++

		switch {
		case err == nil:
			summary.Succeeded++

		case isPayloadError(err):
			// Retrying an undecodable payload cannot help.
			if dlErr := e.store.DeadLetterNow(item.ID, err.Error()); dlErr != nil {
				e.logger.LogError("dead_letter", dlErr)
			}
			summary.Failed++
			summary.DeadLettered++

		case errors.Is(err, ErrStorage):
			// Local persistence is unhealthy; nothing else in this batch
			// can make progress. Leave everything queued.
			summary.Transient++
			e.logger.LogError("drain", err)
			return summary, err

		case IsNetworkError(err):
			// Free retry on the next cycle; no bookkeeping cost.
			summary.Transient++

		default:
			// Logical failure: validation rejection, unresolved conflict,
			// remote entity gone.
			dead, rfErr := e.store.RecordFailure(item.ID, err.Error())
			if rfErr != nil {
				e.logger.LogError("record_failure", rfErr)
			}
			if target := resolveEntityID(item.EntityID, remapped); target != "" {
				if seErr := e.store.SetSyncError(target, err.Error()); seErr != nil {
					e.logger.LogError("set_sync_error", seErr)
				}
			}
			summary.Failed++
			if dead {
				summary.DeadLettered++
			}
		}
	}

	summary.Duration = time.Since(start)

	if err := e.store.SetMetadata(metaLastSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
		e.logger.LogError("set_last_sync", err)
	}

	e.logger.LogSync("drain", fmt.Sprintf(
		"processed=%d succeeded=%d transient=%d failed=%d dead=%d in %s",
		summary.Processed, summary.Succeeded, summary.Transient,
		summary.Failed, summary.DeadLettered, summary.Duration,
	))

	return summary, nil
}

func (e *Engine) processItem(ctx context.Context, item QueueItem, remapped map[string]string) error {
	m, err := DecodeMutation(item.ID, item.Payload)
	if err != nil {
		return err
	}
	if m.EntityType != EntityReceipt {
		return &PayloadError{ItemID: item.ID, Err: fmt.Errorf("unknown entity type %q", m.EntityType)}
	}

	entityID := resolveEntityID(item.EntityID, remapped)

	switch m.Action {
	case ActionCreate:
		return e.processCreate(ctx, item, m.Create, remapped)
	case ActionUpdate:
		return e.processUpdate(ctx, item, entityID, m.Update)
	case ActionDelete:
		return e.processDelete(ctx, item, entityID)
	default:
		return &PayloadError{ItemID: item.ID, Err: fmt.Errorf("unknown action %q", m.Action)}
	}
}

func (e *Engine) processCreate(ctx context.Context, item QueueItem, p *CreatePayload, remapped map[string]string) error {
	local := p.Receipt

	req := &CreateReceiptRequest{
		ClientID:       local.ID,
		IdempotencyKey: p.IdempotencyKey,
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

	rr, err := e.remote.Create(ctx, req)
	if err != nil {
		return err
	}

	confirmed := rr.ToReceipt()

	// Later queue items still reference the placeholder ID.
	if confirmed.ID != local.ID {
		remapped[local.ID] = confirmed.ID
		if err := e.store.RemapQueueEntity(local.ID, confirmed.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}

	if err := e.applyConfirmed(item.ID, local.ID, confirmed); err != nil {
		return err
	}

	// The intent is released only after the confirmed state is durable.
	if err := e.store.Ack(item.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (e *Engine) processUpdate(ctx context.Context, item QueueItem, entityID string, p *UpdatePayload) error {
	// Fetch the authoritative representation just before submitting.
	current, err := e.remote.Get(ctx, entityID)
	if err != nil {
		return err
	}

	if isConflicting(current, p) {
		e.logger.LogSync("merge", fmt.Sprintf(
			"item %d: rebasing edit (%v) from version %d onto %d",
			item.ID, p.Touched(), p.BaseVersion, current.Version,
		))
	}
	req := mergeUpdate(current, p)

	rr, err := e.remote.Update(ctx, entityID, req)
	if err != nil {
		// A second conflict on the same item means the record is moving
		// under us; hand it to the retry/dead-letter accounting instead of
		// looping.
		return err
	}

	confirmed := rr.ToReceipt()

	if err := e.applyConfirmed(item.ID, entityID, confirmed); err != nil {
		return err
	}
	if err := e.store.Ack(item.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (e *Engine) processDelete(ctx context.Context, item QueueItem, entityID string) error {
	if err := e.remote.Delete(ctx, entityID); err != nil {
		return err
	}
	if err := e.store.Ack(item.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// applyConfirmed writes a server-confirmed record into the local store. A
// record the user deleted locally after this mutation was queued is not
// rewritten: the queued delete intent still reconciles the remote copy. The
// record is only marked synced when no further queue items reference it;
// itemID is the in-flight item, still pending until its ack.
func (e *Engine) applyConfirmed(itemID int64, placeholderID string, confirmed *Receipt) error {
	exists, err := e.store.ReceiptExists(placeholderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !exists {
		return nil
	}

	open, err := e.store.openItemCountExcluding(confirmed.ID, itemID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if placeholderID != confirmed.ID {
		n, err := e.store.openItemCountExcluding(placeholderID, itemID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		open += n
	}
	confirmed.IsSynced = open == 0
	confirmed.SyncError = ""

	if err := e.store.ReplaceReceiptID(placeholderID, confirmed); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func resolveEntityID(id string, remapped map[string]string) string {
	if confirmed, ok := remapped[id]; ok {
		return confirmed
	}
	return id
}

func isPayloadError(err error) bool {
	var pe *PayloadError
	return errors.As(err, &pe)
}
