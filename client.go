package pocket

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Client is the main interface for interacting with receipts. It wires the
// local store, the repository façade, the reachability monitor, and the sync
// engine together from a Config.
type Client struct {
	store   *Store
	repo    *Repository
	engine  *Engine
	remote  RemoteClient
	monitor *ProbeMonitor
	session *JWTSession
	tokens  TokenSource
	logger  *DebugLogger
	config  Config
}

// New creates a new Pocket client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:  store,
		logger: logger,
		config: cfg,
	}

	if !cfg.IsOffline() {
		// A JWT token gets expiry tracking; anything else is passed verbatim.
		if session, err := NewJWTSession(cfg.APIToken); err == nil {
			c.session = session
			c.tokens = session
		} else {
			c.tokens = StaticToken(cfg.APIToken)
		}

		c.remote = NewHTTPClient(cfg.APIURL, c.tokens, cfg.DeviceID).WithLogger(logger)
		c.monitor = NewProbeMonitor(c.remote, 0)
	}

	var reach Reachability
	if c.monitor != nil {
		reach = c.monitor
	}

	c.repo = NewRepository(store, c.remote, reach, WithRepositoryLogger(logger))
	c.engine = NewEngine(store, c.remote, reach, c.tokens,
		WithSyncInterval(cfg.SyncInterval),
		WithEngineLogger(logger),
	)

	if c.monitor != nil {
		c.monitor.ProbeNow(context.Background())
		c.monitor.Start()
	}
	if c.remote != nil && cfg.AutoSync {
		c.engine.StartPeriodicSync()
	}

	return c, nil
}

// SetToken replaces the authentication token, e.g. after a re-login. Only
// meaningful when the client was built with a JWT token.
func (c *Client) SetToken(raw string) error {
	if c.session == nil {
		return ErrOffline
	}
	return c.session.SetToken(raw)
}

// Create stores a new receipt.
func (c *Client) Create(ctx context.Context, params CreateParams) (*Receipt, error) {
	return c.repo.Create(ctx, params)
}

// Update applies a partial edit to a receipt.
func (c *Client) Update(ctx context.Context, id string, params UpdateParams) (*Receipt, error) {
	return c.repo.Update(ctx, id, params)
}

// Delete removes a receipt.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, id)
}

// Get returns a receipt by ID.
func (c *Client) Get(ctx context.Context, id string) (*Receipt, error) {
	return c.repo.GetByID(ctx, id)
}

// Search queries receipts.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Receipt, error) {
	return c.repo.Search(ctx, params)
}

// SyncNow drains the pending queue immediately.
func (c *Client) SyncNow(ctx context.Context) (*SyncSummary, error) {
	if c.remote == nil {
		return nil, ErrOffline
	}
	return c.engine.SyncNow(ctx)
}

// StartPeriodicSync launches the background drain scheduler. Returns
// ErrOffline when no remote is configured. A no-op when already running.
func (c *Client) StartPeriodicSync() error {
	if c.remote == nil {
		return ErrOffline
	}
	c.engine.StartPeriodicSync()
	return nil
}

// StopPeriodicSync stops the background drain scheduler. Safe to call when it
// is not running.
func (c *Client) StopPeriodicSync() {
	if c.remote == nil {
		return
	}
	c.engine.StopPeriodicSync()
}

// Status reports the sync state: queue depths, last drain time, and whether a
// drain is running right now.
func (c *Client) Status() (*Status, error) {
	stats, err := c.store.Stats()
	if err != nil {
		return nil, err
	}
	return &Status{
		PendingCount: stats.PendingQueue,
		FailedCount:  stats.DeadLetters,
		LastSyncTime: stats.LastSync,
		IsSyncing:    c.engine.IsSyncing(),
	}, nil
}

// DeadLetters returns queue items that exhausted their retry budget.
func (c *Client) DeadLetters() ([]QueueItem, error) {
	return c.store.DeadLetters()
}

// Requeue returns a dead-lettered item to the pending queue.
func (c *Client) Requeue(itemID int64) error {
	return c.store.Requeue(itemID)
}

// Stats returns local store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// ExportJSON streams the local receipt database as JSON to w.
func (c *Client) ExportJSON(ctx context.Context, w io.Writer) error {
	return c.store.ExportJSON(ctx, w)
}

// ExportSQLite copies the local database to a standalone SQLite file.
func (c *Client) ExportSQLite(ctx context.Context, destPath string) error {
	return c.store.ExportSQLite(ctx, destPath)
}

// ImportJSON imports receipts from a JSON export into the local cache.
func (c *Client) ImportJSON(ctx context.Context, r io.Reader, strategy MergeStrategy, dryRun bool) (*ImportResult, error) {
	return c.store.ImportJSON(ctx, r, strategy, dryRun)
}

// Close stops background syncing, attempts one final bounded drain, and
// closes the store.
func (c *Client) Close() error {
	if c.remote != nil {
		c.engine.StopPeriodicSync()
	}
	if c.monitor != nil {
		c.monitor.Stop()
	}

	if c.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, _ = c.engine.SyncNow(ctx)
		cancel()
	}

	err := c.store.Close()
	c.logger.Close()
	return err
}
