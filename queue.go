package pocket

import (
	"database/sql"
	"fmt"
	"time"
)

// Queue policy constants.
const (
	// MaxRetries is the number of logical failures an item may accumulate
	// before it is dead-lettered.
	MaxRetries = 3

	// DefaultBatchSize bounds the snapshot a single drain cycle operates on.
	DefaultBatchSize = 20
)

// QueueStatus is the lifecycle state of a sync queue item.
type QueueStatus string

const (
	// QueuePending items are eligible for the next drain.
	QueuePending QueueStatus = "pending"

	// QueueDead items exhausted their retry budget. They are retained for
	// manual resolution, never deleted automatically.
	QueueDead QueueStatus = "dead"
)

// QueueItem is one durable pending mutation intent. Items are created by the
// repository façade, mutated only by the sync engine's retry bookkeeping, and
// removed only on confirmed acknowledgement.
type QueueItem struct {
	ID           int64       `json:"id"`
	Action       Action      `json:"action"`
	EntityType   string      `json:"entity_type"`
	EntityID     string      `json:"entity_id,omitempty"`
	Payload      []byte      `json:"payload"`
	RetryCount   int         `json:"retry_count"`
	LastRetryAt  *time.Time  `json:"last_retry_at,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Status       QueueStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Enqueue appends a mutation to the sync queue durably and returns its
// sequence number. Safe to call while a drain is in progress: the drain only
// sees the snapshot it took at its start.
func (s *Store) Enqueue(m Mutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	return enqueueMutation(s.db, m)
}

func enqueueMutation(e execer, m Mutation) (int64, error) {
	payload, err := m.Encode()
	if err != nil {
		return 0, fmt.Errorf("store: encode mutation: %w", err)
	}

	res, err := e.Exec(`
		INSERT INTO sync_queue (action, entity_type, entity_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(m.Action),
		m.EntityType,
		nullString(m.EntityID),
		payload,
		string(QueuePending),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("store: enqueue mutation: %w", err)
	}
	return res.LastInsertId()
}

// SaveAndEnqueue atomically upserts a receipt and appends its mutation intent
// in one transaction. This is the offline write path: either both the local
// edit and the durable intent land, or neither does.
func (s *Store) SaveAndEnqueue(r *Receipt, m Mutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if err := upsertReceipt(tx, r); err != nil {
		return 0, err
	}
	id, err := enqueueMutation(tx, m)
	if err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

// DeleteAndEnqueue atomically removes a receipt and appends a delete intent.
// The local record disappears immediately; the remote deletion is reconciled
// later by the engine.
func (s *Store) DeleteAndEnqueue(id string, m Mutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if _, err := tx.Exec(`DELETE FROM receipts WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("store: delete receipt: %w", err)
	}
	itemID, err := enqueueMutation(tx, m)
	if err != nil {
		return 0, err
	}

	return itemID, tx.Commit()
}

// PeekBatch returns the oldest pending items, up to limit, without removing
// them. Dead-lettered items are excluded.
func (s *Store) PeekBatch(limit int) ([]QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = DefaultBatchSize
	}

	rows, err := s.db.Query(`
		SELECT id, action, entity_type, entity_id, payload, retry_count,
		       last_retry_at, error_message, status, created_at
		FROM sync_queue
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`, string(QueuePending), limit)
	if err != nil {
		return nil, fmt.Errorf("store: peek queue: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// Ack permanently removes a queue item on confirmed acknowledgement. Acking
// an already-removed item has no effect.
func (s *Store) Ack(itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("store: ack queue item: %w", err)
	}
	return nil
}

// RecordFailure bumps an item's retry bookkeeping for a logical failure. Once
// the retry count reaches MaxRetries the item transitions to the terminal
// dead-letter status instead of being deleted. Returns true when the item was
// dead-lettered by this call.
func (s *Store) RecordFailure(itemID int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	var retryCount int
	err = tx.QueryRow(`SELECT retry_count FROM sync_queue WHERE id = ?`, itemID).Scan(&retryCount)
	if err == sql.ErrNoRows {
		return false, ErrQueueItemNotFound
	}
	if err != nil {
		return false, fmt.Errorf("store: read queue item: %w", err)
	}

	retryCount++
	status := QueuePending
	if retryCount >= MaxRetries {
		status = QueueDead
	}

	_, err = tx.Exec(`
		UPDATE sync_queue
		SET retry_count = ?, last_retry_at = ?, error_message = ?, status = ?
		WHERE id = ?
	`, retryCount, time.Now().UTC().Format(time.RFC3339), reason, string(status), itemID)
	if err != nil {
		return false, fmt.Errorf("store: record failure: %w", err)
	}

	return status == QueueDead, tx.Commit()
}

// DeadLetterNow transitions an item straight to dead-letter, bypassing the
// retry budget. Used for undecodable payloads, where retrying cannot help.
func (s *Store) DeadLetterNow(itemID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		UPDATE sync_queue
		SET error_message = ?, status = ?, last_retry_at = ?
		WHERE id = ?
	`, reason, string(QueueDead), time.Now().UTC().Format(time.RFC3339), itemID)
	if err != nil {
		return fmt.Errorf("store: dead-letter queue item: %w", err)
	}
	return nil
}

// DeadLetters returns all dead-lettered items, oldest first, for manual
// resolution in the application shell.
func (s *Store) DeadLetters() ([]QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, action, entity_type, entity_id, payload, retry_count,
		       last_retry_at, error_message, status, created_at
		FROM sync_queue
		WHERE status = ?
		ORDER BY id ASC
	`, string(QueueDead))
	if err != nil {
		return nil, fmt.Errorf("store: list dead letters: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// Requeue returns a dead-lettered item to the pending queue with a fresh
// retry budget.
func (s *Store) Requeue(itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.Exec(`
		UPDATE sync_queue
		SET status = ?, retry_count = 0, error_message = NULL
		WHERE id = ? AND status = ?
	`, string(QueuePending), itemID, string(QueueDead))
	if err != nil {
		return fmt.Errorf("store: requeue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: requeue item: %w", err)
	}
	if n == 0 {
		return ErrQueueItemNotFound
	}
	return nil
}

// RemapQueueEntity rewrites the entity reference on queued items after a
// create is confirmed and the placeholder ID is replaced by the server ID.
func (s *Store) RemapQueueEntity(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		UPDATE sync_queue SET entity_id = ? WHERE entity_id = ?
	`, newID, oldID)
	if err != nil {
		return fmt.Errorf("store: remap queue entity: %w", err)
	}
	return nil
}

// OpenItemCount returns the number of pending queue items referencing an
// entity. A receipt is synced exactly when this reaches zero after an ack.
func (s *Store) OpenItemCount(entityID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_queue WHERE entity_id = ? AND status = ?
	`, entityID, string(QueuePending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count open items: %w", err)
	}
	return n, nil
}

// openItemCountExcluding is OpenItemCount without one specific item: the one
// the engine is currently draining, which stays pending until its ack.
func (s *Store) openItemCountExcluding(entityID string, itemID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_queue WHERE entity_id = ? AND status = ? AND id <> ?
	`, entityID, string(QueuePending), itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count open items: %w", err)
	}
	return n, nil
}

func scanQueueItems(rows *sql.Rows) ([]QueueItem, error) {
	var items []QueueItem
	for rows.Next() {
		var (
			item        QueueItem
			action      string
			entityID    sql.NullString
			lastRetryAt sql.NullString
			errMsg      sql.NullString
			status      string
			createdAt   string
		)
		err := rows.Scan(
			&item.ID,
			&action,
			&item.EntityType,
			&entityID,
			&item.Payload,
			&item.RetryCount,
			&lastRetryAt,
			&errMsg,
			&status,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan queue item: %w", err)
		}

		item.Action = Action(action)
		item.Status = QueueStatus(status)
		if entityID.Valid {
			item.EntityID = entityID.String
		}
		if lastRetryAt.Valid {
			t, _ := time.Parse(time.RFC3339, lastRetryAt.String)
			item.LastRetryAt = &t
		}
		if errMsg.Valid {
			item.ErrorMessage = errMsg.String
		}
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		items = append(items, item)
	}
	return items, rows.Err()
}
