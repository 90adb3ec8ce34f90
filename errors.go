package pocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by the Pocket client.
var (
	// ErrNotFound is returned when a receipt is not found.
	ErrNotFound = errors.New("receipt not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a network operation is attempted in
	// offline-only mode.
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrSessionExpired is returned when the authentication token is no
	// longer valid.
	ErrSessionExpired = errors.New("session expired")

	// ErrQueueItemNotFound is returned when a sync queue item does not exist.
	ErrQueueItemNotFound = errors.New("sync queue item not found")

	// ErrInvalidStatus is returned when an invalid receipt status is provided.
	ErrInvalidStatus = errors.New("invalid receipt status")

	// ErrSyncInProgress is returned when a manual drain is requested while
	// another drain is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrStorage wraps local persistence failures encountered mid-drain.
	// The affected queue items stay queued; no retry budget is spent.
	ErrStorage = errors.New("local storage failure")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// RemoteError is returned when a call to the receipt service fails.
// StatusCode is zero when the request never produced an HTTP response
// (timeout, DNS failure, connection refused). Supports Unwrap().
type RemoteError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ConflictError is returned when an update's version precondition is rejected.
// Current carries the authoritative remote representation from the conflict
// response body.
type ConflictError struct {
	Operation string
	Current   *RemoteReceipt
}

func (e *ConflictError) Error() string {
	version := int64(-1)
	if e.Current != nil {
		version = e.Current.Version
	}
	return fmt.Sprintf("remote: %s rejected: version conflict (server version %d)", e.Operation, version)
}

// PayloadError is returned when a queued mutation payload cannot be decoded.
// Retrying cannot help, so the owning queue item is dead-lettered immediately.
type PayloadError struct {
	ItemID int64
	Err    error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("payload: item %d undecodable: %v", e.ItemID, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a network-class failure: the request
// never reached the service, timed out, or the service itself was unavailable
// (5xx). Network-class failures are retried for free on the next drain cycle
// and never increment an item's retry count.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var re *RemoteError
	if errors.As(err, &re) {
		if re.StatusCode == 0 || re.StatusCode >= http.StatusInternalServerError {
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsApplicationError reports whether err is an application-class rejection
// (validation, not-found, authorization). These are surfaced to the caller
// immediately and never queued, since retrying them will never succeed.
// Version conflicts are excluded: they are retryable after a merge.
func IsApplicationError(err error) bool {
	if err == nil {
		return false
	}

	var ce *ConflictError
	if errors.As(err, &ce) {
		return false
	}

	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= 400 && re.StatusCode < 500
	}
	return false
}

// IsConflict reports whether err is a version-precondition rejection.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
