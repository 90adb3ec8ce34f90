package pocket

// Conflict resolution for the update path.
//
// Fields partition into two sets. Server-derived fields (vendor name, extracted
// text, computed totals, receipt date) always take the remote value: upstream
// processing owns them and a stale local copy must never clobber them.
// User-editable fields (status, category, description, notes, tags) take the
// local pending value when the queue item touched them, else the remote value.
// Version mismatch is the sole conflict trigger; wall-clock proximity is not
// evidence of anything.

// mergeUpdate builds the update request to submit against the current remote
// state. When versions match there is no conflict and the pending fields go up
// as-is. When they differ, the pending user edits are merged over the remote
// representation and the remote's version becomes the new precondition.
func mergeUpdate(remote *RemoteReceipt, pending *UpdatePayload) *UpdateReceiptRequest {
	req := &UpdateReceiptRequest{Version: remote.Version}

	if pending.Status != nil {
		s := string(*pending.Status)
		req.Status = &s
	}
	if pending.Category != nil {
		req.Category = pending.Category
	}
	if pending.Description != nil {
		req.Description = pending.Description
	}
	if pending.Notes != nil {
		req.Notes = pending.Notes
	}
	if pending.Tags != nil {
		tags := append([]string(nil), (*pending.Tags)...)
		req.Tags = &tags
	}

	return req
}

// isConflicting reports whether the remote state diverged from the version the
// pending edit was based on.
func isConflicting(remote *RemoteReceipt, pending *UpdatePayload) bool {
	return remote.Version != pending.BaseVersion
}
