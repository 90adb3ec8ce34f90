package pocket

import "testing"

func TestIsConflicting(t *testing.T) {
	remote := &RemoteReceipt{ID: "r-1", Version: 3}

	if isConflicting(remote, &UpdatePayload{BaseVersion: 3}) {
		t.Error("matching versions flagged as conflict")
	}
	if !isConflicting(remote, &UpdatePayload{BaseVersion: 2}) {
		t.Error("stale base version not flagged as conflict")
	}
	// A newer base than remote is still a mismatch (the record was replaced
	// under us); version equality is the only non-conflict case.
	if !isConflicting(remote, &UpdatePayload{BaseVersion: 4}) {
		t.Error("diverged-forward version not flagged as conflict")
	}
}

func TestMergeUpdate_TouchedFieldsWin(t *testing.T) {
	remote := &RemoteReceipt{
		ID:         "r-1",
		Status:     "PROCESSED",
		VendorName: "Blue Bottle Coffee Co",
		Category:   "uncategorized",
		Notes:      "server notes",
		Version:    7,
	}
	category := "meals"
	pending := &UpdatePayload{BaseVersion: 3, Category: &category}

	req := mergeUpdate(remote, pending)

	// The precondition is rebased onto the authoritative version.
	if req.Version != 7 {
		t.Errorf("Version = %d, want 7", req.Version)
	}
	// The touched field carries the local pending value.
	if req.Category == nil || *req.Category != "meals" {
		t.Errorf("Category = %v, want meals", req.Category)
	}
	// Untouched user-editable fields are not submitted: the remote values
	// stand, so the server's vendor enrichment and notes survive.
	if req.Status != nil {
		t.Errorf("Status submitted without being touched: %v", *req.Status)
	}
	if req.Notes != nil {
		t.Errorf("Notes submitted without being touched: %v", *req.Notes)
	}
	if req.Description != nil || req.Tags != nil {
		t.Error("unexpected fields in merged request")
	}
}

func TestMergeUpdate_AllFields(t *testing.T) {
	remote := &RemoteReceipt{ID: "r-1", Version: 2}
	status := StatusExported
	desc := "Q3 export"
	notes := "approved"
	tags := []string{"export", "q3"}
	category := "office"
	pending := &UpdatePayload{
		BaseVersion: 2,
		Status:      &status,
		Category:    &category,
		Description: &desc,
		Notes:       &notes,
		Tags:        &tags,
	}

	req := mergeUpdate(remote, pending)

	if req.Status == nil || *req.Status != "EXPORTED" {
		t.Errorf("Status = %v", req.Status)
	}
	if req.Tags == nil || len(*req.Tags) != 2 {
		t.Errorf("Tags = %v", req.Tags)
	}

	// The merged tags are a copy, not an alias of the payload slice.
	(*req.Tags)[0] = "mutated"
	if tags[0] != "export" {
		t.Error("merge aliased the pending tags slice")
	}
}
