package pocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action identifies the kind of mutation a queue item carries.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// EntityReceipt is the only entity type synchronized by this engine today.
const EntityReceipt = "receipt"

// Mutation is the typed description of an intended change. Exactly one of
// Create, Update, or Delete is set, matching Action. Mutations are encoded
// once at enqueue time; a queue item whose stored bytes no longer decode is
// dead-lettered rather than retried.
type Mutation struct {
	Action     Action         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Create     *CreatePayload `json:"create,omitempty"`
	Update     *UpdatePayload `json:"update,omitempty"`
	Delete     *DeletePayload `json:"delete,omitempty"`
}

// CreatePayload snapshots the locally created placeholder receipt. The
// idempotency key is fixed at enqueue time so a create retried across drains
// cannot produce duplicates on the server.
type CreatePayload struct {
	IdempotencyKey string  `json:"idempotency_key"`
	Receipt        Receipt `json:"receipt"`
}

// UpdatePayload records which user-editable fields the user touched and their
// new values. BaseVersion is the record's last server-confirmed version at the
// time of the edit, used as the optimistic-concurrency precondition.
type UpdatePayload struct {
	BaseVersion int64          `json:"base_version"`
	Status      *ReceiptStatus `json:"status,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Description *string        `json:"description,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
}

// DeletePayload marks an intended remote deletion. The local record is already
// gone by the time this is queued.
type DeletePayload struct {
	Version   int64     `json:"version"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewCreateMutation builds a create mutation for a local placeholder receipt.
func NewCreateMutation(r Receipt, idempotencyKey string) Mutation {
	return Mutation{
		Action:     ActionCreate,
		EntityType: EntityReceipt,
		EntityID:   r.ID,
		Create:     &CreatePayload{IdempotencyKey: idempotencyKey, Receipt: r},
	}
}

// NewUpdateMutation builds an update mutation from a partial edit.
func NewUpdateMutation(entityID string, baseVersion int64, changes UpdateParams) Mutation {
	return Mutation{
		Action:     ActionUpdate,
		EntityType: EntityReceipt,
		EntityID:   entityID,
		Update: &UpdatePayload{
			BaseVersion: baseVersion,
			Status:      changes.Status,
			Category:    changes.Category,
			Description: changes.Description,
			Notes:       changes.Notes,
			Tags:        changes.Tags,
		},
	}
}

// NewDeleteMutation builds a delete mutation for a previously synced receipt.
func NewDeleteMutation(entityID string, version int64) Mutation {
	return Mutation{
		Action:     ActionDelete,
		EntityType: EntityReceipt,
		EntityID:   entityID,
		Delete:     &DeletePayload{Version: version, DeletedAt: time.Now().UTC()},
	}
}

// Validate checks that the mutation's action tag matches its payload branch.
func (m *Mutation) Validate() error {
	if m.EntityType == "" {
		return fmt.Errorf("mutation: missing entity type")
	}
	switch m.Action {
	case ActionCreate:
		if m.Create == nil {
			return fmt.Errorf("mutation: create action without create payload")
		}
	case ActionUpdate:
		if m.Update == nil {
			return fmt.Errorf("mutation: update action without update payload")
		}
		if m.EntityID == "" {
			return fmt.Errorf("mutation: update action without entity id")
		}
	case ActionDelete:
		if m.Delete == nil {
			return fmt.Errorf("mutation: delete action without delete payload")
		}
		if m.EntityID == "" {
			return fmt.Errorf("mutation: delete action without entity id")
		}
	default:
		return fmt.Errorf("mutation: unknown action %q", m.Action)
	}
	return nil
}

// Encode serializes the mutation for durable storage.
func (m *Mutation) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// DecodeMutation deserializes a stored mutation payload. itemID is used only
// for error context.
func DecodeMutation(itemID int64, data []byte) (*Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &PayloadError{ItemID: itemID, Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &PayloadError{ItemID: itemID, Err: err}
	}
	return &m, nil
}

// Touched lists the user-editable fields this update carries, in a fixed order.
func (p *UpdatePayload) Touched() []string {
	var fields []string
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Category != nil {
		fields = append(fields, "category")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

// Apply writes the touched fields onto a receipt in place.
func (p *UpdatePayload) Apply(r *Receipt) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Tags != nil {
		r.Tags = append([]string(nil), (*p.Tags)...)
	}
}
