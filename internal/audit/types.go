package audit

import (
	"time"
)

// Operation classifies the effect a mutation had on an entity.
type Operation string

const (
	OperationCreate     Operation = "create"
	OperationUpdate     Operation = "update"
	OperationDelete     Operation = "delete"
	OperationSoftDelete Operation = "soft_delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationSoftDelete:
		return true
	default:
		return false
	}
}

// FieldChange describes one tracked field's before/after values.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"oldValue"`
	NewValue interface{} `json:"newValue"`
}

// Metadata carries request-level context captured alongside a change.
type Metadata struct {
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Location  string            `json:"location,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// ChangeRecord is the immutable description of one mutation's field-level
// effects. Records are only ever created and purged, never updated.
type ChangeRecord struct {
	ID         string        `json:"id"`
	EntityID   string        `json:"entityId"`
	EntityType string        `json:"entityType"`
	Operation  Operation     `json:"operation"`
	Changes    []FieldChange `json:"changes,omitempty"`
	ChangedBy  string        `json:"changedBy"`
	Metadata   Metadata      `json:"metadata"`
	SessionID  string        `json:"sessionId,omitempty"`
	ChangedAt  time.Time     `json:"changedAt"`
}

// ChangeRecordList is a page of records plus the total remaining count.
type ChangeRecordList struct {
	Items     []ChangeRecord `json:"items"`
	Remaining int64          `json:"remaining"`
}

// TrackableEntity is the capability an entity must expose to participate in
// change tracking. State returns the entity's fields as a nested map keyed the
// way the tracked-field paths address them; implementations must return data
// owned by the entity, the tracking layer deep-copies before caching.
type TrackableEntity interface {
	TrackingID() string
	EntityType() string
	State() map[string]interface{}
}
