package model

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"github.com/voyago/audittrail/internal/audit"
)

type ChangeRecord struct {
	ID         string                          `gorm:"type:uuid;primary_key"`
	EntityID   string                          `gorm:"type:string;index:idx_entity,priority:2"`
	EntityType string                          `gorm:"type:string;index:idx_entity,priority:1"`
	Operation  string                          `gorm:"type:string;index"`
	Changes    *JSONField[[]audit.FieldChange] `gorm:"type:jsonb"`
	ChangedBy  string                          `gorm:"type:string;index"`
	Metadata   *JSONField[audit.Metadata]      `gorm:"type:jsonb"`
	SessionID  string                          `gorm:"type:string"`
	ChangedAt  time.Time                       `gorm:"index"`
}

func (ChangeRecord) TableName() string {
	return "change_records"
}

func (r ChangeRecord) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}

func NewChangeRecordFromApiResource(resource *audit.ChangeRecord) *ChangeRecord {
	if resource == nil {
		return &ChangeRecord{}
	}
	return &ChangeRecord{
		ID:         resource.ID,
		EntityID:   resource.EntityID,
		EntityType: resource.EntityType,
		Operation:  string(resource.Operation),
		Changes:    MakeJSONField(resource.Changes),
		ChangedBy:  resource.ChangedBy,
		Metadata:   MakeJSONField(resource.Metadata),
		SessionID:  resource.SessionID,
		ChangedAt:  resource.ChangedAt,
	}
}

func (r *ChangeRecord) ToApiResource() *audit.ChangeRecord {
	if r == nil {
		return &audit.ChangeRecord{}
	}
	out := &audit.ChangeRecord{
		ID:         r.ID,
		EntityID:   r.EntityID,
		EntityType: r.EntityType,
		Operation:  audit.Operation(r.Operation),
		ChangedBy:  r.ChangedBy,
		SessionID:  r.SessionID,
		ChangedAt:  r.ChangedAt,
	}
	if r.Changes != nil {
		out.Changes = r.Changes.Data
	}
	if r.Metadata != nil {
		out.Metadata = r.Metadata.Data
	}
	return out
}

func ChangeRecordsToApiResource(records []ChangeRecord, remaining int64) audit.ChangeRecordList {
	items := lo.Map(records, func(record ChangeRecord, _ int) audit.ChangeRecord {
		return *record.ToApiResource()
	})
	return audit.ChangeRecordList{Items: items, Remaining: remaining}
}
