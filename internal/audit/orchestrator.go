package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Orchestrator drives the pre-capture -> mutate -> post-capture -> diff ->
// persist sequence for tracked entities. It holds no per-mutation state of
// its own; in-flight pre-images live in the injected SnapshotCache, so one
// Orchestrator serves all concurrent mutations.
type Orchestrator struct {
	registry  *Registry
	snapshots *SnapshotCache
	differ    *DiffEngine
	recorder  *Recorder
	log       logrus.FieldLogger
}

func NewOrchestrator(registry *Registry, snapshots *SnapshotCache, differ *DiffEngine, recorder *Recorder, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		snapshots: snapshots,
		differ:    differ,
		recorder:  recorder,
		log:       log,
	}
}

// BeforeMutation caches the entity's current persisted state ahead of an
// update or delete, keyed by the session on the context. Create has no
// pre-capture; the old state of a created entity is defined as none.
func (o *Orchestrator) BeforeMutation(ctx context.Context, entityType, entityID string, preImage map[string]interface{}) {
	if !o.registry.Tracked(entityType) {
		return
	}
	mc, _ := MutationContextFrom(ctx)
	o.snapshots.Store(entityID, preImage, mc.SessionID)
}

// AfterMutation consumes the pre-image captured for this entity and session,
// computes the tracked-field change set and persists a change record. The
// snapshot entry is cleared before anything else can fail, so no exit path
// leaves it behind. An update whose tracked fields are all unchanged is
// skipped; that is expected, not an error.
func (o *Orchestrator) AfterMutation(ctx context.Context, entity TrackableEntity, op Operation, tx *gorm.DB) error {
	cfg, ok := o.registry.Config(entity.EntityType())
	if !ok {
		return nil
	}

	mc, _ := MutationContextFrom(ctx)

	entityID := entity.TrackingID()
	oldState, found := o.snapshots.Get(entityID, mc.SessionID)
	o.snapshots.Clear(entityID, mc.SessionID)
	if !found && op != OperationCreate {
		// The TTL sweep may have beaten a slow request; proceed with no
		// old state rather than failing the mutation.
		o.log.Debugf("no pre-image for %s/%s (session %q)", entity.EntityType(), entityID, mc.SessionID)
	}

	if op == OperationDelete && isSoftDeleted(oldState, cfg.softDeleteField()) {
		// Finalizing a row that was already soft-deleted.
		op = OperationSoftDelete
	}

	changes := o.differ.Diff(entity.State(), oldState, cfg, op)
	if op == OperationUpdate && len(changes) == 0 {
		return nil
	}

	return o.recorder.Persist(ctx, o.buildRecord(entity, op, changes, mc), tx)
}

// LogChange is the escape hatch for call sites that bypass the standard
// lifecycle hooks. The prior state is handed in directly instead of being
// read from the snapshot cache.
func (o *Orchestrator) LogChange(ctx context.Context, entity TrackableEntity, op Operation, priorState map[string]interface{}, tx *gorm.DB) error {
	cfg, ok := o.registry.Config(entity.EntityType())
	if !ok {
		return nil
	}

	mc, _ := MutationContextFrom(ctx)

	if op == OperationDelete && isSoftDeleted(priorState, cfg.softDeleteField()) {
		op = OperationSoftDelete
	}

	changes := o.differ.Diff(entity.State(), priorState, cfg, op)
	if op == OperationUpdate && len(changes) == 0 {
		return nil
	}

	return o.recorder.Persist(ctx, o.buildRecord(entity, op, changes, mc), tx)
}

func (o *Orchestrator) buildRecord(entity TrackableEntity, op Operation, changes []FieldChange, mc MutationContext) *ChangeRecord {
	return &ChangeRecord{
		EntityID:   entity.TrackingID(),
		EntityType: entity.EntityType(),
		Operation:  op,
		Changes:    changes,
		ChangedBy:  mc.Actor,
		Metadata: Metadata{
			IP:        mc.IP,
			UserAgent: mc.UserAgent,
			Location:  mc.Location,
		},
		SessionID: mc.SessionID,
	}
}

// isSoftDeleted inspects the pre-image's deletion flag. The post-image is
// useless here: for a hard delete the row is already gone.
func isSoftDeleted(state map[string]interface{}, field string) bool {
	if state == nil {
		return false
	}
	value := NestedValue(state, field)
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case time.Time:
		return !v.IsZero()
	case *time.Time:
		return v != nil && !v.IsZero()
	case gorm.DeletedAt:
		return v.Valid
	case *gorm.DeletedAt:
		return v != nil && v.Valid
	default:
		// Any other non-nil marker counts as set.
		return true
	}
}
