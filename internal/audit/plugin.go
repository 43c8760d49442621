package audit

import (
	"errors"
	"reflect"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const pluginName = "audittrail"

// Plugin binds the orchestrator to gorm's lifecycle callbacks. Tracked
// entities are recognized by implementing TrackableEntity and by having their
// type registered for tracking; everything else passes through untouched.
// Entities are expected to be keyed by an "id" column.
type Plugin struct {
	orchestrator *Orchestrator
	registry     *Registry
	log          logrus.FieldLogger
}

var _ gorm.Plugin = (*Plugin)(nil)

func NewPlugin(orchestrator *Orchestrator, registry *Registry, log logrus.FieldLogger) *Plugin {
	return &Plugin{
		orchestrator: orchestrator,
		registry:     registry,
		log:          log,
	}
}

func (p *Plugin) Name() string {
	return pluginName
}

func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("audittrail:before_update", p.beforeUpdate); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("audittrail:after_update", p.afterUpdate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("audittrail:before_delete", p.beforeDelete); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("audittrail:after_delete", p.afterDelete); err != nil {
		return err
	}
	return db.Callback().Create().After("gorm:create").Register("audittrail:after_create", p.afterCreate)
}

func (p *Plugin) beforeUpdate(db *gorm.DB) {
	p.capturePreImage(db)
}

func (p *Plugin) beforeDelete(db *gorm.DB) {
	p.capturePreImage(db)
}

// capturePreImage point-reads the entity's current persisted state (not the
// update's input) and hands it to the snapshot cache. A miss is non-fatal:
// the mutation proceeds and the post-hook treats the old state as none.
func (p *Plugin) capturePreImage(db *gorm.DB) {
	entity, ok := p.trackedEntity(db)
	if !ok || db.Error != nil {
		return
	}

	ctx := db.Statement.Context
	pre, err := p.loadByID(db, entity)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.log.Debugf("pre-image load for %s/%s: %v", entity.EntityType(), entity.TrackingID(), err)
		}
		return
	}

	p.orchestrator.BeforeMutation(ctx, entity.EntityType(), entity.TrackingID(), pre.State())
}

func (p *Plugin) afterCreate(db *gorm.DB) {
	p.afterHook(db, OperationCreate, false)
}

func (p *Plugin) afterUpdate(db *gorm.DB) {
	p.afterHook(db, OperationUpdate, true)
}

func (p *Plugin) afterDelete(db *gorm.DB) {
	p.afterHook(db, OperationDelete, false)
}

func (p *Plugin) afterHook(db *gorm.DB, op Operation, reload bool) {
	entity, ok := p.trackedEntity(db)
	if !ok {
		return
	}

	ctx := db.Statement.Context
	mc, _ := MutationContextFrom(ctx)

	// A failed or no-op mutation produces no record, but its snapshot must
	// not linger until the sweep gets to it.
	if db.Error != nil || db.RowsAffected == 0 {
		p.orchestrator.snapshots.Clear(entity.TrackingID(), mc.SessionID)
		return
	}

	if reload {
		// Partial updates (Updates with a map) leave the statement's model
		// stale; the row itself is authoritative for the post-image.
		if loaded, err := p.loadByID(db, entity); err == nil {
			entity = loaded
		}
	}

	var tx *gorm.DB
	if _, inTx := db.Statement.ConnPool.(gorm.TxCommitter); inTx {
		tx = db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	}

	if err := p.orchestrator.AfterMutation(ctx, entity, op, tx); err != nil {
		_ = db.AddError(err)
	}
}

func (p *Plugin) trackedEntity(db *gorm.DB) (TrackableEntity, bool) {
	if db.Statement == nil || db.Statement.Model == nil {
		return nil, false
	}
	entity, ok := db.Statement.Model.(TrackableEntity)
	if !ok {
		return nil, false
	}
	if entity.TrackingID() == "" || !p.registry.Tracked(entity.EntityType()) {
		return nil, false
	}
	return entity, true
}

// loadByID reads the entity's current row through a fresh session on the
// same connection, so reads inside a transaction see that transaction's
// writes.
func (p *Plugin) loadByID(db *gorm.DB, entity TrackableEntity) (TrackableEntity, error) {
	entityValue := reflect.ValueOf(entity)
	if entityValue.Kind() != reflect.Pointer || entityValue.IsNil() {
		return nil, gorm.ErrInvalidValue
	}

	dest := reflect.New(entityValue.Type().Elem()).Interface()
	tx := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).WithContext(db.Statement.Context)
	if err := tx.First(dest, "id = ?", entity.TrackingID()).Error; err != nil {
		return nil, err
	}

	loaded, ok := dest.(TrackableEntity)
	if !ok {
		return nil, gorm.ErrInvalidValue
	}
	return loaded, nil
}
