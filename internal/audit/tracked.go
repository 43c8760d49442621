package audit

import (
	"sync"
)

const defaultSoftDeleteField = "isDeleted"

// TrackedFieldConfig names which dotted field paths of one entity type are
// observed for changes. Paths are compared in the order configured here; that
// order also fixes the order of emitted FieldChange entries.
type TrackedFieldConfig struct {
	Fields []string
	// SoftDeleteField is the pre-image path inspected to tell a soft delete
	// from a hard one. Defaults to "isDeleted".
	SoftDeleteField string
}

func (c TrackedFieldConfig) softDeleteField() string {
	if c.SoftDeleteField == "" {
		return defaultSoftDeleteField
	}
	return c.SoftDeleteField
}

// Registry maps entity-type names to their tracking configuration. An entity
// type absent from the registry never produces a change record.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TrackedFieldConfig
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TrackedFieldConfig)}
}

// EnableTracking registers or replaces the tracking configuration for an
// entity type. The Fields slice is copied so later caller mutation cannot
// reorder the configured paths.
func (r *Registry) EnableTracking(entityType string, cfg TrackedFieldConfig) {
	fields := make([]string, len(cfg.Fields))
	copy(fields, cfg.Fields)
	cfg.Fields = fields

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[entityType] = cfg
}

func (r *Registry) Config(entityType string) (TrackedFieldConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.types[entityType]
	return cfg, ok
}

func (r *Registry) Tracked(entityType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[entityType]
	return ok
}
