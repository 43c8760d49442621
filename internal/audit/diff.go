package audit

import (
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"
)

// DiffEngine computes field-level change sets between two entity states,
// restricted to an entity type's tracked paths.
type DiffEngine struct {
	log logrus.FieldLogger
}

func NewDiffEngine(log logrus.FieldLogger) *DiffEngine {
	return &DiffEngine{log: log}
}

// NestedValue walks a dotted path segment by segment through a nested state
// map. It returns nil when any intermediate segment is missing or not a map.
// A key present with a nil value and an absent key both yield nil; callers
// cannot tell the two apart.
func NestedValue(root map[string]interface{}, path string) interface{} {
	var current interface{} = root
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = node[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// ValuesEqual reports structural equality of two values. Values of different
// dynamic types are always unequal.
func (e *DiffEngine) ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	v1 := reflect.ValueOf(a)
	v2 := reflect.ValueOf(b)

	if v1.Type() != v2.Type() {
		return false
	}

	return deepValueEqual(v1, v2, make(map[visit]bool))
}

// Diff emits one FieldChange per tracked path whose extracted values differ,
// in the order the paths were configured. Create and delete operations have
// no meaningful before/after at this layer and produce an empty set.
func (e *DiffEngine) Diff(newState, oldState map[string]interface{}, cfg TrackedFieldConfig, op Operation) []FieldChange {
	if op != OperationUpdate {
		return nil
	}

	changes := []FieldChange{}
	for _, path := range cfg.Fields {
		oldValue := NestedValue(oldState, path)
		newValue := NestedValue(newState, path)
		if !e.compare(path, oldValue, newValue) {
			changes = append(changes, FieldChange{Field: path, OldValue: oldValue, NewValue: newValue})
		}
	}
	return changes
}

// compare guards ValuesEqual against reflection panics on exotic values. A
// field that cannot be compared is reported as changed: over-recording beats
// silently dropping an audit entry.
func (e *DiffEngine) compare(path string, oldValue, newValue interface{}) (equal bool) {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Warnf("comparing tracked field %q: %v", path, r)
			}
			equal = false
		}
	}()
	return e.ValuesEqual(oldValue, newValue)
}

type visit struct {
	a1  uintptr
	a2  uintptr
	typ reflect.Type
}

func deepValueEqual(v1, v2 reflect.Value, visited map[visit]bool) bool {
	if !v1.IsValid() || !v2.IsValid() {
		return v1.IsValid() == v2.IsValid()
	}
	if v1.Type() != v2.Type() {
		return false
	}

	// Cycle detection
	if v1.CanAddr() && v2.CanAddr() {
		addr1 := v1.UnsafeAddr()
		addr2 := v2.UnsafeAddr()
		if addr1 > addr2 {
			addr1, addr2 = addr2, addr1
		}
		v := visit{addr1, addr2, v1.Type()}
		if visited[v] {
			return true
		}
		visited[v] = true
	}

	switch v1.Kind() {
	case reflect.Array:
		for i := 0; i < v1.Len(); i++ {
			if !deepValueEqual(v1.Index(i), v2.Index(i), visited) {
				return false
			}
		}
		return true
	case reflect.Slice:
		return sliceEqual(v1, v2, visited)
	case reflect.Interface:
		if v1.IsNil() || v2.IsNil() {
			return v1.IsNil() == v2.IsNil()
		}
		return deepValueEqual(v1.Elem(), v2.Elem(), visited)
	case reflect.Pointer:
		if v1.Pointer() == v2.Pointer() {
			return true
		}
		return deepValueEqual(v1.Elem(), v2.Elem(), visited)
	case reflect.Struct:
		for i := 0; i < v1.NumField(); i++ {
			if !deepValueEqual(v1.Field(i), v2.Field(i), visited) {
				return false
			}
		}
		return true
	case reflect.Map:
		return mapEqual(v1, v2, visited)
	case reflect.Func:
		return v1.IsNil() && v2.IsNil()
	default:
		return basicEqual(v1, v2)
	}
}

func sliceEqual(v1, v2 reflect.Value, visited map[visit]bool) bool {
	if v1.IsNil() != v2.IsNil() {
		return false
	}
	if v1.Len() != v2.Len() {
		return false
	}
	if v1.Pointer() == v2.Pointer() {
		return true
	}

	if v1.Type().Elem().Kind() == reflect.Uint8 {
		return string(v1.Bytes()) == string(v2.Bytes())
	}

	for i := 0; i < v1.Len(); i++ {
		if !deepValueEqual(v1.Index(i), v2.Index(i), visited) {
			return false
		}
	}
	return true
}

func mapEqual(v1, v2 reflect.Value, visited map[visit]bool) bool {
	if v1.IsNil() != v2.IsNil() {
		return false
	}
	if v1.Len() != v2.Len() {
		return false
	}
	if v1.Pointer() == v2.Pointer() {
		return true
	}

	for _, k := range v1.MapKeys() {
		val1 := v1.MapIndex(k)
		val2 := v2.MapIndex(k)
		if !val2.IsValid() || !deepValueEqual(val1, val2, visited) {
			return false
		}
	}
	return true
}

func basicEqual(v1, v2 reflect.Value) bool {
	switch v1.Kind() {
	case reflect.Bool:
		return v1.Bool() == v2.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v1.Int() == v2.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v1.Uint() == v2.Uint()
	case reflect.Float32, reflect.Float64:
		return v1.Float() == v2.Float()
	case reflect.Complex64, reflect.Complex128:
		return v1.Complex() == v2.Complex()
	case reflect.String:
		return v1.String() == v2.String()
	default:
		return false
	}
}
