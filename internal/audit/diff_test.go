package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNestedValue(t *testing.T) {
	require := require.New(t)
	state := map[string]interface{}{
		"status": "new",
		"contact": map[string]interface{}{
			"email": "traveler@example.com",
			"address": map[string]interface{}{
				"city": "Lisbon",
			},
		},
		"nilValue": nil,
	}

	tests := []struct {
		name     string
		path     string
		expected interface{}
	}{
		{name: "top level", path: "status", expected: "new"},
		{name: "nested", path: "contact.email", expected: "traveler@example.com"},
		{name: "deeply nested", path: "contact.address.city", expected: "Lisbon"},
		{name: "missing key", path: "missing", expected: nil},
		{name: "missing intermediate", path: "missing.email", expected: nil},
		{name: "segment through scalar", path: "status.inner", expected: nil},
		{name: "nil value indistinguishable from absent", path: "nilValue", expected: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(test.expected, NestedValue(state, test.path))
		})
	}
}

func TestValuesEqual(t *testing.T) {
	require := require.New(t)
	engine := NewDiffEngine(nil)

	tests := []struct {
		name  string
		a     interface{}
		b     interface{}
		equal bool
	}{
		{name: "equal strings", a: "x", b: "x", equal: true},
		{name: "unequal strings", a: "x", b: "y", equal: false},
		{name: "both nil", a: nil, b: nil, equal: true},
		{name: "nil vs value", a: nil, b: "x", equal: false},
		{name: "type mismatch string vs int", a: "1", b: 1, equal: false},
		{name: "type mismatch int vs float", a: 1, b: 1.0, equal: false},
		{name: "equal ints", a: 42, b: 42, equal: true},
		{name: "equal slices", a: []interface{}{"a", "b"}, b: []interface{}{"a", "b"}, equal: true},
		{name: "reordered slices", a: []interface{}{"a", "b"}, b: []interface{}{"b", "a"}, equal: false},
		{
			name:  "equal nested maps",
			a:     map[string]interface{}{"a": map[string]interface{}{"b": 1}},
			b:     map[string]interface{}{"a": map[string]interface{}{"b": 1}},
			equal: true,
		},
		{
			name:  "nested maps differing deep",
			a:     map[string]interface{}{"a": map[string]interface{}{"b": 1}},
			b:     map[string]interface{}{"a": map[string]interface{}{"b": 2}},
			equal: false,
		},
		{
			name:  "maps with different key sets",
			a:     map[string]interface{}{"a": 1},
			b:     map[string]interface{}{"b": 1},
			equal: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(test.equal, engine.ValuesEqual(test.a, test.b))
		})
	}
}

func TestDiff(t *testing.T) {
	cfg := TrackedFieldConfig{Fields: []string{"status", "assignedTo", "contact.email"}}
	engine := NewDiffEngine(nil)

	oldState := map[string]interface{}{
		"status":     "new",
		"assignedTo": "agent-1",
		"contact":    map[string]interface{}{"email": "a@example.com"},
		"untracked":  "before",
	}

	t.Run("update emits changed tracked fields in configured order", func(t *testing.T) {
		require := require.New(t)
		newState := map[string]interface{}{
			"status":     "contacted",
			"assignedTo": "agent-1",
			"contact":    map[string]interface{}{"email": "b@example.com"},
			"untracked":  "after",
		}

		changes := engine.Diff(newState, oldState, cfg, OperationUpdate)
		require.Len(changes, 2)
		require.Equal("status", changes[0].Field)
		require.Equal("new", changes[0].OldValue)
		require.Equal("contacted", changes[0].NewValue)
		require.Equal("contact.email", changes[1].Field)
	})

	t.Run("update with no tracked change is empty", func(t *testing.T) {
		require := require.New(t)
		newState := map[string]interface{}{
			"status":     "new",
			"assignedTo": "agent-1",
			"contact":    map[string]interface{}{"email": "a@example.com"},
			"untracked":  "changed a lot",
		}

		require.Empty(engine.Diff(newState, oldState, cfg, OperationUpdate))
	})

	t.Run("missing old state marks tracked fields changed", func(t *testing.T) {
		require := require.New(t)
		newState := map[string]interface{}{
			"status": "new",
		}

		changes := engine.Diff(newState, nil, cfg, OperationUpdate)
		require.Len(changes, 1)
		require.Equal("status", changes[0].Field)
		require.Nil(changes[0].OldValue)
	})

	t.Run("create and delete have no change set", func(t *testing.T) {
		require := require.New(t)
		for _, op := range []Operation{OperationCreate, OperationDelete, OperationSoftDelete} {
			require.Empty(engine.Diff(oldState, nil, cfg, op))
		}
	})
}
