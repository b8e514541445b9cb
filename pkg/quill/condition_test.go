package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"triple equals", "a === b"},
		{"lone equals", "a = b"},
		{"lone ampersand", "a & b"},
		{"lone pipe", "a | b"},
		{"unbalanced quote", `name == 'abc`},
		{"missing rhs", "a =="},
		{"missing lhs", "== b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.text)
			require.Error(t, err)
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	env := NewEnvironment(map[string]interface{}{
		"name":   "Ada",
		"count":  5,
		"active": true,
		"zero":   0,
		"user":   map[string]interface{}{"role": "admin"},
	})

	tests := []struct {
		expr string
		want bool
	}{
		{"active", true},
		{"zero", false},
		{"missing", false},
		{"name == 'Ada'", true},
		{"name != 'Ada'", false},
		{"count > 3", true},
		{"count >= 5", true},
		{"count < 5", false},
		{"count <= 4", false},
		{"count == '5'", true},
		{"user.role == 'admin'", true},
		{"active && count > 3", true},
		{"active && count > 10", false},
		{"zero || name", true},
		{"zero || missing", false},
		{"missing == undefined", true},
		{"name == undefined", false},
		{"count > 3 && name == 'Ada' || zero", true},
		{"'it || works' == name || active", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := ParseCondition(tt.expr)
			require.NoError(t, err)
			got, err := EvaluateCondition(node, env, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateConditionStrict(t *testing.T) {
	env := NewEnvironment(map[string]interface{}{"count": 1})

	node, err := ParseCondition("missing > 3")
	require.NoError(t, err)
	_, err = EvaluateCondition(node, env, true)
	require.Error(t, err)
	assert.True(t, IsReferenceError(err))

	node, err = ParseCondition("count > 0")
	require.NoError(t, err)
	got, err := EvaluateCondition(node, env, true)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestConditionShortCircuit(t *testing.T) {
	// The right side of a satisfied || is never evaluated, so a strict
	// reference failure there must not surface.
	env := NewEnvironment(map[string]interface{}{"ok": true})
	node, err := ParseCondition("ok || missing")
	require.NoError(t, err)
	got, err := EvaluateCondition(node, env, true)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIndexArithmetic(t *testing.T) {
	env := NewEnvironment(nil).Child(map[string]Value{
		"@index":  NumberValue(2),
		"@length": NumberValue(5),
	})

	tests := []struct {
		expr string
		want bool
	}{
		{"@index + 1 == 3", true},
		{"@index - 1 == 1", true},
		{"@index + 1 < @length", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			node, err := ParseCondition(tt.expr)
			require.NoError(t, err)
			got, err := EvaluateCondition(node, env, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIncomparableOrderingIsFalse(t *testing.T) {
	env := NewEnvironment(map[string]interface{}{"name": "Ada", "count": 3})
	node, err := ParseCondition("name > count")
	require.NoError(t, err)
	got, err := EvaluateCondition(node, env, false)
	require.NoError(t, err)
	assert.False(t, got)
}
