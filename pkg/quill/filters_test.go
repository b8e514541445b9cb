package quill

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applyFilter runs one named built-in against a value.
func applyFilter(t *testing.T, name string, in Value, args ...Value) (Value, error) {
	t.Helper()
	fn, ok := DefaultFilterRegistry().Get(name)
	require.True(t, ok, "filter %q not registered", name)
	return fn(in, args)
}

func TestStringFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		in     Value
		args   []Value
		want   string
	}{
		{"upper", "upper", StringValue("hello"), nil, "HELLO"},
		{"lower", "lower", StringValue("HELLO"), nil, "hello"},
		{"capitalize", "capitalize", StringValue("hello world"), nil, "Hello world"},
		{"trim", "trim", StringValue("  x  "), nil, "x"},
		{"truncate short input", "truncate", StringValue("hi"), []Value{NumberValue(10)}, "hi"},
		{"truncate long input", "truncate", StringValue("hello world"), []Value{NumberValue(5)}, "hello…"},
		{"replace", "replace", StringValue("a-b-c"), []Value{StringValue("-"), StringValue("+")}, "a+b+c"},
		{"default on undefined", "default", Undefined, []Value{StringValue("n/a")}, "n/a"},
		{"default on empty string", "default", StringValue(""), []Value{StringValue("n/a")}, "n/a"},
		{"default passes truthy through", "default", StringValue("v"), []Value{StringValue("n/a")}, "v"},
		{"upper coerces number", "upper", NumberValue(42), nil, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyFilter(t, tt.filter, tt.in, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format())
		})
	}
}

func TestNumberFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		in     Value
		args   []Value
		want   string
	}{
		{"round default", "round", NumberValue(3.567), nil, "4"},
		{"round two digits", "round", NumberValue(3.567), []Value{NumberValue(2)}, "3.57"},
		{"number grouping", "number", NumberValue(1234567), nil, "1,234,567"},
		{"number german locale", "number", NumberValue(1234567), []Value{StringValue("de")}, "1.234.567"},
		{"percent", "percent", NumberValue(0.42), nil, "42%"},
		{"currency usd", "currency", NumberValue(9.5), []Value{StringValue("USD")}, "$ 9.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyFilter(t, tt.filter, tt.in, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format())
		})
	}
}

func TestNumberFilterRejectsNonNumeric(t *testing.T) {
	_, err := applyFilter(t, "round", StringValue("abc"))
	require.Error(t, err)
}

func TestDateFilter(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		args []Value
		want string
	}{
		{"default layout", StringValue("2026-08-24T10:30:00Z"), nil, "2026-08-24"},
		{"custom layout", StringValue("2026-08-24"), []Value{StringValue("DD.MM.YYYY")}, "24.08.2026"},
		{"month name", StringValue("2026-08-24"), []Value{StringValue("MMMM YYYY")}, "August 2026"},
		{"unix seconds", NumberValue(float64(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC).Unix())), nil, "2026-08-24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyFilter(t, "date", tt.in, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format())
		})
	}

	t.Run("unparseable input", func(t *testing.T) {
		_, err := applyFilter(t, "date", StringValue("not a date"))
		require.Error(t, err)
	})
}

func TestCollectionFilters(t *testing.T) {
	list := ListValue([]Value{StringValue("b"), StringValue("a"), StringValue("c"), StringValue("a")})

	tests := []struct {
		name   string
		filter string
		in     Value
		args   []Value
		want   string
	}{
		{"length of list", "length", list, nil, "4"},
		{"length of string", "length", StringValue("héllo"), nil, "5"},
		{"first", "first", list, nil, "b"},
		{"last", "last", list, nil, "a"},
		{"join default", "join", ListValue([]Value{NumberValue(1), NumberValue(2)}), nil, "1, 2"},
		{"join custom", "join", ListValue([]Value{NumberValue(1), NumberValue(2)}), []Value{StringValue("-")}, "1-2"},
		{"sort", "sort", list, nil, "a, a, b, c"},
		{"reverse", "reverse", ListValue([]Value{NumberValue(1), NumberValue(2), NumberValue(3)}), nil, "3, 2, 1"},
		{"unique", "unique", list, nil, "b, a, c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyFilter(t, tt.filter, tt.in, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format())
		})
	}

	t.Run("first of empty list is undefined", func(t *testing.T) {
		got, err := applyFilter(t, "first", ListValue(nil))
		require.NoError(t, err)
		assert.True(t, got.IsUndefined())
	})
}

func TestParseFilterChain(t *testing.T) {
	expr, calls, err := parseFilterChain("name | upper | truncate(5)")
	require.NoError(t, err)
	assert.Equal(t, "name", expr)
	require.Len(t, calls, 2)
	assert.Equal(t, "upper", calls[0].Name)
	assert.Equal(t, "truncate", calls[1].Name)
	require.Len(t, calls[1].Args, 1)

	t.Run("pipe inside quotes is literal", func(t *testing.T) {
		expr, calls, err := parseFilterChain("x | replace('|', '-')")
		require.NoError(t, err)
		assert.Equal(t, "x", expr)
		require.Len(t, calls, 1)
		require.Len(t, calls[0].Args, 2)
	})

	t.Run("missing close paren", func(t *testing.T) {
		_, _, err := parseFilterChain("x | truncate(5")
		require.Error(t, err)
	})

	t.Run("empty segment", func(t *testing.T) {
		_, _, err := parseFilterChain("x | | upper")
		require.Error(t, err)
	})
}

func TestFilterRegistryLastWins(t *testing.T) {
	reg := NewFilterRegistry()
	reg.Register("shout", func(in Value, args []Value) (Value, error) {
		return StringValue("first"), nil
	})
	reg.Register("shout", func(in Value, args []Value) (Value, error) {
		return StringValue("second"), nil
	})

	fn, ok := reg.Get("shout")
	require.True(t, ok)
	got, err := fn(Undefined, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Str())
}

func TestApplyFilterChainUnknownFilter(t *testing.T) {
	env := NewEnvironment(nil)
	_, err := applyFilterChain(StringValue("x"), []FilterCall{{Name: "nope"}}, env, false, DefaultFilterRegistry())
	require.Error(t, err)
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, "nope", filterErr.Filter)
}

func TestFilterErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &FilterError{Filter: "f", Cause: cause}
	assert.ErrorIs(t, err, cause)
}
