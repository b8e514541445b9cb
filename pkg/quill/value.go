package quill

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant a Value holds.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged variant flowing through conditions, filters, and
// loops. Undefined is distinct from Null: an unresolved variable is
// undefined, an explicit null binding is null. Coercion rules:
//
//   - truthiness: false, 0, "", null, and undefined are falsy; everything
//     else is truthy, including empty lists and maps.
//   - equality: numbers compare numerically across int/float inputs;
//     undefined equals only undefined; null equals only null.
//   - ordering: numeric when both sides are numbers, lexicographic when
//     both sides are strings, otherwise not comparable.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    *OrderedMap
}

// Undefined is the value of an unresolved variable reference.
var Undefined = Value{kind: KindUndefined}

// Null is the explicit null value.
var Null = Value{kind: KindNull}

func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }
func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func ListValue(items []Value) Value {
	return Value{kind: KindList, list: items}
}
func MapValue(m *OrderedMap) Value {
	return Value{kind: KindMap, m: m}
}

// FromGo normalizes a host value into the tagged variant. Plain Go maps
// have no insertion order, so their keys are sorted to keep iteration
// deterministic; use an OrderedMap to control entry order.
func FromGo(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return BoolValue(x)
	case int:
		return NumberValue(float64(x))
	case int8:
		return NumberValue(float64(x))
	case int16:
		return NumberValue(float64(x))
	case int32:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint:
		return NumberValue(float64(x))
	case uint8:
		return NumberValue(float64(x))
	case uint16:
		return NumberValue(float64(x))
	case uint32:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case float32:
		return NumberValue(float64(x))
	case float64:
		return NumberValue(x)
	case string:
		return StringValue(x)
	case []Value:
		return ListValue(x)
	case *OrderedMap:
		return MapValue(x)
	case []interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromGo(item)
		}
		return ListValue(items)
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = StringValue(item)
		}
		return ListValue(items)
	case []int:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = NumberValue(float64(item))
		}
		return ListValue(items)
	case []float64:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = NumberValue(item)
		}
		return ListValue(items)
	case []bool:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = BoolValue(item)
		}
		return ListValue(items)
	case []map[string]interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromGo(item)
		}
		return ListValue(items)
	case map[string]interface{}:
		m := NewOrderedMap()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, FromGo(x[k]))
		}
		return MapValue(m)
	case map[string]string:
		m := NewOrderedMap()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, StringValue(x[k]))
		}
		return MapValue(m)
	default:
		return StringValue(fmt.Sprintf("%v", x))
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Bool returns the boolean payload; false for any other kind.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Number returns the numeric payload, coercing numeric strings.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Str returns the string payload; empty for non-strings.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// List returns the list payload.
func (v Value) List() []Value {
	if v.kind == KindList {
		return v.list
	}
	return nil
}

// Map returns the map payload.
func (v Value) Map() *OrderedMap {
	if v.kind == KindMap {
		return v.m
	}
	return nil
}

// Len returns the element count for lists and maps, the rune count for
// strings, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return v.m.Len()
	case KindString:
		return len([]rune(v.s))
	default:
		return 0
	}
}

// Get resolves a field on a map value. Missing fields and non-map
// receivers yield Undefined.
func (v Value) Get(field string) Value {
	if v.kind != KindMap {
		return Undefined
	}
	val, ok := v.m.Get(field)
	if !ok {
		return Undefined
	}
	return val
}

// Index resolves a list element. Negative indices count from the end.
func (v Value) Index(i int) Value {
	if v.kind != KindList {
		return Undefined
	}
	if i < 0 {
		i = len(v.list) + i
	}
	if i < 0 || i >= len(v.list) {
		return Undefined
	}
	return v.list[i]
}

// IsTruthy applies the documented truthiness rule.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindList, KindMap:
		return true
	default:
		return false
	}
}

// LooseEqual applies the documented loose equality rule.
func (v Value) LooseEqual(other Value) bool {
	if v.kind == KindUndefined || other.kind == KindUndefined {
		return v.kind == other.kind
	}
	if v.kind == KindNull || other.kind == KindNull {
		return v.kind == other.kind
	}
	// Numeric comparison wins when both sides coerce to numbers and at
	// least one side is a real number, so "1" == 1 but "a" != "b" stays
	// a string comparison.
	if v.kind == KindNumber || other.kind == KindNumber {
		ln, lok := v.Number()
		rn, rok := other.Number()
		if lok && rok {
			return ln == rn
		}
		return false
	}
	if v.kind != other.kind {
		if v.kind == KindBool || other.kind == KindBool {
			ln, lok := v.Number()
			rn, rok := other.Number()
			return lok && rok && ln == rn
		}
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].LooseEqual(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m == other.m
	default:
		return false
	}
}

// Compare orders two values: numeric when both sides are numbers (or
// numeric strings), lexicographic when both are strings. The second
// return is false when the pair is not comparable.
func (v Value) Compare(other Value) (int, bool) {
	if v.kind == KindNumber || other.kind == KindNumber {
		ln, lok := v.Number()
		rn, rok := other.Number()
		if !lok || !rok {
			return 0, false
		}
		switch {
		case ln < rn:
			return -1, true
		case ln > rn:
			return 1, true
		default:
			return 0, true
		}
	}
	if v.kind == KindString && other.kind == KindString {
		return strings.Compare(v.s, other.s), true
	}
	return 0, false
}

// Format produces the interpolation text for a value. Undefined and null
// render empty; whole numbers drop the fractional part.
func (v Value) Format() string {
	switch v.kind {
	case KindUndefined, KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.n == float64(int64(v.n)) {
			return strconv.FormatInt(int64(v.n), 10)
		}
		return strconv.FormatFloat(v.n, 'g', 15, 64)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Format()
		}
		return strings.Join(parts, ", ")
	case KindMap:
		parts := make([]string, 0, v.m.Len())
		for _, k := range v.m.Keys() {
			item, _ := v.m.Get(k)
			parts = append(parts, k+": "+item.Format())
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// ToNative converts the value back to plain Go types, for handing
// bindings to the script sandbox. Whole numbers become int64 so they
// meet integer literals in scripts without a type mismatch.
func (v Value) ToNative() interface{} {
	switch v.kind {
	case KindUndefined, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		if v.n == float64(int64(v.n)) {
			return int64(v.n)
		}
		return v.n
	case KindString:
		return v.s
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.ToNative()
		}
		return items
	case KindMap:
		out := make(map[string]interface{}, v.m.Len())
		for _, k := range v.m.Keys() {
			item, _ := v.m.Get(k)
			out[k] = item.ToNative()
		}
		return out
	default:
		return nil
	}
}

// OrderedMap is a string-keyed map that remembers insertion order, so
// keyed loop sources iterate the way the template author wrote them.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

func (m *OrderedMap) Set(key string, value Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	return m.keys
}

func (m *OrderedMap) Len() int {
	return len(m.keys)
}
