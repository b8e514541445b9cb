package quill

import (
	"fmt"
	"sort"
	"strings"
)

// registerCollectionFilters installs the list filters. Non-list inputs
// fail rather than silently coercing, matching the loop processor's view
// of what is iterable.
func registerCollectionFilters(r *FilterRegistry) {
	r.Register("length", func(in Value, args []Value) (Value, error) {
		switch in.Kind() {
		case KindList, KindMap, KindString:
			return NumberValue(float64(in.Len())), nil
		default:
			return Undefined, fmt.Errorf("length requires a list, map, or string, got %s", in.Kind())
		}
	})

	r.Register("first", func(in Value, args []Value) (Value, error) {
		items, err := requireList("first", in)
		if err != nil {
			return Undefined, err
		}
		if len(items) == 0 {
			return Undefined, nil
		}
		return items[0], nil
	})

	r.Register("last", func(in Value, args []Value) (Value, error) {
		items, err := requireList("last", in)
		if err != nil {
			return Undefined, err
		}
		if len(items) == 0 {
			return Undefined, nil
		}
		return items[len(items)-1], nil
	})

	r.Register("join", func(in Value, args []Value) (Value, error) {
		items, err := requireList("join", in)
		if err != nil {
			return Undefined, err
		}
		sep := ", "
		if len(args) > 0 {
			sep = args[0].Format()
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = item.Format()
		}
		return StringValue(strings.Join(parts, sep)), nil
	})

	r.Register("sort", func(in Value, args []Value) (Value, error) {
		items, err := requireList("sort", in)
		if err != nil {
			return Undefined, err
		}
		out := make([]Value, len(items))
		copy(out, items)
		sort.SliceStable(out, func(i, j int) bool {
			if cmp, ok := out[i].Compare(out[j]); ok {
				return cmp < 0
			}
			return out[i].Format() < out[j].Format()
		})
		return ListValue(out), nil
	})

	r.Register("reverse", func(in Value, args []Value) (Value, error) {
		items, err := requireList("reverse", in)
		if err != nil {
			return Undefined, err
		}
		out := make([]Value, len(items))
		for i, item := range items {
			out[len(items)-1-i] = item
		}
		return ListValue(out), nil
	})

	r.Register("unique", func(in Value, args []Value) (Value, error) {
		items, err := requireList("unique", in)
		if err != nil {
			return Undefined, err
		}
		seen := make(map[string]bool, len(items))
		var out []Value
		for _, item := range items {
			key := item.Kind().String() + ":" + item.Format()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
		return ListValue(out), nil
	})
}

func requireList(filter string, in Value) ([]Value, error) {
	if in.Kind() != KindList {
		return nil, fmt.Errorf("%s requires a list, got %s", filter, in.Kind())
	}
	return in.List(), nil
}
