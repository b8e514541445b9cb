package quill

import (
	"fmt"
	"strings"
	"unicode"
)

// registerStringFilters installs the built-in string filters.
func registerStringFilters(r *FilterRegistry) {
	r.Register("upper", func(in Value, args []Value) (Value, error) {
		return StringValue(strings.ToUpper(in.Format())), nil
	})

	r.Register("lower", func(in Value, args []Value) (Value, error) {
		return StringValue(strings.ToLower(in.Format())), nil
	})

	r.Register("capitalize", func(in Value, args []Value) (Value, error) {
		s := in.Format()
		if s == "" {
			return StringValue(""), nil
		}
		runes := []rune(s)
		runes[0] = unicode.ToUpper(runes[0])
		return StringValue(string(runes)), nil
	})

	r.Register("trim", func(in Value, args []Value) (Value, error) {
		return StringValue(strings.TrimSpace(in.Format())), nil
	})

	r.Register("truncate", func(in Value, args []Value) (Value, error) {
		if len(args) < 1 {
			return Undefined, fmt.Errorf("truncate requires a length argument")
		}
		n, ok := args[0].Number()
		if !ok || n < 0 {
			return Undefined, fmt.Errorf("truncate length must be a non-negative number")
		}
		runes := []rune(in.Format())
		limit := int(n)
		if len(runes) <= limit {
			return StringValue(string(runes)), nil
		}
		return StringValue(string(runes[:limit]) + "…"), nil
	})

	r.Register("replace", func(in Value, args []Value) (Value, error) {
		if len(args) < 2 {
			return Undefined, fmt.Errorf("replace requires old and new arguments")
		}
		return StringValue(strings.ReplaceAll(in.Format(), args[0].Format(), args[1].Format())), nil
	})

	// default substitutes a fallback when the piped value is falsy, which
	// is how authors guard unresolved variables in non-strict mode.
	r.Register("default", func(in Value, args []Value) (Value, error) {
		if len(args) < 1 {
			return Undefined, fmt.Errorf("default requires a fallback argument")
		}
		if in.IsTruthy() {
			return in, nil
		}
		return args[0], nil
	})
}
