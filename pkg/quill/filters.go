package quill

import (
	"fmt"
	"strings"
	"sync"
)

// FilterFunc is a pure transform applied to an interpolated value.
type FilterFunc func(in Value, args []Value) (Value, error)

// FilterRegistry maps filter names to transform functions. Registration
// is last-write-wins: user filters may override built-ins by name, which
// is the extensibility contract rather than accidental shadowing.
type FilterRegistry struct {
	mu      sync.RWMutex
	filters map[string]FilterFunc
}

// NewFilterRegistry creates an empty registry.
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{filters: make(map[string]FilterFunc)}
}

// Register adds or replaces a filter.
func (r *FilterRegistry) Register(name string, fn FilterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = fn
}

// Get retrieves a filter by name.
func (r *FilterRegistry) Get(name string) (FilterFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[name]
	return fn, ok
}

// Names returns all registered filter names.
func (r *FilterRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	return names
}

var (
	defaultRegistry     *FilterRegistry
	defaultRegistryOnce sync.Once
)

// DefaultFilterRegistry returns the shared registry with all built-in
// filters installed.
func DefaultFilterRegistry() *FilterRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewFilterRegistry()
		registerStringFilters(defaultRegistry)
		registerNumberFilters(defaultRegistry)
		registerDateFilters(defaultRegistry)
		registerCollectionFilters(defaultRegistry)
	})
	return defaultRegistry
}

// FilterCall is one parsed link of a pipe chain.
type FilterCall struct {
	Name string
	Args []operand
}

// parseFilterChain splits "expr | name(arg) | name2" into the leading
// expression and its filter calls. Pipes inside quoted strings are left
// alone.
func parseFilterChain(content string) (string, []FilterCall, error) {
	segments := splitOutsideQuotes(content, '|')
	expr := strings.TrimSpace(segments[0])
	if len(segments) == 1 {
		return expr, nil, nil
	}

	calls := make([]FilterCall, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return "", nil, &SyntaxError{Expr: content, Message: "empty filter segment"}
		}
		call, err := parseFilterCall(seg)
		if err != nil {
			return "", nil, err
		}
		calls = append(calls, call)
	}
	return expr, calls, nil
}

func parseFilterCall(seg string) (FilterCall, error) {
	open := strings.IndexByte(seg, '(')
	if open == -1 {
		return FilterCall{Name: seg}, nil
	}
	if !strings.HasSuffix(seg, ")") {
		return FilterCall{}, &SyntaxError{Expr: seg, Message: "missing ')' in filter call"}
	}
	name := strings.TrimSpace(seg[:open])
	if name == "" {
		return FilterCall{}, &SyntaxError{Expr: seg, Message: "missing filter name"}
	}
	argsText := seg[open+1 : len(seg)-1]
	if err := checkQuotes(argsText); err != nil {
		return FilterCall{}, err
	}

	var args []operand
	if strings.TrimSpace(argsText) != "" {
		for _, argText := range splitOutsideQuotes(argsText, ',') {
			arg, err := parseOperand(argText)
			if err != nil {
				return FilterCall{}, err
			}
			args = append(args, arg)
		}
	}
	return FilterCall{Name: name, Args: args}, nil
}

// applyFilterChain threads a value through each filter left to right.
func applyFilterChain(in Value, calls []FilterCall, env *Environment, strict bool, registry *FilterRegistry) (Value, error) {
	current := in
	for _, call := range calls {
		fn, ok := registry.Get(call.Name)
		if !ok {
			return Undefined, &FilterError{Filter: call.Name, Cause: fmt.Errorf("unknown filter")}
		}
		args := make([]Value, len(call.Args))
		for i, arg := range call.Args {
			val, err := resolveOperand(arg, env, strict)
			if err != nil {
				return Undefined, err
			}
			args[i] = val
		}
		out, err := fn(current, args)
		if err != nil {
			return Undefined, &FilterError{Filter: call.Name, Cause: err}
		}
		current = out
	}
	return current, nil
}

// splitOutsideQuotes splits on sep, ignoring separators inside quoted
// strings.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
