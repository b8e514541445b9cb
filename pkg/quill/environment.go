package quill

import (
	"regexp"
	"strconv"
	"strings"
)

// Environment is a read-mostly scope chain of variable bindings. Loop
// iterations create child scopes that shadow the parent for "this", the
// loop alias, and the @-prefixed loop locals. A nested loop's @index
// shadows the outer loop's @index; the outer value is unreachable by name
// inside the inner body.
type Environment struct {
	parent *Environment
	vars   map[string]Value
}

// NewEnvironment builds a root scope from host data.
func NewEnvironment(data map[string]interface{}) *Environment {
	vars := make(map[string]Value, len(data))
	for k, v := range data {
		vars[k] = FromGo(v)
	}
	return &Environment{vars: vars}
}

// NewEnvironmentFromValues builds a root scope from already-tagged values.
func NewEnvironmentFromValues(vars map[string]Value) *Environment {
	if vars == nil {
		vars = make(map[string]Value)
	}
	return &Environment{vars: vars}
}

// Child creates a scope that shadows this one with the given bindings.
func (e *Environment) Child(bindings map[string]Value) *Environment {
	return &Environment{parent: e, vars: bindings}
}

// Resolve looks up a bare name in the scope chain.
func (e *Environment) Resolve(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return Undefined, false
}

// Lookup resolves a dot path such as "user.address.city" or
// "items[0].name". The head segment resolves through the scope chain;
// the remaining segments navigate map fields and list indices. An
// unresolved head or a missing field yields (Undefined, false).
func (e *Environment) Lookup(path string) (Value, bool) {
	segments, err := splitPath(path)
	if err != nil || len(segments) == 0 {
		return Undefined, false
	}

	if segments[0].name == "" {
		return Undefined, false
	}
	current, ok := e.Resolve(segments[0].name)
	if !ok {
		return Undefined, false
	}

	for _, seg := range segments[1:] {
		if seg.indexed {
			current = current.Index(seg.index)
		} else {
			current = current.Get(seg.name)
		}
		if current.IsUndefined() {
			return Undefined, false
		}
	}
	return current, true
}

// Flatten collapses the scope chain into a single binding set, inner
// scopes winning. Used to hand the sandbox its variable view.
func (e *Environment) Flatten() map[string]Value {
	out := make(map[string]Value)
	var walk func(env *Environment)
	walk = func(env *Environment) {
		if env == nil {
			return
		}
		walk(env.parent)
		for k, v := range env.vars {
			out[k] = v
		}
	}
	walk(e)
	return out
}

type pathSegment struct {
	name    string
	indexed bool
	index   int
}

var bracketPattern = regexp.MustCompile(`^\[(-?\d+|'[^']*'|"[^"]*")\]`)

// splitPath parses a dot path into segments. Bracket notation accepts
// integer indices and quoted keys.
func splitPath(path string) ([]pathSegment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	var segments []pathSegment
	remaining := path
	first := true
	for remaining != "" {
		if !first && strings.HasPrefix(remaining, ".") {
			remaining = remaining[1:]
		}
		first = false

		idx := strings.IndexAny(remaining, ".[")
		var name string
		if idx == -1 {
			name = remaining
			remaining = ""
		} else {
			name = remaining[:idx]
			remaining = remaining[idx:]
		}
		if name != "" {
			segments = append(segments, pathSegment{name: name})
		}

		// Chained brackets each become their own segment.
		for strings.HasPrefix(remaining, "[") {
			m := bracketPattern.FindStringSubmatch(remaining)
			if m == nil {
				return nil, &SyntaxError{Expr: path, Message: "invalid bracket notation"}
			}
			inner := m[1]
			if n, err := strconv.Atoi(inner); err == nil {
				segments = append(segments, pathSegment{indexed: true, index: n})
			} else {
				segments = append(segments, pathSegment{name: strings.Trim(inner, `'"`)})
			}
			remaining = remaining[len(m[0]):]
		}
	}
	return segments, nil
}
