package quill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Options configures one render.
type Options struct {
	// Strict makes unresolved variable references fatal. Non-strict
	// renders re-emit the unresolved tag verbatim.
	Strict bool
	// BestEffort collects evaluation errors (bad loop sources, filter
	// failures, script budget violations) as diagnostics and keeps
	// rendering. Structural errors stay fatal.
	BestEffort bool
	// Collector supplies prompt values. With no collector every prompt
	// falls back to its default.
	Collector PromptCollector
	// Session pre-fills prompts from earlier renders and remembers newly
	// collected values. Values are stored only after collection succeeds.
	Session *Session
	// Registry resolves filter names; nil means the built-in set.
	Registry *FilterRegistry
	// Sandbox evaluates script fragments; nil means the default budget.
	Sandbox *SandboxEvaluator
	// MaxIterations caps one loop expansion; 0 means the config default.
	MaxIterations int
	// Cache holds parsed templates; nil disables caching.
	Cache *TemplateCache
}

// Diagnostic is a non-fatal error recorded during a best-effort render.
type Diagnostic struct {
	Err error
	Pos int
}

// Result is the outcome of a render.
type Result struct {
	Output string
	// Prompts holds the values substituted for prompt variables, from
	// the session, the collector, and tag defaults combined.
	Prompts map[string]string
	// Diagnostics holds the evaluation errors a best-effort render
	// stepped over. Empty on a clean render.
	Diagnostics []Diagnostic
}

// Process runs the full render pipeline: prompt extraction, value
// collection, substitution, parsing, and block evaluation. Collection
// failure or cancellation aborts before any text is produced.
func Process(ctx context.Context, content string, data map[string]interface{}, opts Options) (*Result, error) {
	values, err := collectPromptValues(ctx, content, opts)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		content = ReplacePrompts(content, values)
	}

	blocks, ok := opts.Cache.Get(content)
	if !ok {
		blocks, err = Parse(content)
		if err != nil {
			return nil, err
		}
		opts.Cache.Put(content, blocks)
	}

	// Prompt values also join the environment so a collected value can be
	// tested by a conditional or fed through a filter, not just appear at
	// its own tag. Host-supplied data wins on a name clash.
	env := NewEnvironment(data)
	for name, v := range values {
		if _, ok := env.Resolve(name); !ok {
			env.vars[name] = StringValue(v)
		}
	}

	r := newRenderer(ctx, opts)
	var out strings.Builder
	out.Grow(len(content))
	if err := r.renderBlocks(blocks, env, &out); err != nil {
		return nil, err
	}

	logger().Debug("render complete",
		zap.Int("output_bytes", out.Len()),
		zap.Int("prompts", len(values)),
		zap.Int("diagnostics", len(r.diags)))

	return &Result{Output: out.String(), Prompts: values, Diagnostics: r.diags}, nil
}

// collectPromptValues extracts prompt definitions and resolves each
// variable from the session, then the collector, then the tag default.
// Only freshly collected values are written back to the session, and
// only after the whole collection succeeds.
func collectPromptValues(ctx context.Context, content string, opts Options) (map[string]string, error) {
	defs, err := ParsePrompts(content)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}

	values := make(map[string]string, len(defs))
	var pending []PromptDefinition
	for _, def := range defs {
		if opts.Session != nil {
			if v, ok := opts.Session.Get(def.VarName); ok {
				values[def.VarName] = v
				continue
			}
		}
		pending = append(pending, def)
	}

	if len(pending) > 0 && opts.Collector != nil {
		collected, err := opts.Collector.Collect(ctx, pending)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", ErrPromptsCancelled, err)
			}
			return nil, err
		}
		if opts.Session != nil {
			opts.Session.SetAll(collected)
		}
		for name, v := range collected {
			values[name] = v
		}
	}

	for _, def := range pending {
		if _, ok := values[def.VarName]; !ok {
			values[def.VarName] = def.DefaultValue
		}
	}
	return values, nil
}

type renderer struct {
	ctx      context.Context
	opts     Options
	registry *FilterRegistry
	sandbox  *SandboxEvaluator
	maxIter  int
	diags    []Diagnostic
}

func newRenderer(ctx context.Context, opts Options) *renderer {
	r := &renderer{ctx: ctx, opts: opts, registry: opts.Registry, sandbox: opts.Sandbox, maxIter: opts.MaxIterations}
	if r.registry == nil {
		r.registry = DefaultFilterRegistry()
	}
	if r.sandbox == nil {
		r.sandbox = NewSandboxEvaluator(DefaultSandboxBudget())
	}
	if r.maxIter <= 0 {
		r.maxIter = DefaultConfig().MaxLoopIterations
	}
	return r
}

// recoverable records err as a diagnostic in best-effort mode and
// reports whether rendering may continue.
func (r *renderer) recoverable(err error, pos int) bool {
	if !r.opts.BestEffort || IsStructuralError(err) {
		return false
	}
	r.diags = append(r.diags, Diagnostic{Err: err, Pos: pos})
	return true
}

func (r *renderer) renderBlocks(blocks []Block, env *Environment, out *strings.Builder) error {
	for _, b := range blocks {
		switch block := b.(type) {
		case *LiteralBlock:
			out.WriteString(block.Text)

		case *InterpolationBlock:
			if err := r.renderInterpolation(block, env, out); err != nil {
				if !r.recoverable(err, block.Pos()) {
					return err
				}
				out.WriteString(block.Raw)
			}

		case *ConditionalBlock:
			if err := r.renderConditional(block, env, out); err != nil {
				if !r.recoverable(err, block.Pos()) {
					return err
				}
			}

		case *LoopBlock:
			if err := r.renderLoop(block, env, out); err != nil {
				if !r.recoverable(err, block.Pos()) {
					return err
				}
			}

		case *ScriptBlock:
			text, err := r.sandbox.Evaluate(r.ctx, block.Expr, env.Flatten())
			if err != nil {
				if !r.recoverable(err, block.Pos()) {
					return err
				}
				continue
			}
			out.WriteString(text)

		case *PromptBlock:
			// Prompt substitution runs before parsing in the normal
			// pipeline; a surviving prompt tag renders its default.
			out.WriteString(block.Def.DefaultValue)
		}
	}
	return nil
}

func (r *renderer) renderInterpolation(block *InterpolationBlock, env *Environment, out *strings.Builder) error {
	val, resolved, err := r.resolveExpr(block.Expr, env)
	if err != nil {
		return positionedRef(err, block.Pos())
	}
	if !resolved {
		// Non-strict: a plain interpolation is left as written so the gap
		// is visible in the output. A filter chain instead receives
		// undefined, so guards like default() can fill the gap.
		if len(block.Filters) == 0 {
			out.WriteString(block.Raw)
			return nil
		}
		val = Undefined
	}

	val, err = applyFilterChain(val, block.Filters, env, r.opts.Strict, r.registry)
	if err != nil {
		return positionedRef(err, block.Pos())
	}
	out.WriteString(val.Format())
	return nil
}

// resolveExpr resolves an interpolation expression: a literal, an
// "@index + N" form, or a variable path. The second return reports
// whether the reference resolved; it is always true for literals.
func (r *renderer) resolveExpr(expr string, env *Environment) (Value, bool, error) {
	op, err := parseOperand(expr)
	if err != nil {
		return Undefined, false, err
	}
	if op.isLiteral {
		return op.literal, true, nil
	}

	if m := indexArithPattern.FindStringSubmatch(op.path); m != nil {
		base, ok := env.Lookup(m[1])
		if !ok {
			if r.opts.Strict {
				return Undefined, false, &ReferenceError{Name: m[1]}
			}
			return Undefined, false, nil
		}
		n, nok := base.Number()
		if !nok {
			return Undefined, false, nil
		}
		delta, _ := strconv.ParseFloat(m[3], 64)
		if m[2] == "-" {
			delta = -delta
		}
		return NumberValue(n + delta), true, nil
	}

	val, ok := env.Lookup(op.path)
	if !ok {
		if r.opts.Strict {
			return Undefined, false, &ReferenceError{Name: op.path}
		}
		return Undefined, false, nil
	}
	return val, true, nil
}

func (r *renderer) renderConditional(block *ConditionalBlock, env *Environment, out *strings.Builder) error {
	for _, branch := range block.Branches {
		if branch.Condition == nil {
			return r.renderBlocks(branch.Body, env, out)
		}
		hit, err := EvaluateCondition(branch.Condition, env, r.opts.Strict)
		if err != nil {
			return positionedRef(err, block.Pos())
		}
		if hit {
			return r.renderBlocks(branch.Body, env, out)
		}
	}
	return nil
}

func (r *renderer) renderLoop(block *LoopBlock, env *Environment, out *strings.Builder) error {
	source, ok := env.Lookup(block.Source)
	if !ok {
		if r.opts.Strict {
			return &ReferenceError{Name: block.Source, Pos: block.Pos()}
		}
		return nil
	}

	switch source.Kind() {
	case KindList:
		items := source.List()
		if err := r.checkIterations(block, len(items)); err != nil {
			return err
		}
		for i, item := range items {
			child := env.Child(r.loopBindings(block.Alias, item, i, len(items)))
			if err := r.renderBlocks(block.Body, child, out); err != nil {
				return err
			}
		}
		return nil

	case KindMap:
		m := source.Map()
		keys := m.Keys()
		if err := r.checkIterations(block, len(keys)); err != nil {
			return err
		}
		for i, key := range keys {
			item, _ := m.Get(key)
			bindings := r.loopBindings(block.Alias, item, i, len(keys))
			bindings["@key"] = StringValue(key)
			if err := r.renderBlocks(block.Body, env.Child(bindings), out); err != nil {
				return err
			}
		}
		return nil

	default:
		if r.opts.Strict {
			return &TypeError{
				Expr:    block.Source,
				Message: "loop source is " + source.Kind().String() + ", not a list or map",
				Pos:     block.Pos(),
			}
		}
		return nil
	}
}

func (r *renderer) checkIterations(block *LoopBlock, n int) error {
	if n > r.maxIter {
		return &TypeError{
			Expr:    block.Source,
			Message: fmt.Sprintf("loop would run %d iterations, limit is %d", n, r.maxIter),
			Pos:     block.Pos(),
		}
	}
	return nil
}

// loopBindings builds one iteration's scope. The child scope shadows the
// parent, so a nested loop's @index hides the outer one.
func (r *renderer) loopBindings(alias string, item Value, i, length int) map[string]Value {
	bindings := map[string]Value{
		"this":    item,
		"@index":  NumberValue(float64(i)),
		"@first":  BoolValue(i == 0),
		"@last":   BoolValue(i == length-1),
		"@length": NumberValue(float64(length)),
	}
	if alias != "" {
		bindings[alias] = item
	}
	return bindings
}

// positionedRef stamps a byte offset onto runtime errors that carry one.
func positionedRef(err error, pos int) error {
	var refErr *ReferenceError
	if errors.As(err, &refErr) && refErr.Pos == 0 {
		refErr.Pos = pos
	}
	var typeErr *TypeError
	if errors.As(err, &typeErr) && typeErr.Pos == 0 {
		typeErr.Pos = pos
	}
	return err
}
