package quill

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// SandboxBudget bounds a single script evaluation. Either limit tripping
// fails the evaluation with a SandboxTimeoutError instead of hanging the
// render.
type SandboxBudget struct {
	CostLimit uint64
	Timeout   time.Duration
}

// DefaultSandboxBudget mirrors the configuration defaults.
func DefaultSandboxBudget() SandboxBudget {
	return SandboxBudget{CostLimit: 1_000_000, Timeout: 100 * time.Millisecond}
}

// SandboxEvaluator evaluates <% %> script fragments. Expressions compile
// to CEL programs that see only the variable environment handed to each
// call: no file system, network, or host process access exists in the
// evaluation environment. Compiled programs are cached per expression
// and binding-name set.
type SandboxEvaluator struct {
	budget SandboxBudget
	mu     sync.RWMutex
	cache  map[string]cel.Program
}

// NewSandboxEvaluator creates an evaluator with the given budget.
func NewSandboxEvaluator(budget SandboxBudget) *SandboxEvaluator {
	if budget.CostLimit == 0 {
		budget.CostLimit = DefaultSandboxBudget().CostLimit
	}
	if budget.Timeout == 0 {
		budget.Timeout = DefaultSandboxBudget().Timeout
	}
	return &SandboxEvaluator{
		budget: budget,
		cache:  make(map[string]cel.Program),
	}
}

// celIdentPattern limits which binding names become CEL variables.
// Loop locals carry an @ prefix and are deliberately not visible to
// scripts; "this" and the loop alias are.
var celIdentPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Evaluate runs one script fragment against the given bindings and
// returns its stringified result.
func (s *SandboxEvaluator) Evaluate(ctx context.Context, expr string, bindings map[string]Value) (string, error) {
	names := make([]string, 0, len(bindings))
	input := make(map[string]interface{}, len(bindings))
	for name, val := range bindings {
		if !celIdentPattern.MatchString(name) {
			continue
		}
		names = append(names, name)
		input[name] = val.ToNative()
	}
	sort.Strings(names)

	program, err := s.getProgram(expr, names)
	if err != nil {
		return "", err
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.budget.Timeout)
	defer cancel()

	out, _, err := program.ContextEval(evalCtx, input)
	if err != nil {
		if evalCtx.Err() != nil || strings.Contains(err.Error(), "cost limit") {
			return "", &SandboxTimeoutError{Expr: expr, Timeout: s.budget.Timeout}
		}
		return "", &TypeError{Expr: expr, Message: err.Error()}
	}

	return formatCELResult(out), nil
}

// getProgram compiles or retrieves a cached program. The cache key
// includes the binding-name set because the declared variables are part
// of the compiled environment.
func (s *SandboxEvaluator) getProgram(expr string, names []string) (cel.Program, error) {
	key := expr + "\x00" + strings.Join(names, ",")

	s.mu.RLock()
	if program, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return program, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if program, ok := s.cache[key]; ok {
		return program, nil
	}

	opts := make([]cel.EnvOption, 0, len(names)+8)
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	// Whole-number bindings arrive as ints (see Value.ToNative); authors
	// still write decimal literals, so comparisons and arithmetic must
	// work across int and double.
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	opts = append(opts, sandboxHelpers()...)

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("sandbox environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &SyntaxError{Expr: expr, Message: issues.Err().Error()}
	}

	// ContextEval drives interruption; the frequency bounds how long a
	// runaway comprehension runs between checks.
	program, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(s.budget.CostLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("sandbox program: %w", err)
	}

	s.cache[key] = program
	return s.cache[key], nil
}

// sandboxHelpers is the fixed allow-list of math helpers available to
// scripts beyond the CEL standard functions.
func sandboxHelpers() []cel.EnvOption {
	unary := func(name string, fn func(float64) float64) cel.EnvOption {
		return cel.Function(name,
			cel.Overload(name+"_dyn", []*cel.Type{cel.DynType}, cel.DoubleType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					n, ok := celToFloat(arg)
					if !ok {
						return types.NewErr("%s requires a numeric argument", name)
					}
					return types.Double(fn(n))
				})))
	}
	binary := func(name string, fn func(a, b float64) float64) cel.EnvOption {
		return cel.Function(name,
			cel.Overload(name+"_dyn_dyn", []*cel.Type{cel.DynType, cel.DynType}, cel.DoubleType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					a, aok := celToFloat(lhs)
					b, bok := celToFloat(rhs)
					if !aok || !bok {
						return types.NewErr("%s requires numeric arguments", name)
					}
					return types.Double(fn(a, b))
				})))
	}

	// The standard operators only accept matching numeric types; these
	// overloads let int bindings meet double literals and vice versa.
	arith := func(op, name string, fn func(a, b float64) float64) cel.EnvOption {
		bind := cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
			a, aok := celToFloat(lhs)
			b, bok := celToFloat(rhs)
			if !aok || !bok {
				return types.NewErr("%s requires numeric arguments", name)
			}
			return types.Double(fn(a, b))
		})
		return cel.Function(op,
			cel.Overload(name+"_int_double", []*cel.Type{cel.IntType, cel.DoubleType}, cel.DoubleType, bind),
			cel.Overload(name+"_double_int", []*cel.Type{cel.DoubleType, cel.IntType}, cel.DoubleType, bind),
		)
	}

	return []cel.EnvOption{
		binary("min", math.Min),
		binary("max", math.Max),
		unary("abs", math.Abs),
		unary("round", math.Round),
		unary("floor", math.Floor),
		unary("ceil", math.Ceil),
		arith("_+_", "add", func(a, b float64) float64 { return a + b }),
		arith("_-_", "subtract", func(a, b float64) float64 { return a - b }),
		arith("_*_", "multiply", func(a, b float64) float64 { return a * b }),
		arith("_/_", "divide", func(a, b float64) float64 { return a / b }),
	}
}

func celToFloat(v ref.Val) (float64, bool) {
	switch x := v.Value().(type) {
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// formatCELResult stringifies an evaluation result through the engine's
// value formatting rules.
func formatCELResult(out ref.Val) string {
	return FromGo(normalizeCELValue(out)).Format()
}

func normalizeCELValue(v ref.Val) interface{} {
	switch x := v.Value().(type) {
	case []ref.Val:
		items := make([]interface{}, len(x))
		for i, item := range x {
			items[i] = normalizeCELValue(item)
		}
		return items
	case map[ref.Val]ref.Val:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[fmt.Sprintf("%v", k.Value())] = normalizeCELValue(item)
		}
		return out
	default:
		return x
	}
}
