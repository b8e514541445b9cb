package quill

import (
	"regexp"
	"strconv"
	"strings"
)

// ConditionKind identifies the variant of a condition node.
type ConditionKind int

const (
	// CondTruthy tests a single value for truthiness.
	CondTruthy ConditionKind = iota
	// CondComparison applies ==, !=, <, >, <=, or >= to two operands.
	CondComparison
	// CondLogical joins two conditions with && or ||.
	CondLogical
)

// ConditionNode is the binary-tree condition AST. Operator precedence is
// fixed: || then && are split first, scanning for the operator token
// outside quoted strings; whatever remains is a comparison or a bare
// truthiness test.
type ConditionNode struct {
	Kind     ConditionKind
	Op       string
	Left     *ConditionNode
	Right    *ConditionNode
	LHS, RHS operand
}

// operand is either a literal value or a variable path. Paths may carry
// the @index inline-arithmetic form ("@index + 1"), which is recognized
// syntactically rather than as a general expression.
type operand struct {
	isLiteral bool
	literal   Value
	path      string
}

var indexArithPattern = regexp.MustCompile(`^(@[A-Za-z]+)\s*([+\-])\s*(\d+)$`)

// ParseCondition parses condition text into a ConditionNode. It fails
// with a SyntaxError on unbalanced quotes or unknown operator tokens and
// with an EmptyConditionError on blank input.
func ParseCondition(text string) (*ConditionNode, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &EmptyConditionError{}
	}
	if err := checkQuotes(text); err != nil {
		return nil, err
	}

	if idx := indexOutsideQuotes(text, "||"); idx >= 0 {
		return parseLogical(text, "||", idx)
	}
	if idx := indexOutsideQuotes(text, "&&"); idx >= 0 {
		return parseLogical(text, "&&", idx)
	}

	op, idx, err := findComparisonOp(text)
	if err != nil {
		return nil, err
	}
	if op != "" {
		lhsText := strings.TrimSpace(text[:idx])
		rhsText := strings.TrimSpace(text[idx+len(op):])
		if lhsText == "" || rhsText == "" {
			return nil, &SyntaxError{Expr: text, Message: "missing operand for " + op}
		}
		lhs, err := parseOperand(lhsText)
		if err != nil {
			return nil, err
		}
		rhs, err := parseOperand(rhsText)
		if err != nil {
			return nil, err
		}
		return &ConditionNode{Kind: CondComparison, Op: op, LHS: lhs, RHS: rhs}, nil
	}

	val, err := parseOperand(text)
	if err != nil {
		return nil, err
	}
	return &ConditionNode{Kind: CondTruthy, LHS: val}, nil
}

func parseLogical(text, op string, idx int) (*ConditionNode, error) {
	left, err := ParseCondition(text[:idx])
	if err != nil {
		return nil, err
	}
	right, err := ParseCondition(text[idx+len(op):])
	if err != nil {
		return nil, err
	}
	return &ConditionNode{Kind: CondLogical, Op: op, Left: left, Right: right}, nil
}

// EvaluateCondition evaluates a condition against an environment. In
// strict mode an unresolved variable raises a ReferenceError; otherwise
// it evaluates as undefined (falsy, equal only to undefined).
func EvaluateCondition(node *ConditionNode, env *Environment, strict bool) (bool, error) {
	switch node.Kind {
	case CondLogical:
		left, err := EvaluateCondition(node.Left, env, strict)
		if err != nil {
			return false, err
		}
		if node.Op == "&&" && !left {
			return false, nil
		}
		if node.Op == "||" && left {
			return true, nil
		}
		return EvaluateCondition(node.Right, env, strict)

	case CondComparison:
		lhs, err := resolveOperand(node.LHS, env, strict)
		if err != nil {
			return false, err
		}
		rhs, err := resolveOperand(node.RHS, env, strict)
		if err != nil {
			return false, err
		}
		switch node.Op {
		case "==":
			return lhs.LooseEqual(rhs), nil
		case "!=":
			return !lhs.LooseEqual(rhs), nil
		default:
			cmp, ok := lhs.Compare(rhs)
			if !ok {
				return false, nil
			}
			switch node.Op {
			case "<":
				return cmp < 0, nil
			case ">":
				return cmp > 0, nil
			case "<=":
				return cmp <= 0, nil
			case ">=":
				return cmp >= 0, nil
			}
			return false, nil
		}

	default:
		val, err := resolveOperand(node.LHS, env, strict)
		if err != nil {
			return false, err
		}
		return val.IsTruthy(), nil
	}
}

// parseOperand classifies one side of a comparison: quoted string,
// boolean/null literal, number, or variable path.
func parseOperand(text string) (operand, error) {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		if (text[0] == '\'' && text[len(text)-1] == '\'') ||
			(text[0] == '"' && text[len(text)-1] == '"') {
			return operand{isLiteral: true, literal: StringValue(text[1 : len(text)-1])}, nil
		}
	}
	switch text {
	case "true":
		return operand{isLiteral: true, literal: BoolValue(true)}, nil
	case "false":
		return operand{isLiteral: true, literal: BoolValue(false)}, nil
	case "null", "nil":
		return operand{isLiteral: true, literal: Null}, nil
	case "undefined":
		return operand{isLiteral: true, literal: Undefined}, nil
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return operand{isLiteral: true, literal: NumberValue(n)}, nil
	}
	return operand{path: text}, nil
}

// resolveOperand resolves an operand against the environment, handling
// the @index inline-arithmetic form.
func resolveOperand(op operand, env *Environment, strict bool) (Value, error) {
	if op.isLiteral {
		return op.literal, nil
	}
	return resolvePathExpr(op.path, env, strict)
}

// resolvePathExpr resolves a variable path, including "@index + N".
func resolvePathExpr(path string, env *Environment, strict bool) (Value, error) {
	if m := indexArithPattern.FindStringSubmatch(path); m != nil {
		base, ok := env.Lookup(m[1])
		if !ok {
			if strict {
				return Undefined, &ReferenceError{Name: m[1]}
			}
			return Undefined, nil
		}
		n, bok := base.Number()
		if !bok {
			return Undefined, nil
		}
		delta, _ := strconv.ParseFloat(m[3], 64)
		if m[2] == "-" {
			delta = -delta
		}
		return NumberValue(n + delta), nil
	}

	val, ok := env.Lookup(path)
	if !ok {
		if strict {
			return Undefined, &ReferenceError{Name: path}
		}
		return Undefined, nil
	}
	return val, nil
}

// checkQuotes verifies that single and double quotes are balanced.
func checkQuotes(text string) error {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
		}
	}
	if quote != 0 {
		return &SyntaxError{Expr: text, Message: "unbalanced quotes"}
	}
	return nil
}

// indexOutsideQuotes returns the first occurrence of op outside quoted
// strings, or -1.
func indexOutsideQuotes(text, op string) int {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if strings.HasPrefix(text[i:], op) {
			return i
		}
	}
	return -1
}

// findComparisonOp locates the first comparison operator outside quotes.
// Longer operators win at each position; ===, lone =, and lone &/| are
// unknown operator tokens and fail.
func findComparisonOp(text string) (string, int, error) {
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, "===") || strings.HasPrefix(rest, "!=="):
			return "", 0, &SyntaxError{Expr: text, Message: "unknown operator " + rest[:3], Pos: i}
		case strings.HasPrefix(rest, "=="):
			return "==", i, nil
		case strings.HasPrefix(rest, "!="):
			return "!=", i, nil
		case strings.HasPrefix(rest, "<="):
			return "<=", i, nil
		case strings.HasPrefix(rest, ">="):
			return ">=", i, nil
		case c == '<':
			return "<", i, nil
		case c == '>':
			return ">", i, nil
		case c == '=':
			return "", 0, &SyntaxError{Expr: text, Message: "unknown operator =", Pos: i}
		case c == '&' || c == '|':
			return "", 0, &SyntaxError{Expr: text, Message: "unknown operator " + string(c), Pos: i}
		}
	}
	return "", 0, nil
}
