package quill

import (
	"errors"
	"fmt"
	"time"
)

// ErrPromptsCancelled signals that the user dismissed prompt collection.
// It is a control-flow signal, not a template error: the pending render is
// aborted before any text is emitted.
var ErrPromptsCancelled = errors.New("prompt collection cancelled")

// UnclosedBlockError reports an opening control tag without a matching close.
type UnclosedBlockError struct {
	Tag string
	Pos int
}

func (e *UnclosedBlockError) Error() string {
	return fmt.Sprintf("unclosed block %q at offset %d", e.Tag, e.Pos)
}

// UnexpectedCloseError reports a closing control tag with no open block.
type UnexpectedCloseError struct {
	Tag string
	Pos int
}

func (e *UnexpectedCloseError) Error() string {
	return fmt.Sprintf("unexpected %q at offset %d: no open block", e.Tag, e.Pos)
}

// EmptyConditionError reports an if/else-if tag with no condition text.
type EmptyConditionError struct {
	Tag string
	Pos int
}

func (e *EmptyConditionError) Error() string {
	return fmt.Sprintf("empty condition in %q at offset %d", e.Tag, e.Pos)
}

// SyntaxError reports malformed condition or expression text, such as
// unbalanced quotes or an unknown operator token.
type SyntaxError struct {
	Expr    string
	Message string
	Pos     int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %q: %s", e.Expr, e.Message)
}

// ReferenceError reports an unresolved variable in strict mode.
type ReferenceError struct {
	Name string
	Pos  int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unresolved variable %q", e.Name)
}

// TypeError reports a value of the wrong shape, such as a non-iterable
// loop source in strict mode.
type TypeError struct {
	Expr    string
	Message string
	Pos     int
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %q: %s", e.Expr, e.Message)
}

// FilterError wraps a failure inside a filter function.
type FilterError struct {
	Filter string
	Cause  error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %q failed: %v", e.Filter, e.Cause)
}

func (e *FilterError) Unwrap() error {
	return e.Cause
}

// PromptOptionsError reports a suggest prompt whose options list is empty
// after parsing.
type PromptOptionsError struct {
	VarName string
	Pos     int
}

func (e *PromptOptionsError) Error() string {
	return fmt.Sprintf("suggest prompt %q must define at least one option", e.VarName)
}

// SandboxTimeoutError reports a script fragment that exceeded its
// evaluation budget.
type SandboxTimeoutError struct {
	Expr    string
	Timeout time.Duration
}

func (e *SandboxTimeoutError) Error() string {
	return fmt.Sprintf("script %q exceeded its evaluation budget (%s)", e.Expr, e.Timeout)
}

// IsStructuralError reports whether err is fatal to rendering regardless
// of mode: unmatched blocks, empty conditions, or invalid prompt tags.
func IsStructuralError(err error) bool {
	var unclosed *UnclosedBlockError
	var unexpected *UnexpectedCloseError
	var empty *EmptyConditionError
	var prompt *PromptOptionsError
	return errors.As(err, &unclosed) ||
		errors.As(err, &unexpected) ||
		errors.As(err, &empty) ||
		errors.As(err, &prompt)
}

// IsReferenceError reports whether err is an unresolved-variable failure.
func IsReferenceError(err error) bool {
	var ref *ReferenceError
	return errors.As(err, &ref)
}

// IsEvaluationError reports whether err arose while evaluating a loop
// source, filter, or script. Evaluation errors are individually catchable
// in best-effort mode.
func IsEvaluationError(err error) bool {
	var typeErr *TypeError
	var filterErr *FilterError
	var sandboxErr *SandboxTimeoutError
	return errors.As(err, &typeErr) ||
		errors.As(err, &filterErr) ||
		errors.As(err, &sandboxErr)
}

// IsSandboxTimeout reports whether err is a script budget violation.
func IsSandboxTimeout(err error) bool {
	var sandboxErr *SandboxTimeoutError
	return errors.As(err, &sandboxErr)
}
