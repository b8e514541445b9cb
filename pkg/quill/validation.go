package quill

import (
	"fmt"
	"strings"
)

// ValidationIssue is one problem found in a template, with its byte
// offset.
type ValidationIssue struct {
	Message string
	Pos     int
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("offset %d: %s", i.Pos, i.Message)
}

// ValidationResult reports everything wrong with a template at once,
// rather than stopping at the first error the way rendering does.
// Errors would fail a render; warnings would not but deserve attention.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// Validate checks template structure without rendering: block matching,
// condition syntax, prompt tags, and filter references. The registry
// resolves filter names for the unknown-filter warning; nil means the
// built-in set.
func Validate(content string, registry *FilterRegistry) *ValidationResult {
	if registry == nil {
		registry = DefaultFilterRegistry()
	}
	v := &validator{registry: registry}
	v.scan(Tokenize(content))
	v.checkPromptDuplicates(content)
	return &ValidationResult{
		Valid:    len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
	}
}

type validator struct {
	registry *FilterRegistry
	errors   []ValidationIssue
	warnings []ValidationIssue
}

func (v *validator) errorf(pos int, format string, args ...interface{}) {
	v.errors = append(v.errors, ValidationIssue{Message: fmt.Sprintf(format, args...), Pos: pos})
}

func (v *validator) warnf(pos int, format string, args ...interface{}) {
	v.warnings = append(v.warnings, ValidationIssue{Message: fmt.Sprintf(format, args...), Pos: pos})
}

// scan walks the token stream collecting every issue it can, tracking
// open blocks on a stack to pair opens with closes.
func (v *validator) scan(tokens []Token) {
	var stack []Token

	for _, tok := range tokens {
		switch tok.Type {
		case TokenIf:
			if strings.TrimSpace(tok.Value) == "" {
				v.errorf(tok.Pos, "empty condition in %q", tok.Raw)
			} else if _, err := ParseCondition(tok.Value); err != nil {
				v.errorf(tok.Pos, "%v", err)
			}
			stack = append(stack, tok)

		case TokenElseIf:
			if !insideIf(stack) {
				v.errorf(tok.Pos, "%q outside an if block", tok.Raw)
			}
			if strings.TrimSpace(tok.Value) == "" {
				v.errorf(tok.Pos, "empty condition in %q", tok.Raw)
			} else if _, err := ParseCondition(tok.Value); err != nil {
				v.errorf(tok.Pos, "%v", err)
			}

		case TokenElse:
			if !insideIf(stack) {
				v.errorf(tok.Pos, "%q outside an if block", tok.Raw)
			}

		case TokenEndIf:
			if len(stack) == 0 || stack[len(stack)-1].Type != TokenIf {
				v.errorf(tok.Pos, "unexpected %q: no open if block", tok.Raw)
				continue
			}
			stack = stack[:len(stack)-1]

		case TokenEach:
			source := strings.TrimSpace(tok.Value)
			if idx := strings.Index(source, " as "); idx != -1 {
				source = strings.TrimSpace(source[:idx])
			}
			if source == "" {
				v.errorf(tok.Pos, "missing loop source in %q", tok.Raw)
			}
			stack = append(stack, tok)

		case TokenEndEach:
			if len(stack) == 0 || stack[len(stack)-1].Type != TokenEach {
				v.errorf(tok.Pos, "unexpected %q: no open each block", tok.Raw)
				continue
			}
			stack = stack[:len(stack)-1]

		case TokenVariable:
			_, calls, err := parseFilterChain(tok.Value)
			if err != nil {
				v.errorf(tok.Pos, "%v", err)
				continue
			}
			for _, call := range calls {
				if _, ok := v.registry.Get(call.Name); !ok {
					v.warnf(tok.Pos, "unknown filter %q", call.Name)
				}
			}

		case TokenPrompt, TokenSuggest, TokenCheckbox:
			if _, err := parsePromptTag(tok.Value, tok.Pos); err != nil {
				v.errorf(tok.Pos, "%v", err)
			}
		}
	}

	for _, open := range stack {
		v.errorf(open.Pos, "unclosed block %q", open.Raw)
	}
}

func insideIf(stack []Token) bool {
	return len(stack) > 0 && stack[len(stack)-1].Type == TokenIf
}

// checkPromptDuplicates warns when the same variable is prompted more
// than once. Rendering is well-defined (the first definition wins), but
// the duplicate is usually a copy-paste mistake.
func (v *validator) checkPromptDuplicates(content string) {
	all, err := parsePromptOccurrences(content)
	if err != nil {
		return
	}
	seen := make(map[string]PromptDefinition)
	for _, def := range all {
		if first, dup := seen[def.VarName]; dup {
			v.warnf(def.Pos, "prompt variable %q already defined at offset %d; first definition wins", def.VarName, first.Pos)
			continue
		}
		seen[def.VarName] = def
	}
}

// TemplateStatistics counts the constructs of a template, for library
// browsers and tooling.
type TemplateStatistics struct {
	Variables    int
	Conditionals int
	Loops        int
	Scripts      int
	Prompts      PromptStatistics
	FilterUses   map[string]int
	MaxDepth     int
}

// GetStatistics tallies a template's constructs. Malformed regions are
// counted as best as the token stream allows; use Validate to find the
// problems themselves.
func GetStatistics(content string) *TemplateStatistics {
	stats := &TemplateStatistics{FilterUses: make(map[string]int)}

	depth := 0
	for _, tok := range Tokenize(content) {
		switch tok.Type {
		case TokenVariable:
			stats.Variables++
			if _, calls, err := parseFilterChain(tok.Value); err == nil {
				for _, call := range calls {
					stats.FilterUses[call.Name]++
				}
			}
		case TokenIf:
			stats.Conditionals++
			depth++
			if depth > stats.MaxDepth {
				stats.MaxDepth = depth
			}
		case TokenEach:
			stats.Loops++
			depth++
			if depth > stats.MaxDepth {
				stats.MaxDepth = depth
			}
		case TokenEndIf, TokenEndEach:
			if depth > 0 {
				depth--
			}
		case TokenScript:
			stats.Scripts++
		}
	}

	if promptStats, err := PromptStats(content); err == nil {
		stats.Prompts = promptStats
	}
	return stats
}
