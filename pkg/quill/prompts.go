package quill

import (
	"context"
	"strings"
)

// PromptType identifies how a prompt is asked.
type PromptType string

const (
	PromptText     PromptType = "text"
	PromptSuggest  PromptType = "suggest"
	PromptCheckbox PromptType = "checkbox"
)

// promptKeywords maps the tag keyword (the text before the first colon)
// to its prompt type. The tokenizer classifies prompt tags off the same
// table.
var promptKeywords = map[string]PromptType{
	"prompt":   PromptText,
	"suggest":  PromptSuggest,
	"checkbox": PromptCheckbox,
}

// PromptDefinition is one value request extracted from a template.
// DefaultValue is always textual; checkbox defaults are "true"/"false".
type PromptDefinition struct {
	Type         PromptType
	VarName      string
	Question     string
	DefaultValue string
	Options      []string
	Pos          int
}

// PromptCollector is the host-supplied collaborator that asks the user
// for prompt values. Collection is inherently asynchronous; ctx
// cancellation or ErrPromptsCancelled aborts the render with no partial
// substitution applied.
type PromptCollector interface {
	Collect(ctx context.Context, defs []PromptDefinition) (map[string]string, error)
}

// PromptCollectorFunc adapts a function to the PromptCollector interface.
type PromptCollectorFunc func(ctx context.Context, defs []PromptDefinition) (map[string]string, error)

func (f PromptCollectorFunc) Collect(ctx context.Context, defs []PromptDefinition) (map[string]string, error) {
	return f(ctx, defs)
}

// ParsePrompts extracts prompt definitions in first-occurrence order,
// de-duplicated by variable name (first occurrence wins). A suggest tag
// with no options is a hard error.
func ParsePrompts(content string) ([]PromptDefinition, error) {
	all, err := parsePromptOccurrences(content)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	var defs []PromptDefinition
	for _, def := range all {
		if seen[def.VarName] {
			continue
		}
		seen[def.VarName] = true
		defs = append(defs, def)
	}
	return defs, nil
}

// parsePromptOccurrences returns every prompt tag occurrence, including
// duplicates, for validation to inspect.
func parsePromptOccurrences(content string) ([]PromptDefinition, error) {
	var defs []PromptDefinition
	for _, tok := range Tokenize(content) {
		switch tok.Type {
		case TokenPrompt, TokenSuggest, TokenCheckbox:
			def, err := parsePromptTag(tok.Value, tok.Pos)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		}
	}
	return defs, nil
}

// parsePromptTag parses the colon-separated tag body:
//
//	prompt:varName:question[:default]
//	suggest:varName:question:opt1,opt2,...[:default]
//	checkbox:varName:question[:defaultBool]
func parsePromptTag(content string, pos int) (PromptDefinition, error) {
	parts := strings.Split(content, ":")
	if len(parts) < 3 || strings.TrimSpace(parts[1]) == "" {
		return PromptDefinition{}, &SyntaxError{
			Expr:    content,
			Message: "prompt tag needs a variable name and a question",
			Pos:     pos,
		}
	}

	kind, ok := promptKeywords[parts[0]]
	if !ok {
		return PromptDefinition{}, &SyntaxError{
			Expr:    content,
			Message: "unknown prompt keyword " + parts[0],
			Pos:     pos,
		}
	}
	def := PromptDefinition{
		Type:     kind,
		VarName:  strings.TrimSpace(parts[1]),
		Question: strings.TrimSpace(parts[2]),
		Pos:      pos,
	}

	switch kind {
	case PromptText:
		if len(parts) > 3 {
			def.DefaultValue = strings.TrimSpace(strings.Join(parts[3:], ":"))
		}

	case PromptSuggest:
		if len(parts) > 3 {
			for _, opt := range strings.Split(parts[3], ",") {
				if opt = strings.TrimSpace(opt); opt != "" {
					def.Options = append(def.Options, opt)
				}
			}
		}
		if len(def.Options) == 0 {
			return PromptDefinition{}, &PromptOptionsError{VarName: def.VarName, Pos: pos}
		}
		if len(parts) > 4 {
			def.DefaultValue = strings.TrimSpace(strings.Join(parts[4:], ":"))
		}
		if def.DefaultValue == "" {
			def.DefaultValue = def.Options[0]
		}

	case PromptCheckbox:
		def.DefaultValue = "false"
		if len(parts) > 3 {
			if parseBoolish(parts[3]) {
				def.DefaultValue = "true"
			}
		}
	}

	return def, nil
}

// parseBoolish accepts "true", "1", and "yes" case-insensitively.
func parseBoolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// ReplacePrompts substitutes every prompt tag occurrence with the
// collected value for its variable, or the tag's own default. This is
// purely syntactic and runs before block evaluation, so a prompt-filled
// value can be tested by a later conditional.
func ReplacePrompts(content string, values map[string]string) string {
	var out strings.Builder
	out.Grow(len(content))

	for _, tok := range Tokenize(content) {
		switch tok.Type {
		case TokenPrompt, TokenSuggest, TokenCheckbox:
			def, err := parsePromptTag(tok.Value, tok.Pos)
			if err != nil {
				out.WriteString(tok.Raw)
				continue
			}
			if v, ok := values[def.VarName]; ok {
				out.WriteString(v)
			} else {
				out.WriteString(def.DefaultValue)
			}
		case TokenText:
			out.WriteString(tok.Value)
		default:
			out.WriteString(tok.Raw)
		}
	}

	return out.String()
}

// PromptStatistics summarizes the prompt tags of a template, for
// tooling; rendering does not consume these counters.
type PromptStatistics struct {
	Total        int
	ByType       map[PromptType]int
	WithDefault  int
	UniqueVars   int
	DuplicateVar []string
}

// PromptStats computes prompt statistics over every tag occurrence.
func PromptStats(content string) (PromptStatistics, error) {
	all, err := parsePromptOccurrences(content)
	if err != nil {
		return PromptStatistics{}, err
	}

	stats := PromptStatistics{ByType: make(map[PromptType]int)}
	seen := make(map[string]int)
	for _, def := range all {
		stats.Total++
		stats.ByType[def.Type]++
		if def.DefaultValue != "" {
			stats.WithDefault++
		}
		seen[def.VarName]++
	}
	stats.UniqueVars = len(seen)
	for name, count := range seen {
		if count > 1 {
			stats.DuplicateVar = append(stats.DuplicateVar, name)
		}
	}
	return stats, nil
}
