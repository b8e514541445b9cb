package quill

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// TokenType identifies a template token.
type TokenType int

const (
	TokenText TokenType = iota
	TokenVariable
	TokenIf
	TokenElseIf
	TokenElse
	TokenEndIf
	TokenEach
	TokenEndEach
	TokenPrompt
	TokenSuggest
	TokenCheckbox
	TokenScript
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenVariable:
		return "variable"
	case TokenIf:
		return "if"
	case TokenElseIf:
		return "else-if"
	case TokenElse:
		return "else"
	case TokenEndIf:
		return "end-if"
	case TokenEach:
		return "each"
	case TokenEndEach:
		return "end-each"
	case TokenPrompt:
		return "prompt"
	case TokenSuggest:
		return "suggest"
	case TokenCheckbox:
		return "checkbox"
	case TokenScript:
		return "script"
	default:
		return "unknown"
	}
}

// Token is one unit of the flat token stream. Pos is the byte offset of
// the token in the template; Raw is the original tag text, kept so
// unresolved interpolations can be re-emitted verbatim.
type Token struct {
	Type  TokenType
	Value string
	Raw   string
	Pos   int
}

// tagRegex matches {{...}} tags and <% ... %> script fragments in one
// pass so both kinds of delimiter share the same text/token split.
var tagRegex = regexp.MustCompile(`(?s)\{\{([^{}]*)\}\}|<%(.*?)%>`)

// Tokenize splits a template string into a flat token stream. The
// tokenizer never fails: malformed or empty tags degrade to literal text,
// and structural problems are the parser's job.
func Tokenize(input string) []Token {
	var tokens []Token
	lastEnd := 0

	matches := tagRegex.FindAllStringSubmatchIndex(input, -1)
	for _, match := range matches {
		if match[0] > lastEnd {
			tokens = append(tokens, Token{
				Type:  TokenText,
				Value: input[lastEnd:match[0]],
				Pos:   lastEnd,
			})
		}

		raw := input[match[0]:match[1]]
		if match[2] >= 0 {
			content := strings.TrimSpace(input[match[2]:match[3]])
			if content == "" {
				tokens = append(tokens, Token{Type: TokenText, Value: raw, Pos: match[0]})
			} else {
				tokens = append(tokens, parseTag(content, raw, match[0]))
			}
		} else {
			expr := strings.TrimSpace(input[match[4]:match[5]])
			if expr == "" {
				tokens = append(tokens, Token{Type: TokenText, Value: raw, Pos: match[0]})
			} else {
				tokens = append(tokens, Token{Type: TokenScript, Value: expr, Raw: raw, Pos: match[0]})
			}
		}

		lastEnd = match[1]
	}

	if lastEnd < len(input) {
		tokens = append(tokens, Token{
			Type:  TokenText,
			Value: input[lastEnd:],
			Pos:   lastEnd,
		})
	}

	logger().Debug("tokenize complete",
		zap.Int("input_length", len(input)),
		zap.Int("token_count", len(tokens)))

	return tokens
}

// parseTag classifies the content between {{ and }}.
func parseTag(content, raw string, pos int) Token {
	switch {
	case strings.HasPrefix(content, "#if"):
		cond := strings.TrimSpace(strings.TrimPrefix(content, "#if"))
		return Token{Type: TokenIf, Value: cond, Raw: raw, Pos: pos}
	case content == "/if":
		return Token{Type: TokenEndIf, Raw: raw, Pos: pos}
	case strings.HasPrefix(content, "#each"):
		src := strings.TrimSpace(strings.TrimPrefix(content, "#each"))
		return Token{Type: TokenEach, Value: src, Raw: raw, Pos: pos}
	case content == "/each":
		return Token{Type: TokenEndEach, Raw: raw, Pos: pos}
	}

	if kw, _, found := strings.Cut(content, ":"); found {
		if typ, ok := promptKeywords[kw]; ok {
			return Token{Type: promptTokenType(typ), Value: content, Raw: raw, Pos: pos}
		}
	}

	if content == "else" {
		return Token{Type: TokenElse, Raw: raw, Pos: pos}
	}
	if rest, ok := strings.CutPrefix(content, "else if"); ok {
		return Token{Type: TokenElseIf, Value: strings.TrimSpace(rest), Raw: raw, Pos: pos}
	}

	return Token{Type: TokenVariable, Value: content, Raw: raw, Pos: pos}
}

func promptTokenType(t PromptType) TokenType {
	switch t {
	case PromptSuggest:
		return TokenSuggest
	case PromptCheckbox:
		return TokenCheckbox
	default:
		return TokenPrompt
	}
}

// FindTemplateTags returns every tag occurrence in a template, for
// tooling and diagnostics.
func FindTemplateTags(input string) []string {
	matches := tagRegex.FindAllString(input, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
