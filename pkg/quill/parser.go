package quill

import (
	"strings"
)

// Block is one parsed unit of template structure.
type Block interface {
	// Pos returns the byte offset of the block in the template.
	Pos() int
}

// LiteralBlock is a run of plain text.
type LiteralBlock struct {
	Text string
	pos  int
}

func (b *LiteralBlock) Pos() int { return b.pos }

// InterpolationBlock is a {{expr | filters...}} tag. Raw keeps the
// original tag text so unresolved references can be re-emitted verbatim
// in non-strict mode.
type InterpolationBlock struct {
	Expr    string
	Filters []FilterCall
	Raw     string
	pos     int
}

func (b *InterpolationBlock) Pos() int { return b.pos }

// Branch is one arm of a conditional. A nil Condition marks the trailing
// else branch; the parser guarantees it is last and unique.
type Branch struct {
	Condition *ConditionNode
	CondText  string
	Body      []Block
}

// ConditionalBlock is an {{#if}}...{{else if}}...{{else}}...{{/if}} region.
type ConditionalBlock struct {
	Branches []Branch
	pos      int
}

func (b *ConditionalBlock) Pos() int { return b.pos }

// LoopBlock is an {{#each source [as alias]}}...{{/each}} region.
type LoopBlock struct {
	Source string
	Alias  string
	Body   []Block
	pos    int
}

func (b *LoopBlock) Pos() int { return b.pos }

// ScriptBlock is a <% expression %> fragment.
type ScriptBlock struct {
	Expr string
	pos  int
}

func (b *ScriptBlock) Pos() int { return b.pos }

// PromptBlock is a prompt tag that survived to parse time, which happens
// when a template is parsed without the prompt substitution pre-pass
// (validation, or rendering with no collector). It renders as the
// prompt's default.
type PromptBlock struct {
	Def PromptDefinition
	Raw string
	pos int
}

func (b *PromptBlock) Pos() int { return b.pos }

// Parse tokenizes and parses a template into its Block AST. Unmatched
// control tags are structural errors, never silent no-ops.
func Parse(content string) ([]Block, error) {
	return ParseTokens(Tokenize(content))
}

// ParseTokens parses a flat token stream into the Block AST.
func ParseTokens(tokens []Token) ([]Block, error) {
	p := &blockParser{tokens: tokens}
	blocks, err := p.parseBody(nil)
	if err != nil {
		return nil, err
	}
	// parseBody with no stop set consumes everything unless it finds a
	// close tag with no open block.
	if p.pos < len(p.tokens) {
		tok := p.current()
		return nil, &UnexpectedCloseError{Tag: tok.Raw, Pos: tok.Pos}
	}
	return blocks, nil
}

type blockParser struct {
	tokens []Token
	pos    int
}

func (p *blockParser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenText}
	}
	return p.tokens[p.pos]
}

func (p *blockParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// parseBody parses blocks until it hits EOF or one of the stop token
// types, which it leaves unconsumed for the caller.
func (p *blockParser) parseBody(stop []TokenType) ([]Block, error) {
	var blocks []Block

	for p.pos < len(p.tokens) {
		tok := p.current()
		for _, s := range stop {
			if tok.Type == s {
				return blocks, nil
			}
		}

		switch tok.Type {
		case TokenText:
			if tok.Value != "" {
				blocks = append(blocks, &LiteralBlock{Text: tok.Value, pos: tok.Pos})
			}
			p.advance()

		case TokenVariable:
			expr, filters, err := parseFilterChain(tok.Value)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, &InterpolationBlock{
				Expr:    expr,
				Filters: filters,
				Raw:     tok.Raw,
				pos:     tok.Pos,
			})
			p.advance()

		case TokenScript:
			blocks = append(blocks, &ScriptBlock{Expr: tok.Value, pos: tok.Pos})
			p.advance()

		case TokenIf:
			node, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)

		case TokenEach:
			node, err := p.parseLoop()
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, node)

		case TokenPrompt, TokenSuggest, TokenCheckbox:
			def, err := parsePromptTag(tok.Value, tok.Pos)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, &PromptBlock{Def: def, Raw: tok.Raw, pos: tok.Pos})
			p.advance()

		case TokenEndIf, TokenEndEach:
			// A close tag with no open block. When called with a stop
			// set this is the caller's close; without one it is stray.
			if len(stop) == 0 {
				return blocks, nil
			}
			return nil, &UnexpectedCloseError{Tag: tok.Raw, Pos: tok.Pos}

		default:
			return blocks, nil
		}
	}

	return blocks, nil
}

// parseConditional parses an if region. else/else-if tokens bind to the
// innermost open if because nested ifs are consumed whole by the
// recursive parseBody call before the branch tokens are examined.
func (p *blockParser) parseConditional() (*ConditionalBlock, error) {
	open := p.current()
	if strings.TrimSpace(open.Value) == "" {
		return nil, &EmptyConditionError{Tag: open.Raw, Pos: open.Pos}
	}
	cond, err := ParseCondition(open.Value)
	if err != nil {
		return nil, positioned(err, open.Pos)
	}
	p.advance()

	node := &ConditionalBlock{pos: open.Pos}
	body, err := p.parseBody([]TokenType{TokenElseIf, TokenElse, TokenEndIf})
	if err != nil {
		return nil, err
	}
	node.Branches = append(node.Branches, Branch{Condition: cond, CondText: open.Value, Body: body})

	for p.current().Type == TokenElseIf {
		branchTok := p.current()
		if strings.TrimSpace(branchTok.Value) == "" {
			return nil, &EmptyConditionError{Tag: branchTok.Raw, Pos: branchTok.Pos}
		}
		branchCond, err := ParseCondition(branchTok.Value)
		if err != nil {
			return nil, positioned(err, branchTok.Pos)
		}
		p.advance()
		branchBody, err := p.parseBody([]TokenType{TokenElseIf, TokenElse, TokenEndIf})
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, Branch{
			Condition: branchCond,
			CondText:  branchTok.Value,
			Body:      branchBody,
		})
	}

	if p.current().Type == TokenElse {
		p.advance()
		elseBody, err := p.parseBody([]TokenType{TokenEndIf})
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, Branch{Body: elseBody})
	}

	if p.current().Type != TokenEndIf {
		return nil, &UnclosedBlockError{Tag: open.Raw, Pos: open.Pos}
	}
	p.advance()

	return node, nil
}

// parseLoop parses an each region. The tag text is "source" or
// "source as alias".
func (p *blockParser) parseLoop() (*LoopBlock, error) {
	open := p.current()
	source := strings.TrimSpace(open.Value)
	alias := ""
	if idx := strings.Index(source, " as "); idx != -1 {
		alias = strings.TrimSpace(source[idx+4:])
		source = strings.TrimSpace(source[:idx])
	}
	if source == "" {
		return nil, &SyntaxError{Expr: open.Raw, Message: "missing loop source", Pos: open.Pos}
	}
	p.advance()

	body, err := p.parseBody([]TokenType{TokenEndEach})
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenEndEach {
		return nil, &UnclosedBlockError{Tag: open.Raw, Pos: open.Pos}
	}
	p.advance()

	return &LoopBlock{Source: source, Alias: alias, Body: body, pos: open.Pos}, nil
}

// positioned stamps a byte offset onto errors that carry one.
func positioned(err error, pos int) error {
	switch e := err.(type) {
	case *EmptyConditionError:
		if e.Pos == 0 {
			e.Pos = pos
		}
	case *SyntaxError:
		if e.Pos == 0 {
			e.Pos = pos
		}
	}
	return err
}
