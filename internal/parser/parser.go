package parser

import (
	"fmt"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/pipeline"
	"github.com/smeli-lang/smeli-sub000/internal/token"
)

// MaxHeadingLevel is the deepest heading a comment may declare.
const MaxHeadingLevel = 6

// Parser is a recursive-descent parser over a token slice. The first error
// aborts the statement being parsed and ends the statement list; everything
// parsed before it is kept.
type Parser struct {
	tokens []token.Token
	pos    int

	curToken  token.Token
	peekToken token.Token

	ctx    *pipeline.PipelineContext
	failed bool
}

func New(tokens []token.Token, ctx *pipeline.PipelineContext) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF, Offset: len(ctx.SourceCode)})
	}
	p := &Parser{tokens: tokens, ctx: ctx, pos: -1}
	p.nextToken()
	return p
}

// Parse reads source from byte offset and returns the statements that parsed
// cleanly, in order, plus any diagnostics. Positions are absolute.
func Parse(source string, offset int, file string) ([]ast.Statement, []*diagnostics.DiagnosticError) {
	ctx := pipeline.NewPipelineContext(source)
	ctx.FilePath = file
	ctx.StartOffset = offset
	ctx = Pipeline().Run(ctx)
	return ctx.AstRoot.Statements, ctx.Errors
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.curToken = p.tokens[p.pos]
	p.peekToken = p.tokenAt(p.pos + 1)
}

// tokenAt returns the token at index i, clamped to the trailing EOF.
func (p *Parser) tokenAt(i int) token.Token {
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

func (p *Parser) skipPeekNewlines() {
	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

// peekPastNewlines reports whether the next non-newline token has type t.
func (p *Parser) peekPastNewlines(t token.TokenType) bool {
	for i := p.pos + 1; i < len(p.tokens); i++ {
		if p.tokens[i].Type != token.NEWLINE {
			return p.tokens[i].Type == t
		}
	}
	return false
}

func (p *Parser) addError(err *diagnostics.DiagnosticError) {
	if p.failed {
		return
	}
	p.failed = true
	p.ctx.Errors = append(p.ctx.Errors, err)
}

func (p *Parser) errorAt(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	p.addError(diagnostics.NewError(code, tok, format, args...))
}

func (p *Parser) peekError(t token.TokenType) {
	if p.peekTokenIs(token.ILLEGAL) {
		p.illegal(p.peekToken)
		return
	}
	p.errorAt(diagnostics.ErrP002, p.peekToken, "expected %s, got %s", describeType(t), describe(p.peekToken))
}

// unexpected reports tok, preferring the lexer's own diagnostic for ILLEGAL.
func (p *Parser) unexpected(tok token.Token, context string) {
	if tok.Type == token.ILLEGAL {
		p.illegal(tok)
		return
	}
	p.errorAt(diagnostics.ErrP001, tok, "unexpected %s %s", describe(tok), context)
}

func (p *Parser) illegal(tok token.Token) {
	if diag, ok := tok.Literal.(*diagnostics.DiagnosticError); ok {
		p.addError(diag)
		return
	}
	p.errorAt(diagnostics.ErrL001, tok, "illegal token %q", tok.Lexeme)
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "newline"
	case token.COMMENT:
		return "comment"
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

func describeType(t token.TokenType) string {
	switch t {
	case token.IDENT:
		return "identifier"
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "newline"
	case token.IF, token.THEN, token.ELSE:
		return fmt.Sprintf("'%s'", token.KeywordText(t))
	}
	return fmt.Sprintf("'%s'", string(t))
}
