package parser

import (
	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/token"
)

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.ctx.FilePath}
	program.Statements, _ = p.parseStatements(token.EOF)
	return program
}

// parseStatements reads statements until end (EOF at top level, '}' inside a
// scope literal). On return curToken is the end token unless ok is false.
// Inside a scope literal commas may separate statements.
func (p *Parser) parseStatements(end token.TokenType) (stmts []ast.Statement, ok bool) {
	stmts = []ast.Statement{}
	nested := end == token.RBRACE

	for {
		for p.curTokenIs(token.NEWLINE) || (nested && p.curTokenIs(token.COMMA)) {
			p.nextToken()
		}
		if p.curTokenIs(end) {
			return stmts, true
		}
		if p.curTokenIs(token.EOF) {
			p.errorAt(diagnostics.ErrP002, p.curToken, "expected '}', got end of input")
			return stmts, false
		}

		stmt := p.parseStatement()
		if stmt == nil {
			return stmts, false
		}

		switch {
		case p.peekTokenIs(token.NEWLINE), p.peekTokenIs(end):
		case nested && p.peekTokenIs(token.COMMA):
		default:
			p.unexpected(p.peekToken, "after statement")
			return stmts, false
		}
		stmts = append(stmts, stmt)
		p.nextToken()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.COMMENT:
		return p.parseCommentStatement()
	case token.IDENT:
		if p.peekTokenIs(token.COLON) {
			return p.parseBindingStatement()
		}
		p.peekError(token.COLON)
		return nil
	default:
		p.unexpected(p.curToken, "at start of statement")
		return nil
	}
}

func (p *Parser) parseCommentStatement() ast.Statement {
	tok := p.curToken
	c, _ := tok.Literal.(token.Comment)
	if c.Level > MaxHeadingLevel {
		p.errorAt(diagnostics.ErrP004, tok, "heading level %d exceeds %d", c.Level, MaxHeadingLevel)
		return nil
	}
	return &ast.CommentStatement{
		Token:  tok,
		Level:  c.Level,
		Marker: c.Marker,
		Text:   c.Text,
		Start:  tok.Offset,
		End:    tok.End(),
	}
}

// name: expression
func (p *Parser) parseBindingStatement() ast.Statement {
	stmt := &ast.BindingStatement{Token: p.curToken, Start: p.curToken.Offset}
	stmt.Name = &ast.Identifier{Token: p.curToken, Path: []string{p.curToken.Lexeme}}

	p.nextToken() // ':'
	p.nextToken()
	p.skipNewlines()

	stmt.Value = p.parseExpression()
	if stmt.Value == nil {
		return nil
	}
	stmt.End = p.curToken.End()
	return stmt
}
