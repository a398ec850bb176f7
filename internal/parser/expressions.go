package parser

import (
	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/lexer"
	"github.com/smeli-lang/smeli-sub000/internal/token"
)

// Binary operator layers, loosest first.
var binaryLevels = [][]token.TokenType{
	{token.EQ, token.NOT_EQ, token.LT, token.GT, token.LTE, token.GTE},
	{token.PLUS, token.MINUS},
	{token.ASTERISK, token.SLASH, token.PERCENT},
}

// parseExpression parses from curToken and leaves curToken on the last token
// of the expression. It returns nil after reporting an error.
func (p *Parser) parseExpression() ast.Expression {
	if p.failed {
		return nil
	}
	switch {
	case p.curTokenIs(token.IF):
		return p.parseIfExpression()
	case p.isFunctionLiteral():
		return p.parseFunctionLiteral()
	}
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(level int) ast.Expression {
	if level == len(binaryLevels) {
		return p.parseCall()
	}
	left := p.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	for p.peekIsOneOf(binaryLevels[level]) {
		p.nextToken()
		expr := &ast.InfixExpression{Token: p.curToken, Operator: p.curToken.Lexeme, Left: left}
		p.nextToken()
		p.skipNewlines()
		expr.Right = p.parseBinary(level + 1)
		if expr.Right == nil {
			return nil
		}
		left = expr
	}
	return left
}

func (p *Parser) peekIsOneOf(types []token.TokenType) bool {
	for _, t := range types {
		if p.peekTokenIs(t) {
			return true
		}
	}
	return false
}

// parseCall parses an atom followed by any number of argument lists.
func (p *Parser) parseCall() ast.Expression {
	expr := p.parseAtom()
	for expr != nil && p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		call := &ast.CallExpression{Token: p.curToken, Function: expr}
		call.Arguments = p.parseArguments()
		if call.Arguments == nil {
			return nil
		}
		expr = call
	}
	return expr
}

// parseArguments expects curToken on '(' and leaves it on ')'.
func (p *Parser) parseArguments() []ast.Expression {
	args := []ast.Expression{}
	p.skipPeekNewlines()
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return args
	}
	for {
		p.nextToken()
		p.skipNewlines()
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		p.skipPeekNewlines()
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return args
}

func (p *Parser) parseAtom() ast.Expression {
	switch p.curToken.Type {
	case token.NUMBER:
		value, _ := p.curToken.Literal.(float64)
		return &ast.NumberLiteral{Token: p.curToken, Raw: p.curToken.Lexeme, Value: value}
	case token.MINUS:
		return p.parseNegativeNumber()
	case token.STRING:
		value, _ := p.curToken.Literal.(string)
		return &ast.StringLiteral{Token: p.curToken, Value: value}
	case token.TRUE, token.FALSE:
		return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
	case token.IDENT:
		ident := p.parseIdentifierPath(p.curToken)
		if ident == nil {
			return nil
		}
		if p.peekTokenIs(token.LBRACE) {
			p.nextToken()
			return p.parseScopeLiteral(ident)
		}
		return ident
	case token.AT:
		at := p.curToken
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		ident := p.parseIdentifierPath(at)
		if ident == nil {
			return nil
		}
		ident.Quoted = true
		return ident
	case token.LBRACE:
		return p.parseScopeLiteral(nil)
	case token.LPAREN:
		return p.parseGroupedExpression()
	case token.ILLEGAL:
		p.illegal(p.curToken)
		return nil
	}
	p.errorAt(diagnostics.ErrP003, p.curToken, "expected expression, got %s", describe(p.curToken))
	return nil
}

// parseNegativeNumber handles '-' directly followed by a number literal.
func (p *Parser) parseNegativeNumber() ast.Expression {
	minus := p.curToken
	if !p.peekTokenIs(token.NUMBER) || p.peekToken.Offset != minus.End() {
		p.errorAt(diagnostics.ErrP003, minus, "expected expression, got '-'")
		return nil
	}
	p.nextToken()
	raw := "-" + p.curToken.Lexeme
	value, err := lexer.ParseNumber(raw)
	if err != nil {
		p.errorAt(diagnostics.ErrL003, minus, "%s", err.Error())
		return nil
	}
	return &ast.NumberLiteral{Token: minus, Raw: raw, Value: value}
}

// parseIdentifierPath reads a.b.c starting with curToken on the first name.
func (p *Parser) parseIdentifierPath(first token.Token) *ast.Identifier {
	ident := &ast.Identifier{Token: first, Path: []string{p.curToken.Lexeme}}
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		ident.Path = append(ident.Path, p.curToken.Lexeme)
	}
	return ident
}

// { statements } or prefix { statements }, curToken on '{'.
func (p *Parser) parseScopeLiteral(prefix *ast.Identifier) ast.Expression {
	lit := &ast.ScopeLiteral{Token: p.curToken, Prefix: prefix}
	p.nextToken()
	stmts, ok := p.parseStatements(token.RBRACE)
	if !ok {
		return nil
	}
	lit.Statements = stmts
	return lit
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken() // consume '('
	p.skipNewlines()
	exp := p.parseExpression()
	if exp == nil {
		return nil
	}
	p.skipPeekNewlines()
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

// isFunctionLiteral looks ahead for x => or (a, b) => without consuming.
func (p *Parser) isFunctionLiteral() bool {
	if p.curTokenIs(token.IDENT) {
		return p.peekTokenIs(token.ARROW)
	}
	if !p.curTokenIs(token.LPAREN) {
		return false
	}
	i := p.pos + 1
	if p.tokenAt(i).Type == token.RPAREN {
		return p.tokenAt(i+1).Type == token.ARROW
	}
	for {
		if p.tokenAt(i).Type != token.IDENT {
			return false
		}
		i++
		switch p.tokenAt(i).Type {
		case token.COMMA:
			i++
		case token.RPAREN:
			return p.tokenAt(i+1).Type == token.ARROW
		default:
			return false
		}
	}
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	params := []string{}
	if p.curTokenIs(token.IDENT) {
		params = append(params, p.curToken.Lexeme)
	} else {
		// (a, b)
		for !p.curTokenIs(token.RPAREN) {
			p.nextToken()
			if p.curTokenIs(token.IDENT) {
				params = append(params, p.curToken.Lexeme)
			}
		}
	}
	p.nextToken() // '=>'
	fn := &ast.FunctionLiteral{Token: p.curToken, Parameters: params}
	p.nextToken()
	p.skipNewlines()
	fn.Body = p.parseExpression()
	if fn.Body == nil {
		return nil
	}
	return fn
}

// if c then a else b
func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.IfExpression{Token: p.curToken}
	p.nextToken()
	p.skipNewlines()
	if expr.Condition = p.parseExpression(); expr.Condition == nil {
		return nil
	}

	if p.peekPastNewlines(token.THEN) {
		p.skipPeekNewlines()
	}
	if !p.expectPeek(token.THEN) {
		return nil
	}
	p.nextToken()
	p.skipNewlines()
	if expr.Consequence = p.parseExpression(); expr.Consequence == nil {
		return nil
	}

	if p.peekPastNewlines(token.ELSE) {
		p.skipPeekNewlines()
	}
	if !p.expectPeek(token.ELSE) {
		return nil
	}
	p.nextToken()
	p.skipNewlines()
	if expr.Alternative = p.parseExpression(); expr.Alternative == nil {
		return nil
	}
	return expr
}
