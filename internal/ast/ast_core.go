package ast

import (
	"github.com/smeli-lang/smeli-sub000/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	Accept(v Visitor)
}

// Statement is a Node that represents a statement.
// Start and End are absolute byte offsets of the statement text.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
	Span() (start, end int)
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Visitor walks the AST. CodePrinter is the main implementation.
type Visitor interface {
	VisitProgram(p *Program)
	VisitBindingStatement(bs *BindingStatement)
	VisitCommentStatement(cs *CommentStatement)
	VisitNumberLiteral(nl *NumberLiteral)
	VisitStringLiteral(sl *StringLiteral)
	VisitBooleanLiteral(bl *BooleanLiteral)
	VisitIdentifier(i *Identifier)
	VisitScopeLiteral(sl *ScopeLiteral)
	VisitCallExpression(ce *CallExpression)
	VisitInfixExpression(ie *InfixExpression)
	VisitFunctionLiteral(fl *FunctionLiteral)
	VisitIfExpression(ie *IfExpression)
}

// Program is the root node of every AST our parser produces.
type Program struct {
	File       string // Source file path
	Statements []Statement
}

func (p *Program) Accept(v Visitor) { v.VisitProgram(p) }
func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// BindingStatement binds a name to an expression.
// name: expression
type BindingStatement struct {
	Token token.Token // the name token
	Name  *Identifier
	Value Expression
	Start int
	End   int
}

func (bs *BindingStatement) Accept(v Visitor)       { v.VisitBindingStatement(bs) }
func (bs *BindingStatement) statementNode()         {}
func (bs *BindingStatement) TokenLiteral() string   { return bs.Token.Lexeme }
func (bs *BindingStatement) Span() (int, int)       { return bs.Start, bs.End }
func (bs *BindingStatement) GetToken() token.Token {
	if bs == nil {
		return token.Token{}
	}
	return bs.Token
}

// CommentStatement is a heading comment. Level is the number of leading '#'
// characters; Marker is set by a trailing '>' and pauses incremental reveal.
// ##> Section title
type CommentStatement struct {
	Token  token.Token
	Level  int
	Marker bool
	Text   string
	Start  int
	End    int
}

func (cs *CommentStatement) Accept(v Visitor)       { v.VisitCommentStatement(cs) }
func (cs *CommentStatement) statementNode()         {}
func (cs *CommentStatement) TokenLiteral() string   { return cs.Token.Lexeme }
func (cs *CommentStatement) Span() (int, int)       { return cs.Start, cs.End }
func (cs *CommentStatement) GetToken() token.Token { return cs.Token }
