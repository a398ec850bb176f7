package ast

import (
	"strings"

	"github.com/smeli-lang/smeli-sub000/internal/token"
)

// NumberLiteral keeps the source spelling (e.g. "-0x1F") next to its value
// so printing reproduces the original radix.
type NumberLiteral struct {
	Token token.Token
	Raw   string
	Value float64
}

func (nl *NumberLiteral) Accept(v Visitor)      { v.VisitNumberLiteral(nl) }
func (nl *NumberLiteral) expressionNode()       {}
func (nl *NumberLiteral) TokenLiteral() string  { return nl.Raw }
func (nl *NumberLiteral) GetToken() token.Token { return nl.Token }

// StringLiteral is a double-quoted string without escapes.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) Accept(v Visitor)      { v.VisitStringLiteral(sl) }
func (sl *StringLiteral) expressionNode()       {}
func (sl *StringLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token { return sl.Token }

// BooleanLiteral represents boolean literals true/false.
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (b *BooleanLiteral) Accept(v Visitor)      { v.VisitBooleanLiteral(b) }
func (b *BooleanLiteral) expressionNode()       {}
func (b *BooleanLiteral) TokenLiteral() string  { return b.Token.Lexeme }
func (b *BooleanLiteral) GetToken() token.Token { return b.Token }

// Identifier is a possibly scoped name, e.g. a or math.pi.
// Quoted is set by the '@' sigil: @a asks for the expression bound to a.
type Identifier struct {
	Token  token.Token // first name token, or '@'
	Path   []string
	Quoted bool
}

func (i *Identifier) Accept(v Visitor)      { v.VisitIdentifier(i) }
func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

// Name returns the last path element.
func (i *Identifier) Name() string {
	if len(i.Path) == 0 {
		return ""
	}
	return i.Path[len(i.Path)-1]
}

func (i *Identifier) String() string {
	s := strings.Join(i.Path, ".")
	if i.Quoted {
		return "@" + s
	}
	return s
}

// ScopeLiteral builds a new scope from statements, optionally composed
// with a prefix scope.
// base { x: 1 }
type ScopeLiteral struct {
	Token      token.Token // the '{' token
	Prefix     *Identifier // optional
	Statements []Statement
}

func (sl *ScopeLiteral) Accept(v Visitor)      { v.VisitScopeLiteral(sl) }
func (sl *ScopeLiteral) expressionNode()       {}
func (sl *ScopeLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *ScopeLiteral) GetToken() token.Token { return sl.Token }

// CallExpression represents f(a, b).
type CallExpression struct {
	Token     token.Token // the '(' token
	Function  Expression
	Arguments []Expression
}

func (ce *CallExpression) Accept(v Visitor)      { v.VisitCallExpression(ce) }
func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }

// InfixExpression is a binary operator application.
type InfixExpression struct {
	Token    token.Token // the operator token
	Operator string
	Left     Expression
	Right    Expression
}

func (ie *InfixExpression) Accept(v Visitor)      { v.VisitInfixExpression(ie) }
func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }

// FunctionLiteral is an arrow function.
// (x, y) => x + y
type FunctionLiteral struct {
	Token      token.Token // the '=>' token
	Parameters []string
	Body       Expression
}

func (fl *FunctionLiteral) Accept(v Visitor)      { v.VisitFunctionLiteral(fl) }
func (fl *FunctionLiteral) expressionNode()       {}
func (fl *FunctionLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FunctionLiteral) GetToken() token.Token { return fl.Token }

// IfExpression is the conditional expression.
// if c then a else b
type IfExpression struct {
	Token       token.Token // the 'if' token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (ie *IfExpression) Accept(v Visitor)      { v.VisitIfExpression(ie) }
func (ie *IfExpression) expressionNode()       {}
func (ie *IfExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IfExpression) GetToken() token.Token { return ie.Token }
