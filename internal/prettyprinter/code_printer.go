package prettyprinter

import (
	"bytes"
	"strings"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
)

// --- Code Printer (Output looks like source code) ---

// Operator precedence (higher = binds tighter). All operators are
// left-associative.
var operatorPrecedence = map[string]int{
	"==": 1,
	"!=": 1,
	"<":  1,
	">":  1,
	"<=": 1,
	">=": 1,
	"+":  2,
	"-":  2,
	"*":  3,
	"/":  3,
	"%":  3,
}

const callPrecedence = 4

func getPrecedence(op string) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return callPrecedence
}

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// String returns the printed source.
func (p *CodePrinter) String() string {
	return p.buf.String()
}

// Print renders a node back to source text.
func Print(node ast.Node) string {
	p := NewCodePrinter()
	node.Accept(p)
	return p.String()
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
}

// printExpr prints an expression, adding parentheses only if needed
func (p *CodePrinter) printExpr(expr ast.Expression, parentPrec int, isRight bool) {
	if expr == nil {
		p.write("<???>")
		return
	}
	switch e := expr.(type) {
	case *ast.InfixExpression:
		prec := getPrecedence(e.Operator)
		needParens := prec < parentPrec || (prec == parentPrec && isRight)
		if needParens {
			p.write("(")
		}
		p.printExpr(e.Left, prec, false)
		p.write(" " + e.Operator + " ")
		p.printExpr(e.Right, prec, true)
		if needParens {
			p.write(")")
		}
	case *ast.FunctionLiteral, *ast.IfExpression:
		if parentPrec > 0 {
			p.write("(")
			expr.Accept(p)
			p.write(")")
		} else {
			expr.Accept(p)
		}
	default:
		expr.Accept(p)
	}
}

func (p *CodePrinter) VisitProgram(n *ast.Program) {
	for _, stmt := range n.Statements {
		if stmt != nil {
			stmt.Accept(p)
		} else {
			p.write("<???>")
		}
		p.write("\n")
	}
}

func (p *CodePrinter) VisitBindingStatement(n *ast.BindingStatement) {
	p.write(n.Name.String())
	p.write(": ")
	p.printExpr(n.Value, 0, false)
}

func (p *CodePrinter) VisitCommentStatement(n *ast.CommentStatement) {
	p.write(strings.Repeat("#", n.Level))
	if n.Marker {
		p.write(">")
	}
	if n.Text != "" {
		p.write(" " + n.Text)
	}
}

func (p *CodePrinter) VisitNumberLiteral(n *ast.NumberLiteral) {
	p.write(n.Raw)
}

func (p *CodePrinter) VisitStringLiteral(n *ast.StringLiteral) {
	p.write("\"" + n.Value + "\"")
}

func (p *CodePrinter) VisitBooleanLiteral(n *ast.BooleanLiteral) {
	if n.Value {
		p.write("true")
	} else {
		p.write("false")
	}
}

func (p *CodePrinter) VisitIdentifier(n *ast.Identifier) {
	p.write(n.String())
}

func (p *CodePrinter) VisitScopeLiteral(n *ast.ScopeLiteral) {
	if n.Prefix != nil {
		p.write(n.Prefix.String() + " ")
	}
	if len(n.Statements) == 0 {
		p.write("{}")
		return
	}
	p.write("{\n")
	p.indent++
	for _, stmt := range n.Statements {
		p.writeIndent()
		stmt.Accept(p)
		p.write("\n")
	}
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *CodePrinter) VisitCallExpression(n *ast.CallExpression) {
	switch n.Function.(type) {
	case *ast.Identifier, *ast.CallExpression, *ast.ScopeLiteral:
		n.Function.Accept(p)
	default:
		p.write("(")
		p.printExpr(n.Function, 0, false)
		p.write(")")
	}
	p.write("(")
	for i, arg := range n.Arguments {
		if i > 0 {
			p.write(", ")
		}
		p.printExpr(arg, 0, false)
	}
	p.write(")")
}

func (p *CodePrinter) VisitInfixExpression(n *ast.InfixExpression) {
	p.printExpr(n, 0, false)
}

func (p *CodePrinter) VisitFunctionLiteral(n *ast.FunctionLiteral) {
	if len(n.Parameters) == 1 {
		p.write(n.Parameters[0])
	} else {
		p.write("(" + strings.Join(n.Parameters, ", ") + ")")
	}
	p.write(" => ")
	p.printExpr(n.Body, 0, false)
}

func (p *CodePrinter) VisitIfExpression(n *ast.IfExpression) {
	p.write("if ")
	p.printExpr(n.Condition, 0, false)
	p.write(" then ")
	p.printExpr(n.Consequence, 0, false)
	p.write(" else ")
	p.printExpr(n.Alternative, 0, false)
}
