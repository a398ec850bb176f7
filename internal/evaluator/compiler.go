package evaluator

import (
	"fmt"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
)

// Compile lowers an expression into an evaluator. Children are compiled once,
// here, not on every evaluation.
func Compile(node ast.Expression) *Evaluator {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		return &Evaluator{Source: n, Const: &Number{Value: n.Value}}
	case *ast.StringLiteral:
		return &Evaluator{Source: n, Const: &String{Value: n.Value}}
	case *ast.BooleanLiteral:
		return &Evaluator{Source: n, Const: NativeBool(n.Value)}
	case *ast.Identifier:
		if n.Quoted {
			return compileQuoted(n)
		}
		return compileIdentifier(n)
	case *ast.ScopeLiteral:
		return compileScopeLiteral(n)
	case *ast.CallExpression:
		return compileCall(n)
	case *ast.InfixExpression:
		return compileInfix(n)
	case *ast.FunctionLiteral:
		return compileFunction(n)
	case *ast.IfExpression:
		return compileIf(n)
	}
	panic(fmt.Sprintf("compile: unexpected node %T", node))
}

// CompileStatements turns binding statements into bindings, in order.
// Comments produce nothing.
func CompileStatements(stmts []ast.Statement) []*Binding {
	var bindings []*Binding
	for _, stmt := range stmts {
		if bs, ok := stmt.(*ast.BindingStatement); ok {
			bindings = append(bindings, CompileBinding(bs))
		}
	}
	return bindings
}

func CompileBinding(bs *ast.BindingStatement) *Binding {
	ev := Compile(bs.Value)
	ev.Name = bs.Name.Name()
	return &Binding{Name: bs.Name.Name(), Evaluator: ev}
}

// resolvePath evaluates every element of path but the last as a scope,
// starting from scope.
func resolvePath(rt *Runtime, scope *Scope, path []string) (*Scope, error) {
	for _, name := range path {
		v, err := rt.EvaluateName(name, scope)
		if err != nil {
			return nil, err
		}
		s, ok := v.(*Scope)
		if !ok {
			return nil, newError(ErrType, "%s is a %s, not a scope", name, v.Type())
		}
		scope = s
	}
	return scope, nil
}

func compileIdentifier(n *ast.Identifier) *Evaluator {
	path := n.Path
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		target, err := resolvePath(rt, scope, path[:len(path)-1])
		if err != nil {
			return Result{}, err
		}
		v, err := rt.EvaluateName(path[len(path)-1], target)
		return Done(v), err
	}}
}

// @name yields the expression bound to name instead of its value.
func compileQuoted(n *ast.Identifier) *Evaluator {
	path := n.Path
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		target, err := resolvePath(rt, scope, path[:len(path)-1])
		if err != nil {
			return Result{}, err
		}
		b, err := target.Lookup(path[len(path)-1])
		if err != nil {
			return Result{}, err
		}
		if b.Evaluator.Source == nil {
			return Result{}, newError(ErrNoSource, "%s has no source expression", n.Name())
		}
		return Done(&Expression{Node: b.Evaluator.Source}), nil
	}}
}

func compileScopeLiteral(n *ast.ScopeLiteral) *Evaluator {
	bindings := CompileStatements(n.Statements)
	var prefix *Evaluator
	if n.Prefix != nil {
		prefix = compileIdentifier(n.Prefix)
	}
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		var prefixScope *Scope
		if prefix != nil {
			v, err := rt.Evaluate(prefix, scope)
			if err != nil {
				return Result{}, err
			}
			s, ok := v.(*Scope)
			if !ok {
				return Result{}, newError(ErrType, "prefix %s is a %s, not a scope", n.Prefix, v.Type())
			}
			prefixScope = s
		}
		child := scope.NewChild(prefixScope)
		rt.Acquire(child)
		for _, b := range bindings {
			child.Push(b)
		}
		return Done(child), nil
	}}
}

// Calls take two or more stages: the callee first, then whatever its call
// site evaluator unfolds into.
func compileCall(n *ast.CallExpression) *Evaluator {
	fn := Compile(n.Function)
	args := make([]*Evaluator, len(n.Arguments))
	for i, arg := range n.Arguments {
		args[i] = Compile(arg)
	}
	name := ""
	if id, ok := n.Function.(*ast.Identifier); ok {
		name = id.String() + "()"
	}
	return &Evaluator{Name: name, Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		v, err := rt.Evaluate(fn, scope)
		if err != nil {
			return Result{}, err
		}
		callable, ok := v.(Callable)
		if !ok {
			return Result{}, newError(ErrNotCallable, "%s is not callable", v.Type())
		}
		site, err := callable.CallSite(args)
		if err != nil {
			return Result{}, err
		}
		return Continue(site), nil
	}}
}

func compileInfix(n *ast.InfixExpression) *Evaluator {
	left, right := Compile(n.Left), Compile(n.Right)
	traitName, ok := OperatorTrait(n.Operator)
	if !ok {
		panic("compile: unknown operator " + n.Operator)
	}
	op := n.Operator
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		l, err := rt.Evaluate(left, scope)
		if err != nil {
			return Result{}, err
		}
		r, err := rt.Evaluate(right, scope)
		if err != nil {
			return Result{}, err
		}
		if l.Type() != r.Type() {
			return Result{}, newError(ErrTypeMismatch, "cannot apply %s to %s and %s", op, l.Type(), r.Type())
		}
		trait, ok := rt.Traits.Get(traitName)
		if !ok {
			return Result{}, newError(ErrNoOverload, "no trait %s for operator %s", traitName, op)
		}
		v, err := trait.Call(l, r)
		return Done(v), err
	}}
}

func compileFunction(n *ast.FunctionLiteral) *Evaluator {
	body := Compile(n.Body)
	params := n.Parameters
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		return Done(&Closure{Params: params, Body: body, Scope: scope}), nil
	}}
}

// The condition is stage one, the chosen branch stage two.
func compileIf(n *ast.IfExpression) *Evaluator {
	cond := Compile(n.Condition)
	consequence, alternative := Compile(n.Consequence), Compile(n.Alternative)
	return &Evaluator{Source: n, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		v, err := rt.Evaluate(cond, scope)
		if err != nil {
			return Result{}, err
		}
		b, ok := v.(*Boolean)
		if !ok {
			return Result{}, newError(ErrType, "condition must be a Bool, got %s", v.Type())
		}
		if b.Value {
			return Continue(consequence), nil
		}
		return Continue(alternative), nil
	}}
}
