package evaluator

import (
	"github.com/smeli-lang/smeli-sub000/internal/ast"
)

// Result is what one stage of an evaluator produces: either a final value or
// the evaluator of the next stage.
type Result struct {
	Value Object
	Next  *Evaluator
}

func Done(v Object) Result { return Result{Value: v} }

func Continue(next *Evaluator) Result { return Result{Next: next} }

// Evaluator is a compiled computation. Evaluators are compared by identity:
// the runtime caches one entry per (scope, evaluator) pair.
//
// Const evaluators bypass the cache entirely.
type Evaluator struct {
	Name   string         // frame name in error stacks; empty to skip
	Source ast.Expression // expression this was compiled from, if any
	Const  Object
	Fn     func(rt *Runtime, scope *Scope) (Result, error)
}

// ConstEvaluator returns an evaluator that always yields v.
func ConstEvaluator(v Object) *Evaluator {
	return &Evaluator{Const: v}
}

// Binding names an evaluator. Bindings are immutable and compared by
// identity when popped.
type Binding struct {
	Name      string
	Evaluator *Evaluator
}

func NewBinding(name string, ev *Evaluator) *Binding {
	if ev.Name == "" {
		ev.Name = name
	}
	return &Binding{Name: name, Evaluator: ev}
}

// NewValueBinding binds name to a constant value.
func NewValueBinding(name string, v Object) *Binding {
	return &Binding{Name: name, Evaluator: &Evaluator{Name: name, Const: v}}
}

// NewFuncBinding binds name to a native stage function.
func NewFuncBinding(name string, fn func(rt *Runtime, scope *Scope) (Result, error)) *Binding {
	return &Binding{Name: name, Evaluator: &Evaluator{Name: name, Fn: fn}}
}

// CallSite binds parameters lazily: each parameter evaluates its argument in
// the caller's scope on first use. Stage one creates the call scope, stage
// two runs the body in it.
func (c *Closure) CallSite(args []*Evaluator) (*Evaluator, error) {
	if len(args) != len(c.Params) {
		return nil, newError(ErrArity, "function %s expects %d arguments, got %d", c.Inspect(), len(c.Params), len(args))
	}
	return &Evaluator{Fn: func(rt *Runtime, caller *Scope) (Result, error) {
		callScope := c.Scope.NewChild(nil)
		rt.Acquire(callScope)
		for i, param := range c.Params {
			arg := args[i]
			callScope.Push(NewFuncBinding(param, func(rt *Runtime, _ *Scope) (Result, error) {
				v, err := rt.Evaluate(arg, caller)
				return Done(v), err
			}))
		}
		body := c.Body
		return Continue(&Evaluator{Fn: func(rt *Runtime, _ *Scope) (Result, error) {
			v, err := rt.Evaluate(body, callScope)
			return Done(v), err
		}}), nil
	}}, nil
}

func (b *Builtin) CallSite(args []*Evaluator) (*Evaluator, error) {
	return &Evaluator{Name: b.Name, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		return b.Fn(rt, scope, args)
	}}, nil
}

// EvaluateArgs evaluates argument evaluators in order, in scope.
func EvaluateArgs(rt *Runtime, scope *Scope, args []*Evaluator) ([]Object, error) {
	values := make([]Object, len(args))
	for i, arg := range args {
		v, err := rt.Evaluate(arg, scope)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// NewNative wraps a strict function of fixed arity as a Builtin.
// arity < 0 accepts any number of arguments.
func NewNative(name string, arity int, fn func(args []Object) (Object, error)) *Builtin {
	return &Builtin{Name: name, Fn: func(rt *Runtime, scope *Scope, args []*Evaluator) (Result, error) {
		if arity >= 0 && len(args) != arity {
			return Result{}, newError(ErrArity, "%s expects %d arguments, got %d", name, arity, len(args))
		}
		values, err := EvaluateArgs(rt, scope, args)
		if err != nil {
			return Result{}, err
		}
		v, err := fn(values)
		return Done(v), err
	}}
}

// NameEvaluator looks name up in the scope it runs in. Hosts use one per
// name as a stable root to evaluate or pin.
func NameEvaluator(name string) *Evaluator {
	return &Evaluator{Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		v, err := rt.EvaluateName(name, scope)
		return Done(v), err
	}}
}
