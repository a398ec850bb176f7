package plugins

import (
	"fmt"
	"sort"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
	"github.com/smeli-lang/smeli-sub000/internal/parser"
)

// Plugin extends a program with a namespace of bindings. Code is smeli
// source compiled into the same namespace, after Bindings, so it can build on
// them. SideEffects names bindings of the namespace the host keeps evaluated.
type Plugin struct {
	Name        string
	SideEffects []string
	Bindings    []*evaluator.Binding
	Code        string
}

// Binding returns the namespace binding for p. Its value is a scope created
// in the scope the binding is evaluated in and owned by that evaluation.
func (p *Plugin) Binding() *evaluator.Binding {
	stmts, errs := parser.Parse(p.Code, 0, p.Name+".smeli")
	code := evaluator.CompileStatements(stmts)
	bindings := p.Bindings

	return evaluator.NewFuncBinding(p.Name, func(rt *evaluator.Runtime, scope *evaluator.Scope) (evaluator.Result, error) {
		if len(errs) > 0 {
			return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "plugin %s: %s", p.Name, errs[0].Error())
		}
		ns := scope.NewChild(nil)
		rt.Acquire(ns)
		for _, b := range bindings {
			ns.Push(b)
		}
		for _, b := range code {
			ns.Push(b)
		}
		rt.Logger().Debug("plugin namespace", "plugin", p.Name, "bindings", len(bindings)+len(code))
		return evaluator.Done(ns), nil
	})
}

var builtin = map[string]func() *Plugin{
	"math": Math,
	"yaml": YAML,
	"sql":  SQL,
}

// Lookup returns a fresh instance of the built-in plugin called name.
func Lookup(name string) (*Plugin, error) {
	mk, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (available: %v)", name, Available())
	}
	return mk(), nil
}

// Available lists the built-in plugin names, sorted.
func Available() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func native(name string, arity int, fn func(args []evaluator.Object) (evaluator.Object, error)) *evaluator.Binding {
	return evaluator.NewValueBinding(name, evaluator.NewNative(name, arity, fn))
}

func builtinBinding(name string, fn evaluator.BuiltinFunction) *evaluator.Binding {
	return evaluator.NewValueBinding(name, &evaluator.Builtin{Name: name, Fn: fn})
}

func argNumber(fn string, args []evaluator.Object, i int) (float64, error) {
	n, ok := args[i].(*evaluator.Number)
	if !ok {
		return 0, evaluator.NewError(evaluator.ErrType, "%s: argument %d must be a Number, got %s", fn, i+1, args[i].Type())
	}
	return n.Value, nil
}

func argString(fn string, args []evaluator.Object, i int) (string, error) {
	s, ok := args[i].(*evaluator.String)
	if !ok {
		return "", evaluator.NewError(evaluator.ErrType, "%s: argument %d must be a String, got %s", fn, i+1, args[i].Type())
	}
	return s.Value, nil
}

func argBool(fn string, v evaluator.Object) (bool, error) {
	b, ok := v.(*evaluator.Boolean)
	if !ok {
		return false, evaluator.NewError(evaluator.ErrType, "%s expects Bool arguments, got %s", fn, v.Type())
	}
	return b.Value, nil
}

func checkArity(fn string, args []*evaluator.Evaluator, n int) error {
	if len(args) != n {
		return evaluator.NewError(evaluator.ErrArity, "%s expects %d arguments, got %d", fn, n, len(args))
	}
	return nil
}
