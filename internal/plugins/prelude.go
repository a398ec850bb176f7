package plugins

import (
	"github.com/google/uuid"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

// Prelude returns the bindings every program starts with: the traits of
// the registry under their own names plus the core builtins.
func Prelude(traits *evaluator.TraitRegistry) []*evaluator.Binding {
	var bindings []*evaluator.Binding
	for _, t := range traits.All() {
		bindings = append(bindings, evaluator.NewValueBinding(t.Name, t))
	}

	bindings = append(bindings,
		evaluator.NewValueBinding("nil", evaluator.NIL),
		native("not", 1, func(args []evaluator.Object) (evaluator.Object, error) {
			b, err := argBool("not", args[0])
			if err != nil {
				return nil, err
			}
			return evaluator.NativeBool(!b), nil
		}),
		builtinBinding("and", shortCircuit("and", false)),
		builtinBinding("or", shortCircuit("or", true)),
		builtinBinding("using", builtinUsing),
		native("list", -1, func(args []evaluator.Object) (evaluator.Object, error) {
			return &evaluator.List{Elements: append([]evaluator.Object(nil), args...)}, nil
		}),
		native("at", 2, builtinAt),
		native("names", 1, func(args []evaluator.Object) (evaluator.Object, error) {
			s, ok := args[0].(*evaluator.Scope)
			if !ok {
				return nil, evaluator.NewError(evaluator.ErrType, "names expects a Scope, got %s", args[0].Type())
			}
			var out []evaluator.Object
			for _, name := range s.Names() {
				out = append(out, &evaluator.String{Value: name})
			}
			return &evaluator.List{Elements: out}, nil
		}),
		native("uuid", 0, func(args []evaluator.Object) (evaluator.Object, error) {
			return &evaluator.String{Value: uuid.NewString()}, nil
		}),
	)
	return bindings
}

// shortCircuit evaluates its second argument only when the first does not
// already decide the result.
func shortCircuit(name string, decides bool) evaluator.BuiltinFunction {
	return func(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
		if err := checkArity(name, args, 2); err != nil {
			return evaluator.Result{}, err
		}
		for _, arg := range args {
			v, err := rt.Evaluate(arg, scope)
			if err != nil {
				return evaluator.Result{}, err
			}
			b, err := argBool(name, v)
			if err != nil {
				return evaluator.Result{}, err
			}
			if b == decides {
				return evaluator.Done(evaluator.NativeBool(decides)), nil
			}
		}
		return evaluator.Done(evaluator.NativeBool(!decides)), nil
	}
}

// using(name, value, body) evaluates body with name bound to value for the
// duration of that evaluation only.
func builtinUsing(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("using", args, 3); err != nil {
		return evaluator.Result{}, err
	}
	values, err := evaluator.EvaluateArgs(rt, scope, args[:2])
	if err != nil {
		return evaluator.Result{}, err
	}
	name, err := argString("using", values, 0)
	if err != nil {
		return evaluator.Result{}, err
	}
	v, err := rt.EvaluateWith(args[2], scope, map[string]evaluator.Object{name: values[1]})
	return evaluator.Done(v), err
}

func builtinAt(args []evaluator.Object) (evaluator.Object, error) {
	list, ok := args[0].(*evaluator.List)
	if !ok {
		return nil, evaluator.NewError(evaluator.ErrType, "at expects a List, got %s", args[0].Type())
	}
	i, err := argNumber("at", args, 1)
	if err != nil {
		return nil, err
	}
	idx := int(i)
	if float64(idx) != i || idx < 0 || idx >= len(list.Elements) {
		return nil, evaluator.NewError(evaluator.ErrType, "at: index %v out of range for list of %d", i, len(list.Elements))
	}
	return list.Elements[idx], nil
}
