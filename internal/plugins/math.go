package plugins

import (
	"math"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

const mathCode = `
tau: pi * 2
square: x => x * x
hypot: (a, b) => sqrt(square(a) + square(b))
clamp: (x, lo, hi) => min(max(x, lo), hi)
`

func unary(name string, fn func(float64) float64) *evaluator.Binding {
	return native(name, 1, func(args []evaluator.Object) (evaluator.Object, error) {
		x, err := argNumber(name, args, 0)
		if err != nil {
			return nil, err
		}
		return &evaluator.Number{Value: fn(x)}, nil
	})
}

func binary(name string, fn func(a, b float64) float64) *evaluator.Binding {
	return native(name, 2, func(args []evaluator.Object) (evaluator.Object, error) {
		a, err := argNumber(name, args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argNumber(name, args, 1)
		if err != nil {
			return nil, err
		}
		return &evaluator.Number{Value: fn(a, b)}, nil
	})
}

// Math is the math namespace: native functions plus a few definitions
// written in smeli on top of them.
func Math() *Plugin {
	return &Plugin{
		Name: "math",
		Bindings: []*evaluator.Binding{
			evaluator.NewValueBinding("pi", &evaluator.Number{Value: math.Pi}),
			evaluator.NewValueBinding("e", &evaluator.Number{Value: math.E}),
			unary("sqrt", math.Sqrt),
			unary("abs", math.Abs),
			unary("floor", math.Floor),
			unary("ceil", math.Ceil),
			unary("round", math.Round),
			unary("sin", math.Sin),
			unary("cos", math.Cos),
			unary("tan", math.Tan),
			unary("log", math.Log),
			unary("exp", math.Exp),
			binary("pow", math.Pow),
			binary("atan2", math.Atan2),
			binary("min", math.Min),
			binary("max", math.Max),
		},
		Code: mathCode,
	}
}
