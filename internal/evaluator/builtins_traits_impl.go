package evaluator

import (
	"math"
	"unicode/utf8"
)

// DefaultTraits returns a registry with the core implementations for
// numbers, strings, booleans and lists.
func DefaultTraits() *TraitRegistry {
	r := NewTraitRegistry()
	RegisterCoreImplementations(r)
	return r
}

func numberOp(fn func(a, b float64) float64) Overload {
	return Overload{
		ArgumentTypes: []ObjectType{NUMBER_OBJ, NUMBER_OBJ},
		ReturnType:    NUMBER_OBJ,
		Fn: func(args ...Object) (Object, error) {
			return &Number{Value: fn(args[0].(*Number).Value, args[1].(*Number).Value)}, nil
		},
	}
}

func numberCmp(fn func(a, b float64) bool) Overload {
	return Overload{
		ArgumentTypes: []ObjectType{NUMBER_OBJ, NUMBER_OBJ},
		ReturnType:    BOOLEAN_OBJ,
		Fn: func(args ...Object) (Object, error) {
			return NativeBool(fn(args[0].(*Number).Value, args[1].(*Number).Value)), nil
		},
	}
}

func stringCmp(fn func(a, b string) bool) Overload {
	return Overload{
		ArgumentTypes: []ObjectType{STRING_OBJ, STRING_OBJ},
		ReturnType:    BOOLEAN_OBJ,
		Fn: func(args ...Object) (Object, error) {
			return NativeBool(fn(args[0].(*String).Value, args[1].(*String).Value)), nil
		},
	}
}

func RegisterCoreImplementations(r *TraitRegistry) {
	must := func(name string, overloads ...Overload) {
		t, ok := r.Get(name)
		if !ok {
			panic("unknown trait " + name)
		}
		for _, o := range overloads {
			t.MustImplement(o)
		}
	}

	must("add",
		numberOp(func(a, b float64) float64 { return a + b }),
		Overload{
			ArgumentTypes: []ObjectType{STRING_OBJ, STRING_OBJ},
			ReturnType:    STRING_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return &String{Value: args[0].(*String).Value + args[1].(*String).Value}, nil
			},
		},
		Overload{
			ArgumentTypes: []ObjectType{LIST_OBJ, LIST_OBJ},
			ReturnType:    LIST_OBJ,
			Fn: func(args ...Object) (Object, error) {
				a, b := args[0].(*List).Elements, args[1].(*List).Elements
				out := make([]Object, 0, len(a)+len(b))
				return &List{Elements: append(append(out, a...), b...)}, nil
			},
		},
	)
	must("sub", numberOp(func(a, b float64) float64 { return a - b }))
	must("mul", numberOp(func(a, b float64) float64 { return a * b }))
	must("div", numberOp(func(a, b float64) float64 { return a / b }))
	must("mod", numberOp(math.Mod))

	must("equal",
		numberCmp(func(a, b float64) bool { return a == b }),
		stringCmp(func(a, b string) bool { return a == b }),
		Overload{
			ArgumentTypes: []ObjectType{BOOLEAN_OBJ, BOOLEAN_OBJ},
			ReturnType:    BOOLEAN_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return NativeBool(args[0].(*Boolean).Value == args[1].(*Boolean).Value), nil
			},
		},
		// identity for everything else
		Overload{
			ArgumentTypes: []ObjectType{ANY, ANY},
			ReturnType:    BOOLEAN_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return NativeBool(args[0] == args[1]), nil
			},
		},
	)
	must("notEqual", Overload{
		ArgumentTypes: []ObjectType{ANY, ANY},
		ReturnType:    BOOLEAN_OBJ,
		Fn: func(args ...Object) (Object, error) {
			eq, _ := r.Get("equal")
			v, err := eq.Call(args...)
			if err != nil {
				return nil, err
			}
			return NativeBool(!v.(*Boolean).Value), nil
		},
	})

	must("less", numberCmp(func(a, b float64) bool { return a < b }), stringCmp(func(a, b string) bool { return a < b }))
	must("greater", numberCmp(func(a, b float64) bool { return a > b }), stringCmp(func(a, b string) bool { return a > b }))
	must("lessEqual", numberCmp(func(a, b float64) bool { return a <= b }), stringCmp(func(a, b string) bool { return a <= b }))
	must("greaterEqual", numberCmp(func(a, b float64) bool { return a >= b }), stringCmp(func(a, b string) bool { return a >= b }))

	must("str", Overload{
		ArgumentTypes: []ObjectType{ANY},
		ReturnType:    STRING_OBJ,
		Fn: func(args ...Object) (Object, error) {
			return &String{Value: args[0].Inspect()}, nil
		},
	})

	must("len",
		Overload{
			ArgumentTypes: []ObjectType{STRING_OBJ},
			ReturnType:    NUMBER_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return &Number{Value: float64(utf8.RuneCountInString(args[0].(*String).Value))}, nil
			},
		},
		Overload{
			ArgumentTypes: []ObjectType{LIST_OBJ},
			ReturnType:    NUMBER_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return &Number{Value: float64(len(args[0].(*List).Elements))}, nil
			},
		},
		Overload{
			ArgumentTypes: []ObjectType{SCOPE_OBJ},
			ReturnType:    NUMBER_OBJ,
			Fn: func(args ...Object) (Object, error) {
				return &Number{Value: float64(len(args[0].(*Scope).Names()))}, nil
			},
		},
	)
}
