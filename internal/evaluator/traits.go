package evaluator

import (
	"fmt"
	"strings"
)

// Overload is one implementation of a trait for a tuple of argument types.
type Overload struct {
	ArgumentTypes []ObjectType
	ReturnType    ObjectType
	Fn            func(args ...Object) (Object, error)
}

func (o Overload) signature(name string) string {
	types := make([]string, len(o.ArgumentTypes))
	for i, t := range o.ArgumentTypes {
		types[i] = string(t)
	}
	return fmt.Sprintf("%s(%s) -> %s", name, strings.Join(types, ", "), o.ReturnType)
}

func (o Overload) matches(args []Object) bool {
	if len(args) != len(o.ArgumentTypes) {
		return false
	}
	for i, t := range o.ArgumentTypes {
		if t != ANY && t != args[i].Type() {
			return false
		}
	}
	return true
}

// Validator checks an overload when it is registered.
type Validator func(o Overload) error

// Arity requires every overload to take n arguments.
func Arity(n int) Validator {
	return func(o Overload) error {
		if len(o.ArgumentTypes) != n {
			return fmt.Errorf("expected %d arguments, got %d", n, len(o.ArgumentTypes))
		}
		return nil
	}
}

// Returns requires every overload to return t.
func Returns(t ObjectType) Validator {
	return func(o Overload) error {
		if o.ReturnType != t {
			return fmt.Errorf("expected return type %s, got %s", t, o.ReturnType)
		}
		return nil
	}
}

// Trait is a named function dispatched on the exact runtime types of its
// arguments. The first matching overload in registration order wins.
type Trait struct {
	Name       string
	validators []Validator
	overloads  []Overload
}

func NewTrait(name string, validators ...Validator) *Trait {
	return &Trait{Name: name, validators: validators}
}

func (t *Trait) Type() ObjectType { return TRAIT_OBJ }
func (t *Trait) Inspect() string  { return "<trait " + t.Name + ">" }

// Implement registers o after running the trait's validators.
func (t *Trait) Implement(o Overload) error {
	for _, validate := range t.validators {
		if err := validate(o); err != nil {
			return fmt.Errorf("invalid implementation %s: %w", o.signature(t.Name), err)
		}
	}
	t.overloads = append(t.overloads, o)
	return nil
}

// MustImplement is Implement for built-in tables.
func (t *Trait) MustImplement(o Overload) *Trait {
	if err := t.Implement(o); err != nil {
		panic(err)
	}
	return t
}

func (t *Trait) Overloads() []Overload {
	return append([]Overload(nil), t.overloads...)
}

func (t *Trait) Call(args ...Object) (Object, error) {
	for _, o := range t.overloads {
		if o.matches(args) {
			return o.Fn(args...)
		}
	}
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = string(a.Type())
	}
	return nil, newError(ErrNoOverload, "no implementation of %s for (%s)", t.Name, strings.Join(types, ", "))
}

func (t *Trait) CallSite(args []*Evaluator) (*Evaluator, error) {
	return &Evaluator{Name: t.Name, Fn: func(rt *Runtime, scope *Scope) (Result, error) {
		values, err := EvaluateArgs(rt, scope, args)
		if err != nil {
			return Result{}, err
		}
		v, err := t.Call(values...)
		return Done(v), err
	}}, nil
}

// TraitRegistry holds the traits that operators dispatch to.
type TraitRegistry struct {
	traits map[string]*Trait
	order  []string
}

// Operator trait names.
var operatorTraits = map[string]string{
	"+":  "add",
	"-":  "sub",
	"*":  "mul",
	"/":  "div",
	"%":  "mod",
	"==": "equal",
	"!=": "notEqual",
	"<":  "less",
	">":  "greater",
	"<=": "lessEqual",
	">=": "greaterEqual",
}

// OperatorTrait returns the trait name an infix operator dispatches to.
func OperatorTrait(op string) (string, bool) {
	name, ok := operatorTraits[op]
	return name, ok
}

// NewTraitRegistry creates the operator traits, plus str and len, without
// any overloads.
func NewTraitRegistry() *TraitRegistry {
	r := &TraitRegistry{traits: map[string]*Trait{}}
	for _, name := range []string{"add", "sub", "mul", "div", "mod"} {
		r.Register(NewTrait(name, Arity(2)))
	}
	for _, name := range []string{"equal", "notEqual", "less", "greater", "lessEqual", "greaterEqual"} {
		r.Register(NewTrait(name, Arity(2), Returns(BOOLEAN_OBJ)))
	}
	r.Register(NewTrait("str", Arity(1), Returns(STRING_OBJ)))
	r.Register(NewTrait("len", Arity(1), Returns(NUMBER_OBJ)))
	return r
}

func (r *TraitRegistry) Register(t *Trait) {
	if _, ok := r.traits[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.traits[t.Name] = t
}

func (r *TraitRegistry) Get(name string) (*Trait, bool) {
	t, ok := r.traits[name]
	return t, ok
}

// All returns the traits in registration order.
func (r *TraitRegistry) All() []*Trait {
	all := make([]*Trait, len(r.order))
	for i, name := range r.order {
		all[i] = r.traits[name]
	}
	return all
}
