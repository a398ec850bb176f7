package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/prettyprinter"
)

// ObjectType is the runtime type tag of a value. Trait dispatch compares
// tags for exact equality.
type ObjectType string

const (
	NUMBER_OBJ     = "Number"
	STRING_OBJ     = "String"
	BOOLEAN_OBJ    = "Bool"
	NIL_OBJ        = "Nil"
	SCOPE_OBJ      = "Scope"
	FUNCTION_OBJ   = "Function"
	BUILTIN_OBJ    = "Builtin"
	TRAIT_OBJ      = "Trait"
	EXPRESSION_OBJ = "Expression"
	LIST_OBJ       = "List"
	RESOURCE_OBJ   = "Resource"

	// ANY matches every tag in an overload signature.
	ANY ObjectType = "*"
)

type Object interface {
	Type() ObjectType
	Inspect() string
}

// Disposable values own something that must be released exactly once.
type Disposable interface {
	Dispose()
}

// Callable values can be applied to argument evaluators. Arguments arrive
// unevaluated; the returned evaluator runs in the caller's scope.
type Callable interface {
	Object
	CallSite(args []*Evaluator) (*Evaluator, error)
}

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
	NIL   = &Nil{}
)

func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }

type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }

type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	parts := make([]string, len(l.Elements))
	for i, el := range l.Elements {
		parts[i] = el.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Expression is the unevaluated source bound to a name, obtained with @name.
type Expression struct {
	Node ast.Expression
}

func (e *Expression) Type() ObjectType { return EXPRESSION_OBJ }
func (e *Expression) Inspect() string  { return prettyprinter.Print(e.Node) }

// Resource wraps an external handle. Close runs once, on the first Dispose.
type Resource struct {
	Kind   string
	Handle interface{}
	Close  func() error

	disposed bool
	closeErr error
}

func NewResource(kind string, handle interface{}, closeFn func() error) *Resource {
	return &Resource{Kind: kind, Handle: handle, Close: closeFn}
}

func (r *Resource) Type() ObjectType { return RESOURCE_OBJ }
func (r *Resource) Inspect() string {
	if r.disposed {
		return fmt.Sprintf("<%s closed>", r.Kind)
	}
	return fmt.Sprintf("<%s>", r.Kind)
}

func (r *Resource) Dispose() {
	if r.disposed {
		fatalf("%s disposed twice", r.Kind)
	}
	r.disposed = true
	if r.Close != nil {
		r.closeErr = r.Close()
	}
}

func (r *Resource) Disposed() bool { return r.disposed }

// CloseError is the error returned by Close, if any.
func (r *Resource) CloseError() error { return r.closeErr }

// Closure is a function value produced by a lambda.
type Closure struct {
	Params []string
	Body   *Evaluator
	Scope  *Scope
}

func (c *Closure) Type() ObjectType { return FUNCTION_OBJ }
func (c *Closure) Inspect() string {
	params := "(" + strings.Join(c.Params, ", ") + ")"
	if len(c.Params) == 1 {
		params = c.Params[0]
	}
	body := "..."
	if c.Body != nil && c.Body.Source != nil {
		body = prettyprinter.Print(c.Body.Source)
	}
	return params + " => " + body
}

// BuiltinFunction receives its arguments unevaluated, so builtins decide
// what to evaluate and when.
type BuiltinFunction func(rt *Runtime, scope *Scope, args []*Evaluator) (Result, error)

type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return "<builtin " + b.Name + ">" }
