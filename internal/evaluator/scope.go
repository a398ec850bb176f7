package evaluator

import (
	"sort"
	"strings"
)

// Scope is a naming environment: a LIFO stack of bindings per name, a
// lexical parent and an independent prefix scope. Lookups go local, then
// prefix (keeping the calling scope as evaluation context), then parent.
type Scope struct {
	rt       *Runtime
	parent   *Scope
	prefix   *Scope
	bindings map[string][]*Binding

	// entries computed in this scope, by evaluator
	entries map[*Evaluator]EntryID
	// slots are placeholder evaluators, one per name looked up here. Their
	// entries are read by every lookup of the name and invalidated by every
	// push or pop of it.
	slots map[string]*Evaluator

	children []*Scope
	disposed bool
}

// NewRootScope creates a scope without parent.
func NewRootScope(rt *Runtime) *Scope {
	return newScope(rt, nil, nil)
}

func newScope(rt *Runtime, parent, prefix *Scope) *Scope {
	return &Scope{
		rt:       rt,
		parent:   parent,
		prefix:   prefix,
		bindings: map[string][]*Binding{},
		entries:  map[*Evaluator]EntryID{},
		slots:    map[string]*Evaluator{},
	}
}

// NewChild creates a scope nested in s with an optional prefix. The child
// must be disposed before s is.
func (s *Scope) NewChild(prefix *Scope) *Scope {
	if s.disposed {
		fatalf("new child of a disposed scope")
	}
	child := newScope(s.rt, s, prefix)
	s.children = append(s.children, child)
	return child
}

func (s *Scope) Type() ObjectType { return SCOPE_OBJ }
func (s *Scope) Inspect() string  { return "{" + strings.Join(s.Names(), ", ") + "}" }

func (s *Scope) Runtime() *Runtime { return s.rt }
func (s *Scope) Parent() *Scope    { return s.parent }
func (s *Scope) Prefix() *Scope    { return s.prefix }

// Root returns the outermost lexical ancestor.
func (s *Scope) Root() *Scope {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// Names lists the names bound locally, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.bindings))
	for name, stack := range s.bindings {
		if len(stack) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Push makes b the current binding for its name. Readers that resolved the
// name through this scope are invalidated.
func (s *Scope) Push(b *Binding) {
	if s.disposed {
		fatalf("push of %q onto a disposed scope", b.Name)
	}
	s.bindings[b.Name] = append(s.bindings[b.Name], b)
	s.invalidateSlot(b.Name)
	s.rt.logger.Debug("push", "name", b.Name, "depth", len(s.bindings[b.Name]))
}

// Pop removes b, which must be the current binding for its name. Values
// computed from b are invalidated, and so disposed, before Pop returns.
func (s *Scope) Pop(b *Binding) {
	stack := s.bindings[b.Name]
	if len(stack) == 0 || stack[len(stack)-1] != b {
		fatalf("pop of %q does not match the binding on top of its stack", b.Name)
	}
	stack[len(stack)-1] = nil
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(s.bindings, b.Name)
	} else {
		s.bindings[b.Name] = stack
	}
	s.invalidateSlot(b.Name)
	s.rt.Deprecate(b.Evaluator)
	s.rt.logger.Debug("pop", "name", b.Name, "depth", len(stack))
}

// Lookup finds the binding name resolves to from s, without evaluating it.
func (s *Scope) Lookup(name string) (*Binding, error) {
	b, _, ok := s.resolve(name, s)
	if !ok {
		return nil, newError(ErrUnresolvedName, "unresolved name %q", name)
	}
	return b, nil
}

// Evaluate resolves and evaluates name from s.
func (s *Scope) Evaluate(name string) (Object, error) {
	return s.rt.EvaluateName(name, s)
}

// resolve returns the binding for name and the scope to evaluate it in.
// Bindings already being evaluated in ctx are skipped, so a binding that
// refers to its own name sees the outer one.
func (s *Scope) resolve(name string, ctx *Scope) (*Binding, *Scope, bool) {
	s.track(name)

	stack := s.bindings[name]
	for i := len(stack) - 1; i >= 0; i-- {
		if !s.rt.isEvaluating(stack[i].Evaluator, ctx) {
			return stack[i], ctx, true
		}
	}
	if s.prefix != nil {
		if b, c, ok := s.prefix.resolve(name, ctx); ok {
			return b, c, true
		}
	}
	if s.parent != nil {
		return s.parent.resolve(name, s.parent)
	}
	return nil, nil, false
}

// track makes the running entry depend on the slot for name in s.
func (s *Scope) track(name string) {
	rt := s.rt
	if len(rt.stack) == 0 || s.disposed {
		return
	}
	ev, ok := s.slots[name]
	if !ok {
		ev = &Evaluator{Name: name, Fn: func(*Runtime, *Scope) (Result, error) { return Done(NIL), nil }}
		s.slots[name] = ev
	}
	id := rt.entryFor(ev, s)
	e := rt.entries[id]
	e.value, e.done = NIL, true
	rt.link(id)
}

func (s *Scope) invalidateSlot(name string) {
	ev, ok := s.slots[name]
	if !ok {
		return
	}
	if id, ok := s.entries[ev]; ok {
		s.rt.invalidate(id, 0)
	}
}

// ClearCache clears child scopes, then invalidates and forgets every entry
// computed in s. Children still alive afterwards were not owned by any of
// those entries, which is fatal.
func (s *Scope) ClearCache() {
	for _, child := range append([]*Scope(nil), s.children...) {
		child.ClearCache()
	}

	ids := make(idSet, len(s.entries))
	for _, id := range s.entries {
		ids[id] = struct{}{}
	}
	for _, id := range ids.sorted() {
		if e := s.rt.entries[id]; e != nil && e.scope == s {
			s.rt.release(id)
		}
	}

	if len(s.children) > 0 {
		fatalf("scope still has %d live child scopes after clearing its cache", len(s.children))
	}
}

// Dispose clears the cache of s and detaches it from its parent.
func (s *Scope) Dispose() {
	if s.disposed {
		fatalf("scope disposed twice")
	}
	s.ClearCache()
	s.disposed = true
	if p := s.parent; p != nil {
		for i, child := range p.children {
			if child == s {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
}

func (s *Scope) Disposed() bool { return s.disposed }
