// Package engine drives a smeli document: it owns the root scope, parses
// the source and reveals its statements one at a time. Evaluation happens
// when a host asks for a value.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/config"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
	"github.com/smeli-lang/smeli-sub000/internal/parser"
	"github.com/smeli-lang/smeli-sub000/internal/plugins"
)

// statement is a parsed root statement and the binding it pushes, if any.
type statement struct {
	node    ast.Statement
	binding *evaluator.Binding
}

// Engine is not safe for concurrent use.
type Engine struct {
	rt     *evaluator.Runtime
	root   *evaluator.Scope
	logger *slog.Logger
	traits *evaluator.TraitRegistry
	file   string

	prelude []*evaluator.Binding
	host    []*evaluator.Binding
	plugins []*loadedPlugin

	source      string
	statements  []statement
	active      int
	diagnostics []*diagnostics.DiagnosticError

	// one root evaluator per name, so repeated reads share cache entries
	names   map[string]*evaluator.Evaluator
	watches map[*Watch]struct{}
	// names read since the document last changed, pinned so their values
	// stay alive for the host
	held   map[*evaluator.Evaluator]struct{}
	closed bool
}

type loadedPlugin struct {
	plugin  *plugins.Plugin
	binding *evaluator.Binding
	effects []*evaluator.Evaluator
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFile sets the file name reported in diagnostics.
func WithFile(name string) Option {
	return func(e *Engine) { e.file = name }
}

// WithBindings adds host bindings to the root scope, after the prelude and
// before any plugin.
func WithBindings(bindings ...*evaluator.Binding) Option {
	return func(e *Engine) { e.host = append(e.host, bindings...) }
}

// WithTraits replaces the default trait registry.
func WithTraits(traits *evaluator.TraitRegistry) Option {
	return func(e *Engine) { e.traits = traits }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		names:   map[string]*evaluator.Evaluator{},
		watches: map[*Watch]struct{}{},
		held:    map[*evaluator.Evaluator]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rt = evaluator.NewRuntime(evaluator.WithLogger(e.logger), evaluator.WithTraits(e.traits))
	e.root = evaluator.NewRootScope(e.rt)
	e.prelude = plugins.Prelude(e.rt.Traits)
	for _, b := range e.prelude {
		e.root.Push(b)
	}
	for _, b := range e.host {
		e.root.Push(b)
	}
	return e
}

func (e *Engine) Runtime() *evaluator.Runtime { return e.rt }
func (e *Engine) Root() *evaluator.Scope      { return e.root }
func (e *Engine) Source() string              { return e.source }

// Active returns how many statements are activated.
func (e *Engine) Active() int { return e.active }

// Len returns the number of parsed statements.
func (e *Engine) Len() int { return len(e.statements) }

// Names returns the names bound by the active statements, in source order.
func (e *Engine) Names() []string {
	var names []string
	for _, st := range e.statements[:e.active] {
		if st.binding != nil {
			names = append(names, st.binding.Name)
		}
	}
	return names
}

// Diagnostics returns the parse diagnostics of the current source.
func (e *Engine) Diagnostics() []*diagnostics.DiagnosticError {
	return append([]*diagnostics.DiagnosticError(nil), e.diagnostics...)
}

// Reset replaces the whole document. Nothing is activated afterwards.
func (e *Engine) Reset(code string) (err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	e.releaseReads()
	e.deactivate(0)
	e.source = code
	stmts, errs := parser.Parse(code, 0, e.file)
	e.statements = compile(stmts)
	e.diagnostics = errs
	e.rt.GC()
	e.logger.Info("reset", "statements", len(e.statements), "diagnostics", len(errs))
	return nil
}

// Step activates the next n statements, or deactivates the last -n. It
// stops at either end of the document.
func (e *Engine) Step(n int) (err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	e.releaseReads()
	e.moveTo(e.active + n)
	e.rt.GC()
	return e.runSideEffects()
}

// StepTo activates exactly the statements up to and including the one
// containing offset. An offset between statements lands on the next one.
func (e *Engine) StepTo(offset int) error {
	return e.Step(e.targetFor(offset) - e.active)
}

func (e *Engine) targetFor(offset int) int {
	for i, st := range e.statements {
		if _, end := st.node.Span(); offset <= end {
			return i + 1
		}
	}
	return len(e.statements)
}

// Patch replaces the source from offset on with code. Statements ending
// before offset keep their bindings; the rest are re-parsed and the
// previous activation count is restored as far as the new document allows.
func (e *Engine) Patch(offset int, code string) (err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	if offset < 0 || offset > len(e.source) {
		return fmt.Errorf("patch offset %d out of range [0, %d]", offset, len(e.source))
	}

	e.releaseReads()
	keep, boundary := e.boundary(offset)
	previous := e.active
	e.deactivate(keep)

	e.source = e.source[:offset] + code
	stmts, errs := parser.Parse(e.source, boundary, e.file)
	e.statements = append(e.statements[:keep:keep], compile(stmts)...)
	e.diagnostics = errs

	e.moveTo(previous)
	e.rt.GC()
	e.logger.Debug("patch", "offset", offset, "kept", keep, "reparsed", len(stmts), "active", e.active)
	return e.runSideEffects()
}

// boundary returns how many statements survive a patch at offset and the
// offset to re-parse from: the start of the first statement reaching
// offset, or the end of the last statement when none does.
func (e *Engine) boundary(offset int) (int, int) {
	for i, st := range e.statements {
		start, end := st.node.Span()
		if end >= offset {
			return i, start
		}
	}
	if n := len(e.statements); n > 0 {
		_, end := e.statements[n-1].node.Span()
		return n, end
	}
	return 0, 0
}

// NextMarker returns the start offset of the first marker comment after
// the activated statements.
func (e *Engine) NextMarker() (int, bool) {
	for _, st := range e.statements[e.active:] {
		if c, ok := st.node.(*ast.CommentStatement); ok && c.Marker {
			start, _ := c.Span()
			return start, true
		}
	}
	return 0, false
}

func compile(stmts []ast.Statement) []statement {
	out := make([]statement, len(stmts))
	for i, stmt := range stmts {
		out[i].node = stmt
		if bs, ok := stmt.(*ast.BindingStatement); ok {
			out[i].binding = evaluator.CompileBinding(bs)
		}
	}
	return out
}

// moveTo pushes or pops statements until target are active.
func (e *Engine) moveTo(target int) {
	if target < 0 {
		target = 0
	}
	if target > len(e.statements) {
		target = len(e.statements)
	}
	for e.active < target {
		if b := e.statements[e.active].binding; b != nil {
			e.root.Push(b)
		}
		e.active++
	}
	e.deactivate(target)
}

// deactivate pops statements, last first, until at most n are active.
func (e *Engine) deactivate(n int) {
	for e.active > n {
		e.active--
		if b := e.statements[e.active].binding; b != nil {
			e.root.Pop(b)
		}
	}
}

func (e *Engine) nameEvaluator(name string) *evaluator.Evaluator {
	if ev, ok := e.names[name]; ok {
		return ev
	}
	id := &ast.Identifier{Path: strings.Split(name, ".")}
	ev := evaluator.Compile(id)
	e.names[name] = ev
	return ev
}

// Evaluate returns the current value of name, which may be a dotted path.
// The value stays alive, and memoized, until the next Reset, Step, Patch or
// Close.
func (e *Engine) Evaluate(name string) (v evaluator.Object, err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	ev := e.nameEvaluator(name)
	if _, ok := e.held[ev]; !ok {
		e.rt.Pin(ev, e.root)
		e.held[ev] = struct{}{}
	}
	return e.rt.EvaluateRoot(ev, e.root)
}

// releaseReads unpins the names read by Evaluate and collects what only
// they kept alive.
func (e *Engine) releaseReads() {
	if len(e.held) == 0 {
		return
	}
	for ev := range e.held {
		e.rt.Unpin(ev, e.root)
	}
	clear(e.held)
	e.rt.GC()
}

// Call applies the function bound to name, which may be a dotted path, to
// already computed arguments. Disposable results are released before Call
// returns; Watch a binding to keep one alive.
func (e *Engine) Call(name string, args ...evaluator.Object) (v evaluator.Object, err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	ev := e.nameEvaluator(name)
	e.rt.Pin(ev, e.root)
	defer func() {
		e.rt.Unpin(ev, e.root)
		e.rt.GC()
	}()

	fn, err := e.rt.EvaluateRoot(ev, e.root)
	if err != nil {
		return nil, err
	}
	c, ok := fn.(evaluator.Callable)
	if !ok {
		return nil, evaluator.NewError(evaluator.ErrNotCallable, "%s is a %s, not a function", name, fn.Type())
	}
	argEvs := make([]*evaluator.Evaluator, len(args))
	for i, a := range args {
		argEvs[i] = evaluator.ConstEvaluator(a)
	}
	site, err := c.CallSite(argEvs)
	if err != nil {
		return nil, err
	}
	return e.rt.EvaluateRoot(site, e.root)
}

// Render evaluates the render binding of the scope at path, or of the root
// scope when path is empty. Like Evaluate, the result is valid until the
// document changes.
func (e *Engine) Render(path string) (evaluator.Object, error) {
	if path == "" {
		return e.Evaluate(config.RenderBindingName)
	}
	return e.Evaluate(path + "." + config.RenderBindingName)
}

// LoadPlugin pushes the namespace of p onto the root scope and keeps its
// side effects evaluated from then on.
func (e *Engine) LoadPlugin(p *plugins.Plugin) (err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	lp := &loadedPlugin{plugin: p, binding: p.Binding()}
	e.root.Push(lp.binding)
	for _, name := range p.SideEffects {
		ev := e.nameEvaluator(p.Name + "." + name)
		e.rt.Pin(ev, e.root)
		lp.effects = append(lp.effects, ev)
	}
	e.plugins = append(e.plugins, lp)
	e.logger.Info("plugin loaded", "plugin", p.Name, "side_effects", len(p.SideEffects))
	return e.runSideEffects()
}

func (e *Engine) runSideEffects() error {
	var first error
	for _, lp := range e.plugins {
		for _, ev := range lp.effects {
			if _, err := e.rt.EvaluateRoot(ev, e.root); err != nil {
				e.logger.Warn("side effect failed", "plugin", lp.plugin.Name, "error", err)
				if first == nil {
					first = err
				}
			}
		}
	}
	return first
}

// Close deactivates everything and disposes the root scope.
func (e *Engine) Close() (err error) {
	defer evaluator.RecoverFatal(&err)
	if e.closed {
		return nil
	}
	for w := range e.watches {
		w.Close()
	}
	e.releaseReads()
	for _, lp := range e.plugins {
		for _, ev := range lp.effects {
			e.rt.Unpin(ev, e.root)
		}
	}
	e.deactivate(0)
	for i := len(e.plugins) - 1; i >= 0; i-- {
		e.root.Pop(e.plugins[i].binding)
	}
	for i := len(e.host) - 1; i >= 0; i-- {
		e.root.Pop(e.host[i])
	}
	for i := len(e.prelude) - 1; i >= 0; i-- {
		e.root.Pop(e.prelude[i])
	}
	e.root.Dispose()
	e.rt.GC()
	e.closed = true
	return nil
}

func (e *Engine) checkOpen() {
	if e.closed {
		panic(&evaluator.FatalError{Message: "engine used after Close"})
	}
}
