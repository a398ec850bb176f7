package evaluator

import (
	"log/slog"
	"sort"
)

// EntryID addresses a cache entry in the runtime arena.
type EntryID int

type idSet map[EntryID]struct{}

func (s idSet) sorted() []EntryID {
	ids := make([]EntryID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// stage is one step of an entry's evaluation with the entries it read and
// the disposables it owns, in acquisition order.
type stage struct {
	ev    *Evaluator
	deps  idSet
	owned []Disposable
}

// cacheEntry memoizes one (scope, evaluator) pair.
type cacheEntry struct {
	ev     *Evaluator
	scope  *Scope
	value  Object
	done   bool
	stages []*stage
	// next is the evaluator to resume from after a partial invalidation
	next       *Evaluator
	references idSet
	pins       int
	evaluating bool
}

func (e *cacheEntry) stageReading(id EntryID) int {
	for i, st := range e.stages {
		if _, ok := st.deps[id]; ok {
			return i
		}
	}
	return -1
}

// frame is an evaluation running outside the cache.
type frame struct {
	ev    *Evaluator
	scope *Scope
}

// Stats counts runtime activity.
type Stats struct {
	Entries       int // live entries
	Stages        int // stage functions run
	Hits          int // reads served from cache
	Invalidations int
	Collected     int
	Disposed      int
}

// Runtime owns the cache of every scope created from it along with the
// stack of entries being evaluated. It is not safe for concurrent use.
type Runtime struct {
	Traits *TraitRegistry

	entries      []*cacheEntry
	free         []EntryID
	unreferenced idSet
	byEvaluator  map[*Evaluator]idSet

	stack     []EntryID
	uncached  []frame
	overrides []map[string]Object
	detached  []Disposable

	stats  Stats
	logger *slog.Logger
}

type RuntimeOption func(*Runtime)

func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(rt *Runtime) { rt.logger = logger }
}

func WithTraits(traits *TraitRegistry) RuntimeOption {
	return func(rt *Runtime) { rt.Traits = traits }
}

func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		unreferenced: idSet{},
		byEvaluator:  map[*Evaluator]idSet{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.Traits == nil {
		rt.Traits = DefaultTraits()
	}
	return rt
}

func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

func (rt *Runtime) Stats() Stats {
	s := rt.stats
	s.Entries = len(rt.entries) - len(rt.free)
	return s
}

// EvaluateRoot evaluates ev in scope as the root of a pass, then collects
// every entry no longer referenced. Results of an unpinned root are collected
// too; Pin the root to keep it memoized across passes.
func (rt *Runtime) EvaluateRoot(ev *Evaluator, scope *Scope) (Object, error) {
	if len(rt.stack) > 0 || len(rt.uncached) > 0 {
		fatalf("root evaluation started while %d entries are evaluating", len(rt.stack)+len(rt.uncached))
	}
	before := 0
	if id, ok := scope.entries[ev]; ok {
		before = len(rt.entries[id].references)
	}

	v, err := rt.Evaluate(ev, scope)

	if id, ok := scope.entries[ev]; ok && len(rt.entries[id].references) > before {
		fatalf("root %q was read reentrantly", ev.Name)
	}
	rt.GC()
	return v, err
}

// Evaluate returns the value of ev in scope, from cache when possible, and
// records that the entry being evaluated depends on it.
func (rt *Runtime) Evaluate(ev *Evaluator, scope *Scope) (Object, error) {
	if ev == nil {
		fatalf("evaluate called with a nil evaluator")
	}
	if ev.Const != nil {
		return ev.Const, nil
	}
	if len(rt.overrides) > 0 {
		return rt.evaluateUncached(ev, scope)
	}

	id := rt.entryFor(ev, scope)
	e := rt.entries[id]
	if e.evaluating {
		return nil, withFrame(newError(ErrCircular, "circular reference while evaluating %s", describeEvaluator(ev)), ev.Name)
	}
	rt.link(id)
	if e.done {
		rt.stats.Hits++
		return e.value, nil
	}
	v, err := rt.run(id)
	if err != nil {
		return nil, withFrame(err, ev.Name)
	}
	return v, nil
}

// EvaluateName resolves name from scope, honoring transient overrides, and
// evaluates the binding found.
func (rt *Runtime) EvaluateName(name string, scope *Scope) (Object, error) {
	for i := len(rt.overrides) - 1; i >= 0; i-- {
		if v, ok := rt.overrides[i][name]; ok {
			return v, nil
		}
	}
	b, ctx, ok := scope.resolve(name, scope)
	if !ok {
		return nil, newError(ErrUnresolvedName, "unresolved name %q", name)
	}
	return rt.Evaluate(b.Evaluator, ctx)
}

// EvaluateWith evaluates ev with names bound to fixed values for the dynamic
// extent of the call. Nothing computed while any override is active is
// cached.
func (rt *Runtime) EvaluateWith(ev *Evaluator, scope *Scope, overrides map[string]Object) (Object, error) {
	rt.overrides = append(rt.overrides, overrides)
	defer func() { rt.overrides = rt.overrides[:len(rt.overrides)-1] }()
	return rt.evaluateUncached(ev, scope)
}

// Acquire hands d to the stage currently running. It is disposed when that
// stage is discarded. Outside any evaluation d is disposed by the next GC.
func (rt *Runtime) Acquire(d Disposable) {
	if len(rt.stack) == 0 {
		rt.detached = append(rt.detached, d)
		return
	}
	st := rt.currentStage()
	st.owned = append(st.owned, d)
}

// Pin keeps the entry for (ev, scope) alive across GC passes until Unpin.
func (rt *Runtime) Pin(ev *Evaluator, scope *Scope) {
	if ev.Const != nil {
		return
	}
	id := rt.entryFor(ev, scope)
	rt.entries[id].pins++
	delete(rt.unreferenced, id)
}

func (rt *Runtime) Unpin(ev *Evaluator, scope *Scope) {
	id, ok := scope.entries[ev]
	if !ok {
		return
	}
	e := rt.entries[id]
	if e.pins == 0 {
		fatalf("unpin of %s without a matching pin", describeEvaluator(ev))
	}
	e.pins--
	rt.checkUnreferenced(id)
}

// Deprecate invalidates every entry computed from ev, in any scope.
func (rt *Runtime) Deprecate(ev *Evaluator) {
	for _, id := range rt.byEvaluator[ev].sorted() {
		rt.invalidate(id, 0)
	}
}

// GC repeatedly collects unreferenced entries until none remain, then
// disposes values acquired outside any evaluation.
func (rt *Runtime) GC() {
	if len(rt.stack) > 0 {
		fatalf("gc while %d entries are evaluating", len(rt.stack))
	}
	collected := 0
	for len(rt.unreferenced) > 0 {
		for _, id := range rt.unreferenced.sorted() {
			if _, ok := rt.unreferenced[id]; ok {
				rt.release(id)
				collected++
			}
		}
	}
	for i := len(rt.detached) - 1; i >= 0; i-- {
		rt.dispose(rt.detached[i])
	}
	rt.detached = nil
	rt.stats.Collected += collected
	if collected > 0 {
		rt.logger.Debug("gc", "collected", collected, "live", len(rt.entries)-len(rt.free))
	}
}

func (rt *Runtime) entryFor(ev *Evaluator, scope *Scope) EntryID {
	if scope.disposed {
		fatalf("evaluation in a disposed scope")
	}
	if id, ok := scope.entries[ev]; ok {
		return id
	}
	e := &cacheEntry{ev: ev, scope: scope, references: idSet{}}
	var id EntryID
	if n := len(rt.free); n > 0 {
		id = rt.free[n-1]
		rt.free = rt.free[:n-1]
		rt.entries[id] = e
	} else {
		id = EntryID(len(rt.entries))
		rt.entries = append(rt.entries, e)
	}
	scope.entries[ev] = id
	if rt.byEvaluator[ev] == nil {
		rt.byEvaluator[ev] = idSet{}
	}
	rt.byEvaluator[ev][id] = struct{}{}
	rt.unreferenced[id] = struct{}{}
	return id
}

func (rt *Runtime) currentStage() *stage {
	e := rt.entries[rt.stack[len(rt.stack)-1]]
	return e.stages[len(e.stages)-1]
}

// link records that the running stage read id.
func (rt *Runtime) link(id EntryID) {
	if len(rt.stack) == 0 {
		return
	}
	caller := rt.stack[len(rt.stack)-1]
	rt.currentStage().deps[id] = struct{}{}
	rt.entries[id].references[caller] = struct{}{}
	delete(rt.unreferenced, id)
}

func (rt *Runtime) run(id EntryID) (Object, error) {
	e := rt.entries[id]
	e.evaluating = true
	rt.stack = append(rt.stack, id)
	defer func() {
		rt.stack = rt.stack[:len(rt.stack)-1]
		e.evaluating = false
	}()

	next := e.next
	if next == nil {
		next = e.ev
	}
	e.next = nil
	for {
		if next.Const != nil {
			e.value, e.done = next.Const, true
			return e.value, nil
		}
		e.stages = append(e.stages, &stage{ev: next, deps: idSet{}})
		rt.stats.Stages++
		res, err := next.Fn(rt, e.scope)
		if err != nil {
			rt.discardStage(id, len(e.stages)-1)
			e.next = next
			return nil, err
		}
		if res.Next == nil {
			if res.Value == nil {
				res.Value = NIL
			}
			e.value, e.done = res.Value, true
			return e.value, nil
		}
		next = res.Next
	}
}

// evaluateUncached runs ev without creating entries. Disposables acquired on
// the way go to the enclosing stage and are released again on error.
func (rt *Runtime) evaluateUncached(ev *Evaluator, scope *Scope) (Object, error) {
	if ev.Const != nil {
		return ev.Const, nil
	}
	for _, f := range rt.uncached {
		if f.ev == ev && f.scope == scope {
			return nil, withFrame(newError(ErrCircular, "circular reference while evaluating %s", describeEvaluator(ev)), ev.Name)
		}
	}
	rt.uncached = append(rt.uncached, frame{ev: ev, scope: scope})
	defer func() { rt.uncached = rt.uncached[:len(rt.uncached)-1] }()

	owner, mark := rt.ownerMark()
	next := ev
	for {
		if next.Const != nil {
			return next.Const, nil
		}
		res, err := next.Fn(rt, scope)
		if err != nil {
			rt.unwind(owner, mark)
			return nil, withFrame(err, ev.Name)
		}
		if res.Next == nil {
			if res.Value == nil {
				res.Value = NIL
			}
			return res.Value, nil
		}
		next = res.Next
	}
}

func (rt *Runtime) ownerMark() (*stage, int) {
	if len(rt.stack) == 0 {
		return nil, len(rt.detached)
	}
	st := rt.currentStage()
	return st, len(st.owned)
}

func (rt *Runtime) unwind(owner *stage, mark int) {
	list := &rt.detached
	if owner != nil {
		list = &owner.owned
	}
	if mark > len(*list) {
		return
	}
	acquired := (*list)[mark:]
	*list = (*list)[:mark]
	for i := len(acquired) - 1; i >= 0; i-- {
		rt.dispose(acquired[i])
	}
}

// isEvaluating reports whether ev is currently running in scope.
func (rt *Runtime) isEvaluating(ev *Evaluator, scope *Scope) bool {
	if id, ok := scope.entries[ev]; ok && rt.entries[id].evaluating {
		return true
	}
	for _, f := range rt.uncached {
		if f.ev == ev && f.scope == scope {
			return true
		}
	}
	return false
}

// invalidate discards the value of id and its stages from index from on.
// Readers are invalidated first, from the stage in which they read id.
func (rt *Runtime) invalidate(id EntryID, from int) {
	e := rt.entries[id]
	if e == nil {
		return
	}
	if e.evaluating {
		fatalf("invalidation of %s while it is being evaluated", describeEvaluator(e.ev))
	}
	rt.stats.Invalidations++

	for _, r := range e.references.sorted() {
		reader := rt.entries[r]
		if reader == nil {
			continue
		}
		if s := reader.stageReading(id); s >= 0 {
			rt.invalidate(r, s)
		}
	}

	e.value, e.done = nil, false
	if from >= len(e.stages) {
		return
	}
	resume := e.stages[from].ev
	for i := len(e.stages) - 1; i >= from; i-- {
		rt.discardStage(id, i)
	}
	if from == 0 {
		resume = nil
	}
	e.next = resume
}

// discardStage drops stage i (and anything after it), unlinking its
// dependencies and disposing what it owns in reverse order.
func (rt *Runtime) discardStage(id EntryID, i int) {
	e := rt.entries[id]
	st := e.stages[i]
	e.stages = e.stages[:i]
	for _, dep := range st.deps.sorted() {
		if e.stageReading(dep) >= 0 {
			continue
		}
		if d := rt.entries[dep]; d != nil {
			delete(d.references, id)
			rt.checkUnreferenced(dep)
		}
	}
	for j := len(st.owned) - 1; j >= 0; j-- {
		rt.dispose(st.owned[j])
	}
}

func (rt *Runtime) checkUnreferenced(id EntryID) {
	e := rt.entries[id]
	if e != nil && e.pins == 0 && len(e.references) == 0 {
		rt.unreferenced[id] = struct{}{}
	}
}

func (rt *Runtime) dispose(d Disposable) {
	rt.stats.Disposed++
	d.Dispose()
}

// release invalidates id and forgets it.
func (rt *Runtime) release(id EntryID) {
	e := rt.entries[id]
	if e == nil {
		return
	}
	rt.invalidate(id, 0)
	delete(rt.unreferenced, id)
	if cur, ok := e.scope.entries[e.ev]; ok && cur == id {
		delete(e.scope.entries, e.ev)
	}
	if set := rt.byEvaluator[e.ev]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(rt.byEvaluator, e.ev)
		}
	}
	rt.entries[id] = nil
	rt.free = append(rt.free, id)
}

func describeEvaluator(ev *Evaluator) string {
	if ev.Name != "" {
		return ev.Name
	}
	return "<expression>"
}
