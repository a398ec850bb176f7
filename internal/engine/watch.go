package engine

import (
	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

// Watch keeps the value of a name memoized across evaluation passes, so
// resources it owns live until the name changes or the watch is closed.
type Watch struct {
	e    *Engine
	name string
	ev   *evaluator.Evaluator
}

// Watch pins name. Close the watch to release it.
func (e *Engine) Watch(name string) (w *Watch, err error) {
	defer evaluator.RecoverFatal(&err)
	e.checkOpen()

	w = &Watch{e: e, name: name, ev: e.nameEvaluator(name)}
	e.rt.Pin(w.ev, e.root)
	e.watches[w] = struct{}{}
	return w, nil
}

func (w *Watch) Name() string { return w.name }

// Value returns the current value, recomputing only what changed since the
// last call.
func (w *Watch) Value() (v evaluator.Object, err error) {
	defer evaluator.RecoverFatal(&err)
	w.e.checkOpen()
	return w.e.rt.EvaluateRoot(w.ev, w.e.root)
}

func (w *Watch) Close() {
	if _, ok := w.e.watches[w]; !ok {
		return
	}
	delete(w.e.watches, w)
	w.e.rt.Unpin(w.ev, w.e.root)
	w.e.rt.GC()
}
