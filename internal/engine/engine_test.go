package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
	"github.com/smeli-lang/smeli-sub000/internal/plugins"
)

func newTestEngine(t *testing.T, code string) *Engine {
	t.Helper()
	e := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithFile("test.smeli"))
	if err := e.Reset(code); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d := e.Diagnostics(); len(d) > 0 {
		t.Fatalf("unexpected diagnostic: %v", d[0])
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func expectValue(t *testing.T, e *Engine, name, inspect string) {
	t.Helper()
	v, err := e.Evaluate(name)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	if v.Inspect() != inspect {
		t.Fatalf("%s: expected %s, got %s", name, inspect, v.Inspect())
	}
}

func expectUnresolved(t *testing.T, e *Engine, name string) {
	t.Helper()
	_, err := e.Evaluate(name)
	if !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Fatalf("%s: expected unresolved name, got %v", name, err)
	}
}

func TestStepInAndOut(t *testing.T) {
	e := newTestEngine(t, "a: 42\nb: a + 1")
	if e.Len() != 2 || e.Active() != 0 {
		t.Fatalf("expected 2 statements and none active, got %d/%d", e.Active(), e.Len())
	}
	expectUnresolved(t, e, "a")

	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	expectValue(t, e, "a", "42")
	expectUnresolved(t, e, "b")

	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	expectValue(t, e, "b", "43")
	if names := e.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected [a b], got %v", names)
	}

	if err := e.Step(-1); err != nil {
		t.Fatal(err)
	}
	expectUnresolved(t, e, "b")
	expectValue(t, e, "a", "42")

	// clamped at both ends
	if err := e.Step(10); err != nil || e.Active() != 2 {
		t.Fatalf("expected 2 active, got %d (%v)", e.Active(), err)
	}
	if err := e.Step(-10); err != nil || e.Active() != 0 {
		t.Fatalf("expected 0 active, got %d (%v)", e.Active(), err)
	}
	if st := e.Runtime().Stats(); st.Entries != 0 {
		t.Errorf("expected no cache entries left, got %d", st.Entries)
	}
}

func TestStepTo(t *testing.T) {
	e := newTestEngine(t, "a: 1\nb: 2\nc: 3")

	tests := []struct {
		offset int
		active int
	}{
		{6, 2},
		{0, 1},
		{4, 1},
		{5, 2},
		{14, 3},
		{100, 3},
	}
	for _, tt := range tests {
		if err := e.StepTo(tt.offset); err != nil {
			t.Fatal(err)
		}
		if e.Active() != tt.active {
			t.Errorf("StepTo(%d): expected %d active, got %d", tt.offset, tt.active, e.Active())
		}
	}
}

func TestPatchKeepsEarlierBindings(t *testing.T) {
	e := newTestEngine(t, "a: 1\nb: 2\nc: 3")
	if err := e.Step(3); err != nil {
		t.Fatal(err)
	}
	a, b := e.statements[0].binding, e.statements[1].binding

	if err := e.Patch(10, "c: a + b + 27"); err != nil {
		t.Fatal(err)
	}
	if e.Source() != "a: 1\nb: 2\nc: a + b + 27" {
		t.Fatalf("unexpected source %q", e.Source())
	}
	if e.statements[0].binding != a || e.statements[1].binding != b {
		t.Errorf("expected statements before the patch to keep their bindings")
	}
	if e.Active() != 3 {
		t.Errorf("expected activation restored to 3, got %d", e.Active())
	}
	expectValue(t, e, "c", "30")

	// editing inside b re-parses b and everything after it
	if err := e.Patch(8, "5\nc: b * 2"); err != nil {
		t.Fatal(err)
	}
	if e.statements[0].binding != a {
		t.Errorf("expected a to survive")
	}
	if e.statements[1].binding == b {
		t.Errorf("expected b to be recompiled")
	}
	expectValue(t, e, "b", "5")
	expectValue(t, e, "c", "10")
}

func TestPatchAppendsAndShrinks(t *testing.T) {
	e := newTestEngine(t, "a: 1\n")
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	if err := e.Patch(5, "b: a * 10"); err != nil {
		t.Fatal(err)
	}
	if e.Len() != 2 || e.Active() != 1 {
		t.Fatalf("expected 1 of 2 active, got %d of %d", e.Active(), e.Len())
	}
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	expectValue(t, e, "b", "10")

	// deleting the tail drops its activation
	if err := e.Patch(4, ""); err != nil {
		t.Fatal(err)
	}
	if e.Len() != 1 || e.Active() != 1 {
		t.Fatalf("expected 1 of 1 active, got %d of %d", e.Active(), e.Len())
	}
	expectUnresolved(t, e, "b")
}

func TestPatchOutOfRange(t *testing.T) {
	e := newTestEngine(t, "a: 1")
	for _, offset := range []int{-1, 5} {
		if err := e.Patch(offset, "b: 2"); err == nil {
			t.Errorf("Patch(%d): expected an error", offset)
		}
	}
	if e.Source() != "a: 1" {
		t.Errorf("source changed to %q", e.Source())
	}
}

func TestDiagnostics(t *testing.T) {
	e := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithFile("deck.smeli"))
	defer e.Close()

	if err := e.Reset("a: 1\nb: )\nc: 3"); err != nil {
		t.Fatal(err)
	}
	d := e.Diagnostics()
	if len(d) == 0 {
		t.Fatalf("expected a diagnostic")
	}
	if d[0].File != "deck.smeli" || d[0].Line != 2 {
		t.Errorf("expected deck.smeli line 2, got %s line %d", d[0].File, d[0].Line)
	}
	if e.Len() != 1 {
		t.Errorf("expected the statement before the error to survive, got %d", e.Len())
	}

	// a patch reports positions in the whole document
	if err := e.Reset("a: 1\n"); err != nil {
		t.Fatal(err)
	}
	if len(e.Diagnostics()) != 0 {
		t.Fatalf("expected diagnostics cleared by Reset")
	}
	if err := e.Patch(5, "b: )"); err != nil {
		t.Fatal(err)
	}
	d = e.Diagnostics()
	if len(d) == 0 || d[0].Offset < 5 {
		t.Fatalf("expected a diagnostic past offset 5, got %v", d)
	}
}

func TestNextMarker(t *testing.T) {
	e := newTestEngine(t, "#> one\na: 1\n#> two\nb: 2\n# plain\nc: 3")

	offset, ok := e.NextMarker()
	if !ok || offset != 0 {
		t.Fatalf("expected marker at 0, got %d %v", offset, ok)
	}
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	offset, ok = e.NextMarker()
	if !ok || offset != 12 {
		t.Fatalf("expected marker at 12, got %d %v", offset, ok)
	}
	if err := e.StepTo(offset); err != nil {
		t.Fatal(err)
	}
	expectValue(t, e, "a", "1")
	if _, ok := e.NextMarker(); ok {
		t.Fatalf("expected no marker left")
	}
}

func TestRender(t *testing.T) {
	e := newTestEngine(t, "render: \"title\"\nslide: { n: 2, render: n * 21 }")
	if err := e.Step(-1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Render(""); !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Fatalf("expected unresolved render, got %v", err)
	}
	if err := e.Step(2); err != nil {
		t.Fatal(err)
	}
	v, err := e.Render("")
	if err != nil || v.Inspect() != "title" {
		t.Fatalf("expected title, got %v %v", v, err)
	}
	v, err = e.Render("slide")
	if err != nil || v.Inspect() != "42" {
		t.Fatalf("expected 42, got %v %v", v, err)
	}
}

func TestRenderedScopeStaysAlive(t *testing.T) {
	e := newTestEngine(t, `render: { title: "h" + "i" }`)
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}

	v, err := e.Render("")
	if err != nil {
		t.Fatal(err)
	}
	scope, ok := v.(*evaluator.Scope)
	if !ok {
		t.Fatalf("expected a scope, got %s", v.Type())
	}
	if scope.Disposed() {
		t.Fatalf("rendered scope disposed before the host could read it")
	}
	title, err := scope.Evaluate("title")
	if err != nil || title.Inspect() != "hi" {
		t.Fatalf("expected hi, got %v %v", title, err)
	}
	if again, _ := e.Render(""); again != v {
		t.Errorf("expected the rendered scope to be reused until the document changes")
	}

	// released once the document moves on
	if err := e.Step(0); err != nil {
		t.Fatal(err)
	}
	if !scope.Disposed() {
		t.Errorf("expected the scope to be released by the next step")
	}
}

func TestEvaluateKeepsResourceOpen(t *testing.T) {
	sqlPlugin, err := plugins.Lookup("sql")
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, `db: sql.open(":memory:")`)
	if err := e.LoadPlugin(sqlPlugin); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}

	v, err := e.Evaluate("db")
	if err != nil {
		t.Fatal(err)
	}
	db, ok := v.(*evaluator.Resource)
	if !ok {
		t.Fatalf("expected a resource, got %s", v.Type())
	}
	if db.Disposed() {
		t.Fatalf("Evaluate returned a closed database: %s", db.Inspect())
	}
	if again, _ := e.Evaluate("db"); again != db {
		t.Errorf("expected repeated reads to share the open database")
	}

	if err := e.Patch(0, `db: sql.open(":memory:")`); err != nil {
		t.Fatal(err)
	}
	if !db.Disposed() {
		t.Errorf("expected the database closed once its statement was replaced")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWatchMemoizes(t *testing.T) {
	calls := 0
	probe := &plugins.Plugin{
		Name: "probe",
		Bindings: []*evaluator.Binding{
			evaluator.NewFuncBinding("count", func(rt *evaluator.Runtime, scope *evaluator.Scope) (evaluator.Result, error) {
				calls++
				v, err := rt.EvaluateName("x", scope)
				if err != nil {
					return evaluator.Result{}, err
				}
				return evaluator.Done(v), nil
			}),
		},
	}

	e := newTestEngine(t, "x: 1\ny: 2")
	if err := e.LoadPlugin(probe); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(2); err != nil {
		t.Fatal(err)
	}

	w, err := e.Watch("probe.count")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		v, err := w.Value()
		if err != nil || v.Inspect() != "1" {
			t.Fatalf("expected 1, got %v %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one computation, got %d", calls)
	}

	if err := e.Patch(0, "x: 5\ny: 2"); err != nil {
		t.Fatal(err)
	}
	v, err := w.Value()
	if err != nil || v.Inspect() != "5" {
		t.Fatalf("expected 5, got %v %v", v, err)
	}
	if calls != 2 {
		t.Errorf("expected recomputation after the patch, got %d calls", calls)
	}

	w.Close()
	w.Close()
	if _, err := e.Evaluate("probe.count"); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected an unwatched read to recompute, got %d calls", calls)
	}
}

func TestSideEffects(t *testing.T) {
	var seen []string
	counter := &plugins.Plugin{
		Name:        "counter",
		SideEffects: []string{"tick"},
		Bindings: []*evaluator.Binding{
			evaluator.NewFuncBinding("tick", func(rt *evaluator.Runtime, scope *evaluator.Scope) (evaluator.Result, error) {
				v, err := rt.EvaluateName("level", scope)
				if err != nil {
					seen = append(seen, "-")
					return evaluator.Result{}, err
				}
				seen = append(seen, v.Inspect())
				return evaluator.Done(v), nil
			}),
		},
	}

	e := newTestEngine(t, "level: 1\nother: 5")
	err := e.LoadPlugin(counter)
	if !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Fatalf("expected the side effect to fail on an unresolved name, got %v", err)
	}

	steps := []struct {
		run  func() error
		seen []string
	}{
		{func() error { return e.Step(1) }, []string{"-", "1"}},
		{func() error { return e.Step(1) }, []string{"-", "1"}},
		{func() error { return e.Patch(7, "3\nother: 5") }, []string{"-", "1", "3"}},
	}
	for i, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if len(seen) != len(step.seen) {
			t.Fatalf("step %d: expected %v, got %v", i, step.seen, seen)
		}
		for j := range seen {
			if seen[j] != step.seen[j] {
				t.Fatalf("step %d: expected %v, got %v", i, step.seen, seen)
			}
		}
	}
}

func TestResourcesFollowBindings(t *testing.T) {
	sqlPlugin, err := plugins.Lookup("sql")
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, `db: sql.open(":memory:")`)
	if err := e.LoadPlugin(sqlPlugin); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}

	w, err := e.Watch("db")
	if err != nil {
		t.Fatal(err)
	}
	v, err := w.Value()
	if err != nil {
		t.Fatal(err)
	}
	first, ok := v.(*evaluator.Resource)
	if !ok {
		t.Fatalf("expected a resource, got %s", v.Type())
	}
	if again, _ := w.Value(); again != first {
		t.Fatalf("expected the watched database to be reused")
	}

	if err := e.Step(-1); err != nil {
		t.Fatal(err)
	}
	if !first.Disposed() {
		t.Fatalf("expected the database closed once db is deactivated")
	}
	if _, err := w.Value(); !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Fatalf("expected unresolved db, got %v", err)
	}

	if err := e.Step(1); err != nil {
		t.Fatal(err)
	}
	v, err = w.Value()
	if err != nil {
		t.Fatal(err)
	}
	second := v.(*evaluator.Resource)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !second.Disposed() {
		t.Fatalf("expected Close to dispose the database")
	}
	if second.CloseError() != nil {
		t.Errorf("unexpected close error: %v", second.CloseError())
	}
}

func TestUseAfterClose(t *testing.T) {
	e := newTestEngine(t, "a: 1")
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := e.Step(1); err == nil {
		t.Fatalf("expected an error after Close")
	}
	if _, err := e.Evaluate("a"); err == nil {
		t.Fatalf("expected an error after Close")
	}
	if _, err := e.Watch("a"); err == nil {
		t.Fatalf("expected an error after Close")
	}
}

func TestCall(t *testing.T) {
	e := newTestEngine(t, "square: x => x * x\nshapes: { area: (w, h) => w * h }\nn: 3")
	if err := e.Step(3); err != nil {
		t.Fatal(err)
	}

	v, err := e.Call("square", &evaluator.Number{Value: 4})
	if err != nil || v.Inspect() != "16" {
		t.Fatalf("expected 16, got %v %v", v, err)
	}
	v, err = e.Call("shapes.area", &evaluator.Number{Value: 2}, &evaluator.Number{Value: 5})
	if err != nil || v.Inspect() != "10" {
		t.Fatalf("expected 10, got %v %v", v, err)
	}

	if _, err := e.Call("n"); !evaluator.IsCode(err, evaluator.ErrNotCallable) {
		t.Errorf("expected not callable, got %v", err)
	}
	if _, err := e.Call("square"); !evaluator.IsCode(err, evaluator.ErrArity) {
		t.Errorf("expected an arity error, got %v", err)
	}
	if st := e.Runtime().Stats(); st.Entries != 0 {
		t.Errorf("expected no cache entries left, got %d", st.Entries)
	}
}
