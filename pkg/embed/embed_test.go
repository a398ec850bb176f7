package smeli_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
	smeli "github.com/smeli-lang/smeli-sub000/pkg/embed"
)

func newDocument(t *testing.T, opts ...smeli.Option) *smeli.Document {
	t.Helper()
	doc := smeli.New(opts...)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestHostBindings(t *testing.T) {
	doc := newDocument(t)

	bindings := map[string]interface{}{
		"double":   func(x int) int { return x * 2 },
		"greeting": "hello",
		"weights":  []float64{0.5, 1.5},
		"enabled":  true,
		"safeDiv": func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errors.New("division by zero")
			}
			return a / b, nil
		},
	}
	for name, val := range bindings {
		if err := doc.Bind(name, val); err != nil {
			t.Fatalf("Bind(%s): %v", name, err)
		}
	}

	err := doc.Load(`a: double(21)
msg: greeting + " world"
first: at(weights, 0)
flag: if enabled then 1 else 0
half: safeDiv(1, 2)
broken: safeDiv(1, 0)
fraction: double(1.5)`)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want interface{}
	}{
		{"a", 42.0},
		{"msg", "hello world"},
		{"first", 0.5},
		{"flag", 1.0},
		{"half", 0.5},
		{"enabled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doc.Get(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := doc.Get("broken"); !evaluator.IsCode(err, evaluator.ErrPlugin) || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("expected the host error, got %v", err)
	}
	if _, err := doc.Get("fraction"); !evaluator.IsCode(err, evaluator.ErrType) {
		t.Errorf("expected a type error for a fractional int, got %v", err)
	}
	if _, err := doc.Get("missing"); !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Errorf("expected unresolved, got %v", err)
	}
}

func TestBindErrors(t *testing.T) {
	doc := newDocument(t)
	if err := doc.Bind("x", 1); err != nil {
		t.Fatal(err)
	}
	if err := doc.Bind("x", 2); err == nil {
		t.Errorf("expected a duplicate binding error")
	}
	if err := doc.Bind("m", map[string]int{}); err == nil {
		t.Errorf("expected maps to be rejected")
	}
	if err := doc.Bind("v", func(xs ...int) int { return len(xs) }); err == nil {
		t.Errorf("expected variadic functions to be rejected")
	}
	if err := doc.Bind("two", func() (int, int) { return 1, 2 }); err == nil {
		t.Errorf("expected two results to be rejected")
	}
	if err := doc.Load("y: x"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Bind("late", 1); err == nil {
		t.Errorf("expected Bind after Load to fail")
	}
}

func TestDecode(t *testing.T) {
	doc := newDocument(t)
	if err := doc.Bind("none", nil); err != nil {
		t.Fatal(err)
	}
	if err := doc.Load(`size: 12
ratio: 0.25
name: "deck"
tags: list("a", "b")
point: { x: 1, y: x + 1 }`); err != nil {
		t.Fatal(err)
	}

	var size int
	if err := doc.Decode("size", &size); err != nil || size != 12 {
		t.Errorf("size: %d %v", size, err)
	}
	var ratio float32
	if err := doc.Decode("ratio", &ratio); err != nil || ratio != 0.25 {
		t.Errorf("ratio: %v %v", ratio, err)
	}
	var name string
	if err := doc.Decode("name", &name); err != nil || name != "deck" {
		t.Errorf("name: %q %v", name, err)
	}
	var tags []string
	if err := doc.Decode("tags", &tags); err != nil || len(tags) != 2 || tags[1] != "b" {
		t.Errorf("tags: %v %v", tags, err)
	}
	var point map[string]int
	if err := doc.Decode("point", &point); err != nil || point["x"] != 1 || point["y"] != 2 {
		t.Errorf("point: %v %v", point, err)
	}
	none := "set"
	if err := doc.Decode("none", &none); err != nil || none != "" {
		t.Errorf("none: %q %v", none, err)
	}

	var small uint8
	if err := doc.Decode("ratio", &small); err == nil {
		t.Errorf("expected a fractional number to be rejected")
	}
	var flag bool
	if err := doc.Decode("name", &flag); err == nil {
		t.Errorf("expected a string to be rejected for bool")
	}
	if err := doc.Decode("size", size); err == nil {
		t.Errorf("expected a non-pointer to be rejected")
	}

	v, err := doc.Get("point")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := v.(map[string]interface{})
	if !ok || m["y"] != 2.0 {
		t.Errorf("unexpected scope value %#v", v)
	}
}

func TestCall(t *testing.T) {
	doc := newDocument(t)
	if err := doc.Load("hyp: (a, b) => a * a + b * b\nshout: s => s + \"!\""); err != nil {
		t.Fatal(err)
	}

	v, err := doc.Call("hyp", 3, 4)
	if err != nil || v != 25.0 {
		t.Errorf("hyp: %v %v", v, err)
	}
	v, err = doc.Call("shout", "hey")
	if err != nil || v != "hey!" {
		t.Errorf("shout: %v %v", v, err)
	}
	if _, err := doc.Call("hyp", 1); !evaluator.IsCode(err, evaluator.ErrArity) {
		t.Errorf("expected an arity error, got %v", err)
	}
	if _, err := doc.Call("hyp", struct{}{}, 1); err == nil {
		t.Errorf("expected an argument conversion error")
	}
}

func TestLoadDiagnostics(t *testing.T) {
	doc := newDocument(t)
	err := doc.Load("a: 1\nb: )\nc: 3")
	if err == nil || !strings.Contains(err.Error(), "P003") {
		t.Fatalf("expected a P003 diagnostic, got %v", err)
	}
	if v, err := doc.Get("a"); err != nil || v != 1.0 {
		t.Errorf("expected a = 1 before the error, got %v %v", v, err)
	}
	if _, err := doc.Get("c"); !evaluator.IsCode(err, evaluator.ErrUnresolvedName) {
		t.Errorf("expected c to be lost, got %v", err)
	}
}

func TestReload(t *testing.T) {
	doc := newDocument(t)
	if err := doc.Bind("base", 10); err != nil {
		t.Fatal(err)
	}
	if err := doc.Load("v: base + 1"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Load("v: base * 2\nw: v"); err != nil {
		t.Fatal(err)
	}
	if v, err := doc.Get("w"); err != nil || v != 20.0 {
		t.Errorf("expected 20, got %v %v", v, err)
	}
}

func TestLoadFileWithPlugins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circle.smeli")
	if err := os.WriteFile(path, []byte("r: 1\narea: math.pi * r * r\nbad: )"), 0644); err != nil {
		t.Fatal(err)
	}

	doc := newDocument(t, smeli.WithPlugins("math"))
	err := doc.LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("expected a diagnostic naming %s, got %v", path, err)
	}
	var area float64
	if err := doc.Decode("area", &area); err != nil || math.Abs(area-math.Pi) > 1e-12 {
		t.Errorf("area: %v %v", area, err)
	}

	if err := newDocument(t, smeli.WithPlugins("nope")).Load("a: 1"); err == nil {
		t.Errorf("expected an unknown plugin error")
	}
	if err := newDocument(t).LoadFile(filepath.Join(t.TempDir(), "missing.smeli")); err == nil {
		t.Errorf("expected a read error")
	}
}

func TestGetBeforeLoad(t *testing.T) {
	doc := newDocument(t)
	if _, err := doc.Get("a"); err == nil {
		t.Errorf("expected an error before Load")
	}
	if _, err := doc.Call("f"); err == nil {
		t.Errorf("expected an error before Load")
	}
}
