package parser_test

import (
	"testing"

	"github.com/smeli-lang/smeli-sub000/internal/parser"
)

// FuzzParse checks that arbitrary input never panics the parser and that
// every reported position stays inside the source.
func FuzzParse(f *testing.F) {
	f.Add("a: 1 + 2")
	f.Add("# Title\n#> step\nb: { x: 1, y: x * 2 }")
	f.Add("f: (a, b) => if a < b then a else b\nc: f(0x1f, -0b101)")
	f.Add("s: base { z: \"text\" }")
	f.Add("a: (")
	f.Add("####### deep")

	f.Fuzz(func(t *testing.T, src string) {
		stmts, errs := parser.Parse(src, 0, "fuzz.smeli")

		prev := 0
		for i, stmt := range stmts {
			start, end := stmt.Span()
			if start < prev || end < start || end > len(src) {
				t.Fatalf("statement %d: span [%d %d] out of order in %d bytes", i, start, end, len(src))
			}
			prev = end
		}
		for _, d := range errs {
			if d.Offset < 0 || d.Offset > len(src) {
				t.Fatalf("diagnostic %s at offset %d outside %d bytes", d.Code, d.Offset, len(src))
			}
			if d.Line < 1 || d.Column < 1 {
				t.Fatalf("diagnostic %s at %d:%d", d.Code, d.Line, d.Column)
			}
		}
	})
}
