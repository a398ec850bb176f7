package parser_test

import (
	"strings"
	"testing"

	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/lexer"
	"github.com/smeli-lang/smeli-sub000/internal/parser"
	"github.com/smeli-lang/smeli-sub000/internal/pipeline"
)

// parseWithErrors runs the lexer+parser and returns all diagnostic errors.
func parseWithErrors(input string) []*diagnostics.DiagnosticError {
	ctx := &pipeline.PipelineContext{SourceCode: input}
	lp := &lexer.LexerProcessor{}
	ctx = lp.Process(ctx)
	pp := &parser.ParserProcessor{}
	ctx = pp.Process(ctx)
	return ctx.Errors
}

// expectError asserts an error with the given code at line:column.
func expectError(t *testing.T, input string, code diagnostics.ErrorCode, line, column int) *diagnostics.DiagnosticError {
	t.Helper()
	errs := parseWithErrors(input)
	if len(errs) == 0 {
		t.Fatalf("expected error %s, but got none\ninput: %s", code, input)
	}
	for _, e := range errs {
		if e.Code == code {
			if e.Line != line || e.Column != column {
				t.Fatalf("expected %s at %d:%d, got %d:%d (%s)", code, line, column, e.Line, e.Column, e.Message)
			}
			return e
		}
	}
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	t.Fatalf("expected error %s, got:\n%s\ninput: %s", code, strings.Join(msgs, "\n"), input)
	return nil
}

func TestL001_IllegalCharacter(t *testing.T) {
	expectError(t, "a: 1\n  b: $", diagnostics.ErrL001, 2, 6)
}

func TestL001_LoneEquals(t *testing.T) {
	expectError(t, "a = 1", diagnostics.ErrL001, 1, 3)
	expectError(t, "a: b = 1", diagnostics.ErrL001, 1, 6)
}

func TestL002_UnterminatedString(t *testing.T) {
	expectError(t, "x: \"abc", diagnostics.ErrL002, 1, 4)
}

func TestL002_ColumnAfterMultilineString(t *testing.T) {
	// the string spans two lines; the error after it is on line 2
	expectError(t, "s: \"a\nb\" )", diagnostics.ErrP001, 2, 4)
}

func TestL003_MalformedNumber(t *testing.T) {
	expectError(t, "x: 0x", diagnostics.ErrL003, 1, 4)
	expectError(t, "x: 12ab", diagnostics.ErrL003, 1, 4)
	expectError(t, "x: 0b102", diagnostics.ErrL003, 1, 4)
}

func TestP001_TrailingToken(t *testing.T) {
	expectError(t, "a: 1\nb: 2 ) 3", diagnostics.ErrP001, 2, 6)
}

func TestP001_StrayCloseBrace(t *testing.T) {
	expectError(t, "}", diagnostics.ErrP001, 1, 1)
}

func TestP002_MissingColon(t *testing.T) {
	expectError(t, "a 1", diagnostics.ErrP002, 1, 3)
}

func TestP002_MissingElse(t *testing.T) {
	e := expectError(t, "x: if a then b", diagnostics.ErrP002, 1, 15)
	if !strings.Contains(e.Message, "'else'") {
		t.Errorf("expected message to mention 'else', got %q", e.Message)
	}
}

func TestP002_UnclosedScope(t *testing.T) {
	expectError(t, "x: {\n  a: 1\n", diagnostics.ErrP002, 3, 1)
}

func TestP002_UnclosedCall(t *testing.T) {
	expectError(t, "x: f(1, 2", diagnostics.ErrP002, 1, 10)
}

func TestP003_MissingOperand(t *testing.T) {
	expectError(t, "x: 1 + * 2", diagnostics.ErrP003, 1, 8)
	expectError(t, "x: - 2", diagnostics.ErrP003, 1, 4)
}

func TestP004_HeadingTooDeep(t *testing.T) {
	expectError(t, "####### seven", diagnostics.ErrP004, 1, 1)
}

func TestFirstErrorEndsStatementList(t *testing.T) {
	stmts, errs := parser.Parse("a: 1\nb: (\nc: 3", 0, "doc.smeli")
	if len(stmts) != 1 {
		t.Fatalf("expected only the statement before the error, got %d", len(stmts))
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(errs))
	}
	if errs[0].File != "doc.smeli" {
		t.Errorf("expected file doc.smeli, got %q", errs[0].File)
	}
	if !strings.HasPrefix(errs[0].Error(), "doc.smeli:") {
		t.Errorf("unexpected error text %q", errs[0].Error())
	}
}

func TestErrorPositionWithOffset(t *testing.T) {
	_, errs := parser.Parse("a: 1\nb: )", 5, "doc.smeli")
	if len(errs) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(errs))
	}
	if errs[0].Line != 2 || errs[0].Column != 4 {
		t.Errorf("expected 2:4, got %d:%d", errs[0].Line, errs[0].Column)
	}
}
