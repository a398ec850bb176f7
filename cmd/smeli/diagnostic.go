package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"
)

// renderDiagnostic formats d with the offending source line and a caret
// under its column:
//
//	deck.smeli:2:4: error: expected expression, got ')' [P003]
//	  2 | b: )
//	    |    ^
func renderDiagnostic(d *diagnostics.DiagnosticError, source string, color bool) string {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + ansiReset
	}

	file := d.File
	if file == "" {
		file = "<input>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s [%s]\n",
		paint(ansiBold, fmt.Sprintf("%s:%d:%d:", file, d.Line, d.Column)),
		paint(ansiBold+ansiRed, "error:"),
		d.Message, d.Code)

	line, ok := sourceLine(source, d.Offset)
	if !ok {
		return b.String()
	}
	gutter := fmt.Sprintf("%d", d.Line)
	pad := strings.Repeat(" ", len(gutter))
	fmt.Fprintf(&b, "  %s %s\n", paint(ansiBlue, gutter+" |"), line)

	caret := d.Column - 1
	if n := utf8.RuneCountInString(line); caret > n {
		caret = n
	}
	if caret < 0 {
		caret = 0
	}
	fmt.Fprintf(&b, "  %s %s%s\n", paint(ansiBlue, pad+" |"), strings.Repeat(" ", caret), paint(ansiBold+ansiRed, "^"))
	return b.String()
}

// sourceLine returns the line of source containing offset.
func sourceLine(source string, offset int) (string, bool) {
	if offset < 0 || offset > len(source) {
		return "", false
	}
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[offset:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += offset
	}
	return strings.TrimRight(source[start:end], "\r"), true
}
