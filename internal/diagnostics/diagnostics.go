package diagnostics

import (
	"fmt"

	"github.com/smeli-lang/smeli-sub000/internal/token"
)

type ErrorCode string

const (
	// Lexer
	ErrL001 ErrorCode = "L001" // illegal character
	ErrL002 ErrorCode = "L002" // unterminated string
	ErrL003 ErrorCode = "L003" // malformed number

	// Parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // expected token
	ErrP003 ErrorCode = "P003" // missing expression
	ErrP004 ErrorCode = "P004" // heading level too deep
)

// DiagnosticError is a non-fatal problem found while reading source text.
// Line and Column are 1-based.
type DiagnosticError struct {
	Code    ErrorCode
	File    string
	Line    int
	Column  int
	Offset  int
	Message string
}

func (e *DiagnosticError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s (%s)", file, e.Line, e.Column, e.Message, e.Code)
}

// NewError builds a diagnostic located at tok. args are applied to format.
func NewError(code ErrorCode, tok token.Token, format string, args ...interface{}) *DiagnosticError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{
		Code:    code,
		Line:    tok.Line,
		Column:  tok.Column,
		Offset:  tok.Offset,
		Message: msg,
	}
}
