package evaluator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies evaluation errors.
type ErrorCode string

const (
	ErrUnresolvedName ErrorCode = "E001"
	ErrNotCallable    ErrorCode = "E002"
	ErrArity          ErrorCode = "E003"
	ErrType           ErrorCode = "E004"
	ErrTypeMismatch   ErrorCode = "E005"
	ErrNoOverload     ErrorCode = "E006"
	ErrCircular       ErrorCode = "E007"
	ErrNoSource       ErrorCode = "E008"
	ErrPlugin         ErrorCode = "E009"
)

// EvalError is a recoverable evaluation failure. Stack collects the names of
// the evaluators it unwound through, innermost first.
type EvalError struct {
	Code    ErrorCode
	Message string
	Stack   []string
}

func (e *EvalError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s\n  in %s", e.Code, e.Message, strings.Join(e.Stack, "\n  in "))
}

func newError(code ErrorCode, format string, args ...interface{}) *EvalError {
	return &EvalError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewError builds an EvalError for builtins and plugins.
func NewError(code ErrorCode, format string, args ...interface{}) error {
	return newError(code, format, args...)
}

// IsCode reports whether err is an EvalError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ee *EvalError
	return errors.As(err, &ee) && ee.Code == code
}

// withFrame records name on the evaluator stack of err.
func withFrame(err error, name string) error {
	if name == "" {
		return err
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		ee.Stack = append(ee.Stack, name)
	}
	return err
}

// FatalError is raised by panic when a caller breaks a runtime invariant:
// out of order pops, disposing a scope twice, invalidating an entry that is
// being evaluated. It indicates a bug, not bad input.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return "fatal: " + e.Message }

func fatalf(format string, args ...interface{}) {
	panic(&FatalError{Message: fmt.Sprintf(format, args...)})
}

// RecoverFatal turns a FatalError panic into an error. Other panics are
// re-raised. Use as: defer evaluator.RecoverFatal(&err)
func RecoverFatal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*FatalError); ok {
		*err = fe
		return
	}
	panic(r)
}
