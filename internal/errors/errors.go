// Package errors contains helper functions for wrapping errors with stack traces
// and panic recovery, plus the multi-error type used for best-effort teardown
// summaries.
package errors

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// New wraps the given error in an error type that contains the stack trace. If
// the given error already carries a stack trace somewhere in its chain, it is
// returned unchanged to avoid nesting traces. If the given error is nil, return nil.
func New(err error) error {
	if err == nil {
		return nil
	}

	if ContainsStackTrace(err) {
		return err
	}

	return goerrors.Wrap(err, 1)
}

// Errorf creates a new error and wraps it in an error type that contains the stack trace.
func Errorf(message string, args ...any) error {
	err := fmt.Errorf(message, args...)

	return goerrors.Wrap(err, 1)
}

// ErrorWithExitCode is a custom error that is used to specify the app exit code.
type ErrorWithExitCode struct {
	Err      error
	ExitCode int
}

func (err ErrorWithExitCode) Error() string {
	return err.Err.Error()
}

func (err ErrorWithExitCode) Unwrap() error {
	return err.Err
}

// ContainsStackTrace returns true if the given error chain already contains a
// stack trace. Useful to avoid creating a nested stack trace.
func ContainsStackTrace(err error) bool {
	for {
		if _, ok := err.(interface{ ErrorStack() string }); ok {
			return true
		}

		if err = errors.Unwrap(err); err == nil {
			break
		}
	}

	return false
}

// ErrorStack returns the stack trace stored in the given error chain, if any.
func ErrorStack(err error) string {
	for {
		if err, ok := err.(interface{ ErrorStack() string }); ok {
			return err.ErrorStack()
		}

		if err = errors.Unwrap(err); err == nil {
			break
		}
	}

	return ""
}

// ExitCode returns the exit code stored in the given error chain. Failing
// collaborator commands carry their own exit code, which is propagated; chains
// without one map to 1.
func ExitCode(err error) int {
	var exitCodeErr ErrorWithExitCode
	if errors.As(err, &exitCodeErr) {
		return exitCodeErr.ExitCode
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if coder, ok := e.(interface{ ExitCode() int }); ok {
			if code := coder.ExitCode(); code > 0 {
				return code
			}
		}
	}

	return 1
}

// Recover tries to recover from panics, and if it succeeds, calls the given
// onPanic function with an error that explains the cause of the panic. This
// function should only be called from a defer statement.
func Recover(onPanic func(cause error)) {
	if rec := recover(); rec != nil {
		err, isError := rec.(error)
		if !isError {
			err = fmt.Errorf("%v", rec) //nolint:err113
		}

		onPanic(New(err))
	}
}
