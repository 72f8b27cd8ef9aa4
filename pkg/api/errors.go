package api

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ContractViolationError reports a programming error at an API boundary:
// a payload that does not match its event name, a mutation against an
// unloaded store, or a malformed graph mutation.
//
// Contract violations are returned immediately and must not be swallowed;
// continuing past one would corrupt editor state.
type ContractViolationError struct {
	// Code identifies the violation category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (event name, node ID, ...).
	Details map[string]string
}

// ErrorCode categorizes contract violations.
type ErrorCode string

const (
	// ErrCodeNotLoaded indicates an operation that needs a loaded workflow
	// was called before LoadWorkflow.
	ErrCodeNotLoaded ErrorCode = "NOT_LOADED"

	// ErrCodeInvalidEvent indicates an event name outside a channel's contract.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"

	// ErrCodeInvalidPayload indicates a payload whose shape does not match
	// the event name it was published under.
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"

	// ErrCodeInvalidMutation indicates a graph mutation that cannot be
	// applied to the current graph.
	ErrCodeInvalidMutation ErrorCode = "INVALID_MUTATION"

	// ErrCodeClosed indicates use of a bus or store after teardown.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *ContractViolationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Details))
	for _, k := range slices.Sorted(maps.Keys(e.Details)) {
		parts = append(parts, k+"="+e.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// Violation builds a ContractViolationError. details are read as key/value
// pairs; a trailing odd key is ignored.
func Violation(code ErrorCode, message string, details ...string) *ContractViolationError {
	e := &ContractViolationError{Code: code, Message: message}
	if len(details) >= 2 {
		e.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			e.Details[details[i]] = details[i+1]
		}
	}
	return e
}

// IsContractViolation returns true if err (or anything it wraps) is a
// ContractViolationError.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError
	return errors.As(err, &cv)
}

// ViolationCode returns the code of the first ContractViolationError in
// err's chain, or "" if there is none.
func ViolationCode(err error) ErrorCode {
	var cv *ContractViolationError
	if errors.As(err, &cv) {
		return cv.Code
	}
	return ""
}

// DispatchError collects the handler failures of a single dispatch round.
// The round always completes; the error is only surfaced afterwards.
type DispatchError struct {
	// Event is the event (or flag) name that was dispatched.
	Event string

	// Failures holds one entry per failing handler, in registration order.
	Failures []error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("dispatch %q: handler failed: %v", e.Event, e.Failures[0])
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("dispatch %q: %d handlers failed: %s", e.Event, len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes every handler failure to errors.Is / errors.As.
func (e *DispatchError) Unwrap() []error {
	return e.Failures
}

// HandlerPanicError wraps a value recovered from a panicking handler.
type HandlerPanicError struct {
	Value any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Unwrap returns the panic value when it was itself an error.
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
