package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrServer       = fmt.Errorf("server error")
	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
)

// Sentinel errors for task monitoring.
var (
	ErrConnection   = fmt.Errorf("log stream connection failed")
	ErrSuperseded   = fmt.Errorf("log stream superseded")
	ErrLaunchFailed = fmt.Errorf("task launch failed")
	ErrCircuitOpen  = fmt.Errorf("server circuit breaker open")
	ErrNoTask       = fmt.Errorf("no task to restart")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Monitor.Launch")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ConnectionError reports that a task's log channel failed to establish or
// dropped with an error signal.
type ConnectionError struct {
	TaskID string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("task %s: %s", e.TaskID, ErrConnection)
	}
	return fmt.Sprintf("task %s: %s: %s", e.TaskID, ErrConnection, e.Err)
}

// Unwrap exposes both ErrConnection and the transport cause.
func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnection}
	}
	return []error{ErrConnection, e.Err}
}

// IsRetryableError reports whether err is a transient error that may succeed
// on a fresh attempt.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrServer)
}

// ErrorCode is a machine-parseable error category for logs and run history.
type ErrorCode string

const (
	CodeUnknown      ErrorCode = "UNKNOWN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeServer       ErrorCode = "SERVER_ERROR"
	CodeConfigLoad   ErrorCode = "CONFIG_LOAD"
	CodeConnection   ErrorCode = "CONNECTION"
	CodeSuperseded   ErrorCode = "SUPERSEDED"
	CodeLaunchFailed ErrorCode = "LAUNCH_FAILED"
	CodeCircuitOpen  ErrorCode = "CIRCUIT_OPEN"
	CodeNoTask       ErrorCode = "NO_TASK"
)

// errorCodeMap is ordered most specific first so wrapped chains resolve
// deterministically (a launch failure caused by a 404 is LAUNCH_FAILED).
var errorCodeMap = []struct {
	sentinel error
	code     ErrorCode
}{
	{ErrLaunchFailed, CodeLaunchFailed},
	{ErrSuperseded, CodeSuperseded},
	{ErrConnection, CodeConnection},
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrNoTask, CodeNoTask},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrServer, CodeServer},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, e := range errorCodeMap {
		if errors.Is(err, e.sentinel) {
			return e.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
