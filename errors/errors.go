// Package errors provides custom error types for the calendar sync server
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeProtocolFailure   ErrorCode = "PROTOCOL_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Kind classifies an error for handling decisions independent of the
// operation that produced it.
type Kind string

const (
	KindInternal  Kind = "internal"
	KindTransient Kind = "transient"
	KindInvalid   Kind = "invalid"
)

// Operation represents the type of server operation
type Operation string

const (
	OpList      Operation = "list"
	OpAdd       Operation = "add"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpSweep     Operation = "sweep"
	OpSnapshot  Operation = "snapshot"
	OpBroadcast Operation = "broadcast"
	OpSend      Operation = "send"
	OpDispatch  Operation = "dispatch"
	OpClose     Operation = "close"
)

// SyncError represents an error that occurred while keeping sessions
// and the event store in sync
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "store", "transport")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Kind classification
	Kind Kind

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// NewNetworkError creates a new network-related SyncError
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// NewProtocolError creates a SyncError for malformed or unknown client messages
func NewProtocolError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeProtocolFailure,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Kind:      KindInvalid,
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}
