// Package errors provides the structured error type shared by the clock, CRDT,
// resolver and storage packages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so callers can react without string matching.
type Kind string

const (
	KindOther         Kind = ""
	KindFormat        Kind = "format"
	KindInvalidState  Kind = "invalid_state"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindStorage       Kind = "storage"
)

// Operation names the operation that produced an error.
type Operation string

const (
	OpParseClock      Operation = "parse_clock"
	OpSingleValue     Operation = "single_value"
	OpConfigure       Operation = "configure"
	OpLoadConfig      Operation = "load_config"
	OpConflictResolve Operation = "conflict_resolve"
	OpEncode          Operation = "encode"
	OpStore           Operation = "store"
	OpLoad            Operation = "load"
	OpClose           Operation = "close"
)

// Component is the package or subsystem that produced an error.
type Component string

// SyncError is the error type returned by every package in this module.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "version", "storage/sqlite")
	Component string

	// Kind of failure
	Kind Kind

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(" operation failed")
	} else {
		b.WriteString("operation failed")
	}
	if e.Component != "" {
		fmt.Fprintf(&b, " in %s component", e.Component)
	}
	if e.Kind != KindOther {
		fmt.Fprintf(&b, " [%s]", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// E builds a *SyncError from its arguments. Arguments are interpreted by type:
//
//	Operation  -> Op
//	Component  -> Component
//	Kind       -> Kind
//	error      -> Err
//	string     -> Err (via errors.New)
//	map[string]interface{} -> Metadata
//
// If the wrapped error is itself a *SyncError, unset Kind and Retryable are
// inherited from it.
func E(args ...interface{}) *SyncError {
	e := &SyncError{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Component:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Err = errors.New(a)
		case map[string]interface{}:
			e.Metadata = a
		}
	}
	var inner *SyncError
	if errors.As(e.Err, &inner) {
		if e.Kind == KindOther {
			e.Kind = inner.Kind
		}
		e.Retryable = e.Retryable || inner.Retryable
	}
	if e.Kind == KindStorage {
		e.Retryable = true
	}
	return e
}

// Op converts a plain string to an Operation for use with E.
func Op(op string) Operation { return Operation(op) }

// Comp converts a plain string to a Component for use with E.
func Comp(c string) Component { return Component(c) }

// NewFormatError reports malformed serialized input.
func NewFormatError(op Operation, component string, cause error) *SyncError {
	return &SyncError{Op: op, Component: component, Kind: KindFormat, Err: cause}
}

// NewInvalidStateError reports an operation invoked in a state that does not allow it.
func NewInvalidStateError(op Operation, component string, cause error) *SyncError {
	return &SyncError{Op: op, Component: component, Kind: KindInvalidState, Err: cause}
}

// NewConfigurationError reports invalid resolver configuration.
func NewConfigurationError(op Operation, cause error) *SyncError {
	return &SyncError{Op: op, Component: "synckit", Kind: KindConfiguration, Err: cause}
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, component string, cause error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Kind:      KindStorage,
		Err:       cause,
		Retryable: true,
	}
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(op Operation, component string, cause error) *SyncError {
	return &SyncError{Op: op, Component: component, Kind: KindNotFound, Err: cause}
}

// Is reports whether err, or any error it wraps, is a *SyncError of the given kind.
func Is(err error, kind Kind) bool {
	var syncErr *SyncError
	for err != nil {
		if !errors.As(err, &syncErr) {
			return false
		}
		if syncErr.Kind == kind {
			return true
		}
		err = syncErr.Err
	}
	return false
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}
