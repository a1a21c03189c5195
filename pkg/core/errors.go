// Package core provides the engine that composes storage, ranking,
// psychological state and text generation into agents.
package core

import (
	"errors"
	"fmt"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
//
// The storage sentinels are re-exported here so callers can match every
// engine failure mode with a single import.
var (
	// ErrValidation indicates that an operation was rejected on invalid
	// input before any state changed.
	ErrValidation = storage.ErrValidation

	// ErrNotFound indicates that a requested record or agent was not found.
	ErrNotFound = storage.ErrNotFound

	// ErrStorage indicates that a persistence operation failed.
	ErrStorage = storage.ErrStorage

	// ErrGeneration indicates that the text-generation provider failed or
	// timed out. The owning agent's state is intact and it is back in Idle.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// EngineError wraps errors with operation context.
//
// It provides additional context about which operation failed, making
// error messages more informative for debugging.
//
// Example:
//
//	err := &EngineError{
//	    Op:  "Perceive",
//	    Err: ErrStorage,
//	}
//	// Error() returns: "psychemem: Perceive: storage operation failed"
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "psychemem: <Op>: <Err>"
func (e *EngineError) Error() string {
	return fmt.Sprintf("psychemem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewEngineError("Perceive", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Perceive", "DecideAndAct")
//   - err: The underlying error to wrap
//
// Returns an EngineError, or nil if err is nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:  op,
		Err: err,
	}
}
