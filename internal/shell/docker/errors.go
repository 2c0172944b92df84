package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrContainerNotFound = errors.New("container not found")
	ErrImageNotFound     = errors.New("image not found")
	ErrBuildFailed       = errors.New("image build failed")
	ErrConnectionFailed  = errors.New("docker connection failed")
	ErrPortAllocated     = errors.New("port is already allocated")
)

// RuntimeError wraps a runtime failure with the operation and entity that
// produced it.
type RuntimeError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, image, daemon)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// NewRuntimeError creates a RuntimeError.
func NewRuntimeError(op, entity, id, message string, err error) *RuntimeError {
	return &RuntimeError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
