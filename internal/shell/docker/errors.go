package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerAlreadyExists  = errors.New("container already exists")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")

	// Image errors
	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("image pull failed")

	// Connection errors
	ErrPortAlreadyAllocated = errors.New("port is already allocated")
	ErrConnectionFailed     = errors.New("ship connection failed")
	ErrNoEndpoint           = errors.New("ship has neither a docker endpoint nor ssh access")
)

// BackendError wraps backend failures with the ship and container they
// concern.
type BackendError struct {
	Op        string // Operation that failed
	Ship      string
	Container string
	Message   string
	Err       error
}

func (e *BackendError) Error() string {
	if e.Container != "" {
		return fmt.Sprintf("%s %s on %s: %s", e.Op, e.Container, e.Ship, e.Message)
	}
	return fmt.Sprintf("%s on %s: %s", e.Op, e.Ship, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new BackendError.
func NewBackendError(op, ship, container, message string, err error) *BackendError {
	return &BackendError{
		Op:        op,
		Ship:      ship,
		Container: container,
		Message:   message,
		Err:       err,
	}
}
