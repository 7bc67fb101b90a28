package environment

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Construction errors
	ErrDuplicateContainer = errors.New("container name is already in use")
	ErrUnknownDependency  = errors.New("dependency does not exist")
	ErrUnknownShip        = errors.New("ship does not exist")

	// Volume errors
	ErrUnknownVolumeSource = errors.New("volumes_from target does not exist")
	ErrVolumeLocality      = errors.New("volumes_from target is on another ship")
	ErrVolumeConflict      = errors.New("volume paths conflict")

	// Ordering errors
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// Selection errors
	ErrUnknownSelection   = errors.New("name is neither a service nor a container")
	ErrServiceNotExpanded = errors.New("service expansion not requested")
)

// DuplicateContainerError is returned when two services declare an
// instance with the same name. Container names are unique across the
// whole environment, not just within their service.
type DuplicateContainerError struct {
	Container string
	Service   string // service declaring the duplicate
	Existing  string // service that declared the name first
}

func (e *DuplicateContainerError) Error() string {
	return fmt.Sprintf("container %s of service %s is already defined in service %s",
		e.Container, e.Service, e.Existing)
}

func (e *DuplicateContainerError) Unwrap() error { return ErrDuplicateContainer }

// DependencyRefError is returned when a service requires or wants_info
// an undeclared service.
type DependencyRefError struct {
	Service    string
	Dependency string
}

func (e *DependencyRefError) Error() string {
	return fmt.Sprintf("service dependency %s declared on %s does not exist",
		e.Dependency, e.Service)
}

func (e *DependencyRefError) Unwrap() error { return ErrUnknownDependency }

// ShipRefError is returned when an instance pins an undeclared ship.
type ShipRefError struct {
	Container string
	Ship      string
}

func (e *ShipRefError) Error() string {
	return fmt.Sprintf("container %s is placed on unknown ship %s", e.Container, e.Ship)
}

func (e *ShipRefError) Unwrap() error { return ErrUnknownShip }

// VolumeRefError is returned when a volumes_from target is not a known
// container.
type VolumeRefError struct {
	Container string
	Target    string
}

func (e *VolumeRefError) Error() string {
	return fmt.Sprintf("unknown container %s to get volumes from for %s", e.Target, e.Container)
}

func (e *VolumeRefError) Unwrap() error { return ErrUnknownVolumeSource }

// LocalityError is returned when a volumes_from target lives on a
// different ship than the consumer.
type LocalityError struct {
	Container     string
	Target        string
	ContainerShip string
	TargetShip    string
}

func (e *LocalityError) Error() string {
	return fmt.Sprintf("%s (on %s) and %s (on %s) must share a ship for volumes_from",
		e.Target, e.TargetShip, e.Container, e.ContainerShip)
}

func (e *LocalityError) Unwrap() error { return ErrVolumeLocality }

// VolumeConflictError is returned when a consumer claims mount paths its
// volumes_from target already provides.
type VolumeConflictError struct {
	Container string
	Target    string
	Paths     []string // sorted
}

func (e *VolumeConflictError) Error() string {
	return fmt.Sprintf("volume conflicts between %s and %s: %s",
		e.Container, e.Target, strings.Join(e.Paths, ", "))
}

func (e *VolumeConflictError) Unwrap() error { return ErrVolumeConflict }

// CycleError is returned when ordering cannot make progress. Containers
// lists the stuck set, sorted by name.
type CycleError struct {
	Containers []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot resolve dependencies for containers %s",
		strings.Join(e.Containers, ", "))
}

func (e *CycleError) Unwrap() error { return ErrDependencyCycle }

// SelectionError is returned when a user-supplied name cannot be turned
// into containers.
type SelectionError struct {
	Name string
	Err  error // ErrUnknownSelection or ErrServiceNotExpanded
}

func (e *SelectionError) Error() string {
	if errors.Is(e.Err, ErrServiceNotExpanded) {
		return fmt.Sprintf("%s is a service but service expansion was not requested", e.Name)
	}
	return fmt.Sprintf("%s is neither a service nor a container", e.Name)
}

func (e *SelectionError) Unwrap() error { return e.Err }
