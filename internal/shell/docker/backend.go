// Package docker reaches each ship's container runtime, either directly
// through its Docker endpoint or through the flotilla-agent binary over
// SSH. This is part of the Imperative Shell.
package docker

import (
	"context"
	"io"
	"time"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// =============================================================================
// Backend Interface
// =============================================================================

// Backend is the per-ship container runtime surface the play executor
// drives. Implementations: EngineBackend (Docker SDK over the ship's
// endpoint) and AgentBackend (flotilla-agent over SSH).
type Backend interface {
	// Ping checks the runtime is reachable.
	Ping(ctx context.Context) error

	// InspectContainer returns the state of a named container, or a
	// not-found error.
	InspectContainer(ctx context.Context, name string) (*agent.ContainerState, error)

	// CreateContainer creates a container and returns its runtime ID.
	CreateContainer(ctx context.Context, spec agent.ContainerSpec) (string, error)

	// StartContainer starts a created or stopped container.
	StartContainer(ctx context.Context, name string) error

	// StopContainer stops a running container within the grace period.
	StopContainer(ctx context.Context, name string, timeout time.Duration) error

	// KillContainer forcibly terminates a running container.
	KillContainer(ctx context.Context, name string) error

	// RemoveContainer deletes a stopped container.
	RemoveContainer(ctx context.Context, name string) error

	// PullImage refreshes an image, with optional pre-encoded registry
	// credentials.
	PullImage(ctx context.Context, image string, auth string) error

	// InspectImage returns the local ID of an image, or a not-found
	// error.
	InspectImage(ctx context.Context, image string) (string, error)

	// ContainerLogs streams or dumps a container's log. The caller
	// closes the reader.
	ContainerLogs(ctx context.Context, name string, opts agent.LogsRequest) (io.ReadCloser, error)

	// Close releases the connection.
	Close() error
}

// NewBackend picks the transport a ship supports: the Docker endpoint
// when the ship exposes one, the SSH agent otherwise.
func NewBackend(ship *environment.Ship, opts BackendOptions) (Backend, error) {
	if ship.DockerPort != 0 {
		return NewEngineBackend(ship)
	}
	if ship.SSHUser != "" {
		return NewAgentBackend(ship, opts.AgentPath)
	}
	return nil, NewBackendError("NewBackend", ship.Name, "", "no docker_port and no ssh_user configured", ErrNoEndpoint)
}

// BackendOptions tunes backend construction.
type BackendOptions struct {
	// AgentPath is where flotilla-agent lives on SSH-only ships.
	// Defaults to DefaultAgentPath.
	AgentPath string
}
