package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// =============================================================================
// Engine Backend - Docker SDK over the ship's endpoint
// =============================================================================

// EngineBackend talks to a ship's Docker daemon directly.
type EngineBackend struct {
	ship string
	cli  *client.Client
}

// NewEngineBackend dials the ship's Docker endpoint. An empty endpoint
// falls back to the local environment, which is what single-host
// descriptions with a loopback ship want.
func NewEngineBackend(ship *environment.Ship) (*EngineBackend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if endpoint := ship.DockerEndpoint(); endpoint != "" {
		opts = append(opts, client.WithHost(endpoint))
	}
	if ship.Timeout > 0 {
		opts = append(opts, client.WithTimeout(ship.Timeout))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewBackendError("NewEngineBackend", ship.Name, "", "failed to create client", ErrConnectionFailed)
	}
	return &EngineBackend{ship: ship.Name, cli: cli}, nil
}

// Ping checks the daemon is reachable.
func (b *EngineBackend) Ping(ctx context.Context) error {
	if _, err := b.cli.Ping(ctx); err != nil {
		return NewBackendError("Ping", b.ship, "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the client connection.
func (b *EngineBackend) Close() error {
	return b.cli.Close()
}

// InspectContainer returns the state of a named container.
func (b *EngineBackend) InspectContainer(ctx context.Context, name string) (*agent.ContainerState, error) {
	resp, err := b.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewBackendError("InspectContainer", b.ship, name, "container not found", ErrContainerNotFound)
		}
		return nil, NewBackendError("InspectContainer", b.ship, name, err.Error(), err)
	}
	return convertInspect(&resp), nil
}

// CreateContainer creates a container from the spec.
func (b *EngineBackend) CreateContainer(ctx context.Context, spec agent.ContainerSpec) (string, error) {
	config := &container.Config{
		Image:  spec.Image,
		Cmd:    spec.Cmd,
		Labels: spec.Labels,
	}
	for k, v := range spec.Env {
		config.Env = append(config.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostConfig := &container.HostConfig{
		VolumesFrom: spec.VolumesFrom,
	}

	if len(spec.Ports) > 0 {
		portBindings := nat.PortMap{}
		exposedPorts := nat.PortSet{}
		for _, p := range spec.Ports {
			proto := p.Protocol
			if proto == "" {
				proto = "tcp"
			}
			containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			exposedPorts[containerPort] = struct{}{}

			hostPort := ""
			if p.HostPort != 0 {
				hostPort = strconv.Itoa(p.HostPort)
			}
			portBindings[containerPort] = []nat.PortBinding{{HostPort: hostPort}}
		}
		config.ExposedPorts = exposedPorts
		hostConfig.PortBindings = portBindings
	}

	for _, v := range spec.Binds {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	if spec.CPU > 0 {
		hostConfig.NanoCPUs = int64(spec.CPU * 1e9)
	}
	if spec.Memory > 0 {
		hostConfig.Memory = spec.Memory
	}
	if spec.MemorySwap > 0 {
		hostConfig.MemorySwap = spec.MemorySwap
	}

	resp, err := b.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		if strings.Contains(err.Error(), "Conflict") {
			return "", NewBackendError("CreateContainer", b.ship, spec.Name, "container already exists", ErrContainerAlreadyExists)
		}
		if strings.Contains(err.Error(), "port is already allocated") {
			return "", NewBackendError("CreateContainer", b.ship, spec.Name, err.Error(), ErrPortAlreadyAllocated)
		}
		return "", NewBackendError("CreateContainer", b.ship, spec.Name, err.Error(), err)
	}
	return resp.ID, nil
}

// StartContainer starts a created or stopped container.
func (b *EngineBackend) StartContainer(ctx context.Context, name string) error {
	err := b.cli.ContainerStart(ctx, name, container.StartOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewBackendError("StartContainer", b.ship, name, "container not found", ErrContainerNotFound)
		}
		if strings.Contains(err.Error(), "is already running") {
			return NewBackendError("StartContainer", b.ship, name, "container is already running", ErrContainerAlreadyRunning)
		}
		return NewBackendError("StartContainer", b.ship, name, err.Error(), err)
	}
	return nil
}

// StopContainer stops a running container.
func (b *EngineBackend) StopContainer(ctx context.Context, name string, timeout time.Duration) error {
	stopOptions := container.StopOptions{}
	if timeout > 0 {
		seconds := int(timeout.Seconds())
		stopOptions.Timeout = &seconds
	}

	err := b.cli.ContainerStop(ctx, name, stopOptions)
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewBackendError("StopContainer", b.ship, name, "container not found", ErrContainerNotFound)
		}
		if strings.Contains(err.Error(), "is not running") {
			return NewBackendError("StopContainer", b.ship, name, "container is not running", ErrContainerNotRunning)
		}
		return NewBackendError("StopContainer", b.ship, name, err.Error(), err)
	}
	return nil
}

// KillContainer sends SIGKILL.
func (b *EngineBackend) KillContainer(ctx context.Context, name string) error {
	err := b.cli.ContainerKill(ctx, name, "KILL")
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewBackendError("KillContainer", b.ship, name, "container not found", ErrContainerNotFound)
		}
		if strings.Contains(err.Error(), "is not running") {
			return NewBackendError("KillContainer", b.ship, name, "container is not running", ErrContainerNotRunning)
		}
		return NewBackendError("KillContainer", b.ship, name, err.Error(), err)
	}
	return nil
}

// RemoveContainer deletes a stopped container.
func (b *EngineBackend) RemoveContainer(ctx context.Context, name string) error {
	err := b.cli.ContainerRemove(ctx, name, container.RemoveOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewBackendError("RemoveContainer", b.ship, name, "container not found", ErrContainerNotFound)
		}
		return NewBackendError("RemoveContainer", b.ship, name, err.Error(), err)
	}
	return nil
}

// PullImage refreshes an image from its registry.
func (b *EngineBackend) PullImage(ctx context.Context, imageName string, auth string) error {
	pullOpts := image.PullOptions{RegistryAuth: auth}
	reader, err := b.cli.ImagePull(ctx, imageName, pullOpts)
	if err != nil {
		return NewBackendError("PullImage", b.ship, "", fmt.Sprintf("%s: %v", imageName, err), ErrImagePullFailed)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return NewBackendError("PullImage", b.ship, "", fmt.Sprintf("%s: %v", imageName, err), ErrImagePullFailed)
	}
	return nil
}

// InspectImage returns the local ID of an image.
func (b *EngineBackend) InspectImage(ctx context.Context, imageName string) (string, error) {
	resp, err := b.cli.ImageInspect(ctx, imageName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", NewBackendError("InspectImage", b.ship, "", fmt.Sprintf("image %s not found", imageName), ErrImageNotFound)
		}
		return "", NewBackendError("InspectImage", b.ship, "", err.Error(), err)
	}
	return resp.ID, nil
}

// ContainerLogs opens the container's log stream. The daemon
// multiplexes stdout/stderr for non-tty containers, so the stream is
// demultiplexed here and plain text handed to the caller.
func (b *EngineBackend) ContainerLogs(ctx context.Context, name string, opts agent.LogsRequest) (io.ReadCloser, error) {
	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
	}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}

	reader, err := b.cli.ContainerLogs(ctx, name, logOpts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewBackendError("ContainerLogs", b.ship, name, "container not found", ErrContainerNotFound)
		}
		return nil, NewBackendError("ContainerLogs", b.ship, name, err.Error(), err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, reader)
		reader.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// convertInspect maps a Docker inspect response onto the protocol state.
func convertInspect(resp *container.InspectResponse) *agent.ContainerState {
	state := &agent.ContainerState{
		ID:   resp.ID,
		Name: strings.TrimPrefix(resp.Name, "/"),
	}
	state.ImageID = resp.Image
	if resp.Config != nil {
		state.Image = resp.Config.Image
		state.Labels = resp.Config.Labels
	}
	if resp.State != nil {
		state.Status = resp.State.Status
		state.Running = resp.State.Running
		state.ExitCode = resp.State.ExitCode
		if t, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil && !t.IsZero() {
			state.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, resp.State.FinishedAt); err == nil && !t.IsZero() {
			state.FinishedAt = t
		}
	}
	if resp.NetworkSettings != nil {
		for containerPort, bindings := range resp.NetworkSettings.Ports {
			for _, binding := range bindings {
				hostPort, _ := strconv.Atoi(binding.HostPort)
				state.Ports = append(state.Ports, agent.PortBinding{
					ContainerPort: containerPort.Int(),
					HostPort:      hostPort,
					Protocol:      containerPort.Proto(),
				})
			}
		}
	}
	return state
}
