package play

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/registry"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
	"github.com/flotilla-orch/flotilla/internal/shell/docker"
)

// hookPollInterval is how often a lifecycle check is retried until its
// max_wait expires.
const hookPollInterval = time.Second

// =============================================================================
// Per-Container Operations
// =============================================================================

// statusContainer reports the container's state. Full status also
// verifies the running-state lifecycle checks pass.
func (p *Play) statusContainer(ctx context.Context, c *environment.Container, full bool) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	state, err := backend.InspectContainer(ctx, c.Name)
	if err != nil {
		if errors.Is(err, docker.ErrContainerNotFound) {
			return "absent", nil
		}
		return "", err
	}

	if !state.Running {
		return fmt.Sprintf("down (exit %d)", state.ExitCode), nil
	}
	if full {
		if err := p.checkRunning(ctx, c); err != nil {
			return "running (checks failing)", nil
		}
		return "running (checks passing)", nil
	}
	return "running", nil
}

// pullContainer refreshes the service's image on the container's ship.
func (p *Play) pullContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	image := p.env.Services[c.Service].Image
	auth, err := p.registryAuth(image)
	if err != nil {
		return "", err
	}
	if err := backend.PullImage(ctx, image, auth); err != nil {
		return "", err
	}
	return "pulled " + image, nil
}

// startContainer brings the container up: pull if asked, create unless
// an existing container is reused, start, then wait for the service's
// running checks.
func (p *Play) startContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	svc := p.env.Services[c.Service]

	state, err := backend.InspectContainer(ctx, c.Name)
	exists := err == nil
	if err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
		return "", err
	}
	if exists && state.Running {
		return "already up", nil
	}

	if p.opts.RefreshImages {
		auth, err := p.registryAuth(svc.Image)
		if err != nil {
			return "", err
		}
		if err := backend.PullImage(ctx, svc.Image, auth); err != nil {
			return "", err
		}
	}

	switch {
	case exists && p.opts.Reuse:
		if err := backend.StartContainer(ctx, c.Name); err != nil {
			return "", err
		}
	default:
		if exists {
			if err := backend.RemoveContainer(ctx, c.Name); err != nil {
				return "", err
			}
		}
		if err := p.createAndStart(ctx, backend, c, svc); err != nil {
			return "", err
		}
	}

	if err := p.checkRunning(ctx, c); err != nil {
		return "", err
	}
	return "up", nil
}

// createAndStart creates the container and starts it, pulling the image
// on demand when the create fails for lack of it.
func (p *Play) createAndStart(ctx context.Context, backend docker.Backend, c *environment.Container, svc *environment.Service) error {
	spec := containerSpec(p.env, c, svc)

	_, err := backend.CreateContainer(ctx, spec)
	if err != nil && errorMentionsMissingImage(err) {
		auth, authErr := p.registryAuth(svc.Image)
		if authErr != nil {
			return authErr
		}
		if pullErr := backend.PullImage(ctx, svc.Image, auth); pullErr != nil {
			return pullErr
		}
		_, err = backend.CreateContainer(ctx, spec)
	}
	if err != nil {
		return err
	}

	return backend.StartContainer(ctx, c.Name)
}

// stopContainer stops the container if it is running. Absent or already
// stopped containers are a no-op, not an error.
func (p *Play) stopContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	state, err := backend.InspectContainer(ctx, c.Name)
	if err != nil {
		if errors.Is(err, docker.ErrContainerNotFound) {
			return "absent", nil
		}
		return "", err
	}
	if !state.Running {
		return "already down", nil
	}

	if err := backend.StopContainer(ctx, c.Name, p.opts.StopTimeout); err != nil {
		if errors.Is(err, docker.ErrContainerNotRunning) {
			return "already down", nil
		}
		return "", err
	}
	return "stopped", nil
}

// restartContainer stops then starts the container. With only-if-changed
// a running container whose image did not move is left alone.
func (p *Play) restartContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	svc := p.env.Services[c.Service]

	if p.opts.RefreshImages {
		auth, err := p.registryAuth(svc.Image)
		if err != nil {
			return "", err
		}
		if err := backend.PullImage(ctx, svc.Image, auth); err != nil {
			return "", err
		}
	}

	if p.opts.OnlyIfChanged {
		if state, err := backend.InspectContainer(ctx, c.Name); err == nil && state.Running {
			imageID, err := backend.InspectImage(ctx, svc.Image)
			if err == nil && imageID == state.ImageID {
				return "unchanged", nil
			}
		}
	}

	if _, err := p.stopContainer(ctx, c); err != nil {
		return "", err
	}
	if p.opts.StopStartDelay > 0 {
		time.Sleep(p.opts.StopStartDelay)
	}
	if _, err := p.startContainer(ctx, c); err != nil {
		return "", err
	}
	return "restarted", nil
}

// killContainer forcibly terminates the container if it is running.
func (p *Play) killContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	err = backend.KillContainer(ctx, c.Name)
	switch {
	case err == nil:
		return "killed", nil
	case errors.Is(err, docker.ErrContainerNotFound):
		return "absent", nil
	case errors.Is(err, docker.ErrContainerNotRunning):
		return "already down", nil
	default:
		return "", err
	}
}

// cleanContainer removes a stopped container. Running containers are
// refused rather than force-removed.
func (p *Play) cleanContainer(ctx context.Context, c *environment.Container) (string, error) {
	backend, err := p.backend(c)
	if err != nil {
		return "", err
	}

	state, err := backend.InspectContainer(ctx, c.Name)
	if err != nil {
		if errors.Is(err, docker.ErrContainerNotFound) {
			return "absent", nil
		}
		return "", err
	}
	if state.Running {
		return "", fmt.Errorf("container %s is still running on %s", c.Name, c.Ship)
	}

	if err := backend.RemoveContainer(ctx, c.Name); err != nil {
		return "", err
	}
	return "removed", nil
}

// =============================================================================
// Lifecycle Checks
// =============================================================================

// checkRunning runs the service's running-state lifecycle checks against
// the container, retrying each until it passes or its max_wait expires.
// Only tcp checks are verifiable from the controller; other check types
// are skipped.
func (p *Play) checkRunning(ctx context.Context, c *environment.Container) error {
	svc := p.env.Services[c.Service]
	ship := p.env.ContainerShip(c)

	for _, hook := range svc.Lifecycle["running"] {
		if hook.Type != "tcp" {
			continue
		}
		port, ok := c.Ports[hook.Port]
		if !ok || port.Exposed == 0 {
			// Unpublished ports cannot be probed from outside the ship.
			continue
		}
		addr := net.JoinHostPort(ship.IP, strconv.Itoa(port.Exposed))
		if err := waitForTCP(ctx, addr, hook.MaxWait); err != nil {
			return fmt.Errorf("container %s: tcp check on port %s (%s): %w", c.Name, hook.Port, addr, err)
		}
	}
	return nil
}

// waitForTCP polls the address until a connection succeeds or the
// deadline passes.
func waitForTCP(ctx context.Context, addr string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		conn, err := net.DialTimeout("tcp", addr, hookPollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not reachable after %v", maxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hookPollInterval):
		}
	}
}

// =============================================================================
// Spec and Auth Helpers
// =============================================================================

// containerSpec maps a placed container onto the backend's create spec.
func containerSpec(env *environment.Environment, c *environment.Container, svc *environment.Service) agent.ContainerSpec {
	spec := agent.ContainerSpec{
		Name:  c.Name,
		Image: svc.Image,
		Env:   c.Env,
		Labels: map[string]string{
			"flotilla.environment": env.Name,
			"flotilla.service":     c.Service,
		},
		VolumesFrom: c.VolumesFrom,
		Memory:      svc.Limits.Memory,
		MemorySwap:  svc.Limits.Swap,
		CPU:         svc.Limits.CPU,
	}

	for _, name := range sortedPortNames(c.Ports) {
		port := c.Ports[name]
		spec.Ports = append(spec.Ports, agent.PortBinding{
			ContainerPort: port.Number,
			HostPort:      port.Exposed,
			Protocol:      port.Protocol,
		})
	}

	for _, target := range sortedVolumeTargets(c.Volumes) {
		spec.Binds = append(spec.Binds, agent.VolumeBind{
			Source: c.Volumes[target],
			Target: target,
		})
	}

	return spec
}

// registryAuth returns the pre-encoded credentials for the registry
// serving the image, or "" when no configured registry matches.
func (p *Play) registryAuth(image string) (string, error) {
	for _, reg := range p.registries {
		if reg.Server == "" || !matchesRegistry(image, reg.Server) {
			continue
		}
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      reg.Username,
			Password:      reg.Password,
			Email:         reg.Email,
			ServerAddress: reg.Server,
		})
		if err != nil {
			return "", fmt.Errorf("encode registry auth for %s: %w", reg.Server, err)
		}
		return encoded, nil
	}
	return "", nil
}

// matchesRegistry reports whether the image is served by the registry:
// its first path component equals the registry host.
func matchesRegistry(image, server string) bool {
	return len(image) > len(server) && image[:len(server)] == server && image[len(server)] == '/'
}

func errorMentionsMissingImage(err error) bool {
	return errors.Is(err, docker.ErrImageNotFound) ||
		(err != nil && strings.Contains(err.Error(), "No such image"))
}

// backend resolves the container's ship backend from the pool.
func (p *Play) backend(c *environment.Container) (docker.Backend, error) {
	ship := p.env.ContainerShip(c)
	if ship == nil {
		return nil, fmt.Errorf("container %s references unknown ship %s", c.Name, c.Ship)
	}
	return p.backends.Get(ship)
}

func sortedPortNames(ports map[string]environment.Port) []string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedVolumeTargets(volumes map[string]string) []string {
	targets := make([]string, 0, len(volumes))
	for target := range volumes {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}
