// Package environment builds and validates the service/container/ship
// graph an environment description declares, and computes the
// dependency-aware orderings every lifecycle command runs in.
//
// This is part of the Functional Core - construction and ordering are
// synchronous, pure computations with no I/O. A built Environment is
// read-only and safe for unrestricted concurrent reads.
package environment

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// Ship
// =============================================================================

// Ship is a named execution host containers are placed on. Ships are
// referenced by containers through their name, never owned.
type Ship struct {
	Name       string
	IP         string
	DockerPort int // 0 when the Docker daemon is not directly reachable
	SSHUser    string
	SSHPort    int
	SSHKey     string
	Provider   string // static, aws, digitalocean, hetzner
	Timeout    time.Duration
}

// DockerEndpoint returns the daemon address for ships exposing their
// Docker port, or "" for SSH-only ships.
func (s *Ship) DockerEndpoint() string {
	if s.DockerPort == 0 {
		return ""
	}
	return fmt.Sprintf("tcp://%s:%d", s.IP, s.DockerPort)
}

// SSHAddress returns the host:port pair for the ship's SSH endpoint.
func (s *Ship) SSHAddress() string {
	port := s.SSHPort
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", s.IP, port)
}

func (s *Ship) String() string {
	return fmt.Sprintf("ship %s (%s)", s.Name, s.IP)
}

// =============================================================================
// Service
// =============================================================================

// Port is a named port declaration. Number is the container-side port;
// Exposed is the host-side port an instance publishes it on (0 when the
// instance does not publish it).
type Port struct {
	Number   int
	Exposed  int
	Protocol string
}

// Hook is one lifecycle check gating a state transition.
type Hook struct {
	Type    string // tcp, exec
	Port    string // named port, for tcp checks
	Command string
	MaxWait time.Duration
}

// Limits are the per-container resource limits, normalized to bytes.
type Limits struct {
	CPU    float64
	Memory int64
	Swap   int64
}

// Service is a named container class. Dependency relations are kept as
// ordered name slices resolved through the owning Environment's maps,
// which keeps the Service↔Service relation cycle-free at the ownership
// level while preserving declaration order for deterministic link
// variable merging.
type Service struct {
	Name      string
	Image     string
	Omit      bool
	Env       map[string]string
	Lifecycle map[string][]Hook
	Limits    Limits
	Ports     map[string]Port // container-side declarations, Exposed unset

	// Requires and WantsInfo are outgoing edges in declaration order.
	// Requires also receives implicit volumes_from edges, appended once.
	Requires  []string
	WantsInfo []string

	// RequiredBy and WantedBy are the maintained inverse relations.
	RequiredBy []string
	WantedBy   []string

	instances []string // container names, sorted
}

func (s *Service) String() string {
	return fmt.Sprintf("service %s [%d instances]", s.Name, len(s.instances))
}

// =============================================================================
// Container
// =============================================================================

// Container is one placed instance of a service. Its name is unique
// across the whole environment. Service and ship adjacency is
// name-based; the Environment resolves it.
type Container struct {
	Name        string
	Service     string
	Ship        string
	Env         map[string]string // fully resolved: defaults + instance + link variables
	Ports       map[string]Port
	Volumes     map[string]string // container path -> host path
	VolumesFrom []string
}

func (c *Container) String() string {
	return fmt.Sprintf("container %s (of %s, on %s)", c.Name, c.Service, c.Ship)
}

// =============================================================================
// Environment
// =============================================================================

// Environment is the root aggregate all commands operate against: the
// fully wired ship/service/container graph. It is built once per
// invocation, read-only during execution, and discarded on exit.
type Environment struct {
	Name    string
	Schema  int
	BaseDir string

	// OrderSoft controls whether wants_info edges participate in
	// ordering and cycle detection. Link variables always flow along
	// them either way.
	OrderSoft bool

	Ships      map[string]*Ship
	Services   map[string]*Service
	Containers map[string]*Container

	// linkVars memoizes per-service link variables. Populated during
	// Build, never mutated afterwards.
	linkVars map[string]map[string]string
}

// Ship returns the named ship, or nil.
func (e *Environment) Ship(name string) *Ship { return e.Ships[name] }

// Service returns the named service, or nil.
func (e *Environment) Service(name string) *Service { return e.Services[name] }

// Container returns the named container, or nil.
func (e *Environment) Container(name string) *Container { return e.Containers[name] }

// ContainerShip resolves the ship a container is placed on.
func (e *Environment) ContainerShip(c *Container) *Ship { return e.Ships[c.Ship] }

// ServiceContainers returns a service's containers sorted by name.
func (e *Environment) ServiceContainers(s *Service) []*Container {
	out := make([]*Container, 0, len(s.instances))
	for _, name := range s.instances {
		out = append(out, e.Containers[name])
	}
	return out
}

// ServiceNames returns all service names, sorted.
func (e *Environment) ServiceNames() []string {
	return sortedKeys(e.Services)
}

// ContainerNames returns all container names, sorted.
func (e *Environment) ContainerNames() []string {
	return sortedKeys(e.Containers)
}

// Dependencies returns the services a service's containers must come
// after when starting: requires edges, plus wants_info edges when soft
// ordering is enabled. Declaration order, no duplicates.
func (e *Environment) Dependencies(s *Service) []*Service {
	return e.resolveEdges(s.Requires, s.WantsInfo)
}

// Dependents returns the inverse relation: services whose containers
// must come first when stopping.
func (e *Environment) Dependents(s *Service) []*Service {
	return e.resolveEdges(s.RequiredBy, s.WantedBy)
}

// InfoSources returns the services whose link variables a service's
// containers receive: requires then wants_info, declaration order.
// Unlike Dependencies this never honors the soft-ordering switch.
func (e *Environment) InfoSources(s *Service) []*Service {
	seen := make(map[string]bool, len(s.Requires)+len(s.WantsInfo))
	out := make([]*Service, 0, len(s.Requires)+len(s.WantsInfo))
	for _, name := range append(append([]string{}, s.Requires...), s.WantsInfo...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, e.Services[name])
	}
	return out
}

func (e *Environment) resolveEdges(hard, soft []string) []*Service {
	names := append([]string{}, hard...)
	if e.OrderSoft {
		names = append(names, soft...)
	}
	seen := make(map[string]bool, len(names))
	out := make([]*Service, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, e.Services[name])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortContainers(cs []*Container) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}
