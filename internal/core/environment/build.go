package environment

import (
	"path/filepath"
	"sort"
	"time"

	"dario.cat/mergo"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/placement"
)

// defaultHookWait bounds lifecycle checks that do not declare max_wait.
const defaultHookWait = 300 * time.Second

// =============================================================================
// Environment Builder
// =============================================================================

// Build wires a full Environment from a parsed description and the
// resolved ship set, or fails with the first structural error. The
// pipeline is a chain of preconditions: services and containers are
// constructed (duplicate names detected here), dependency edges wired
// (dangling references detected here), link variables computed and
// merged, and volumes_from placement validated. No partial Environment
// is ever returned.
func Build(desc *description.Description, ships map[string]*Ship) (*Environment, error) {
	env := &Environment{
		Name:       desc.Name,
		Schema:     desc.Schema(),
		BaseDir:    desc.BaseDir,
		OrderSoft:  desc.Settings.OrderSoft(),
		Ships:      ships,
		Services:   make(map[string]*Service, len(desc.Services)),
		Containers: make(map[string]*Container),
		linkVars:   make(map[string]map[string]string, len(desc.Services)),
	}

	// Per-ship container counts feed placement of unpinned instances.
	counts := make(map[string]int, len(ships))

	// Service names are processed sorted so placement and duplicate
	// detection do not depend on map iteration order.
	for _, name := range sortedKeys(desc.Services) {
		cfg := desc.Services[name]
		svc, err := buildService(name, cfg)
		if err != nil {
			return nil, err
		}
		env.Services[name] = svc

		for _, instance := range sortedKeys(cfg.Instances) {
			if existing := env.Containers[instance]; existing != nil {
				return nil, &DuplicateContainerError{
					Container: instance,
					Service:   name,
					Existing:  existing.Service,
				}
			}
			container, err := buildContainer(env, svc, instance, cfg, cfg.Instances[instance], counts)
			if err != nil {
				return nil, err
			}
			env.Containers[instance] = container
			svc.instances = append(svc.instances, instance)
			counts[container.Ship]++
		}
		sort.Strings(svc.instances)
	}

	// Wire declared dependency edges between services.
	for _, name := range sortedKeys(desc.Services) {
		cfg := desc.Services[name]
		svc := env.Services[name]
		for _, dep := range cfg.Requires {
			target, ok := env.Services[dep]
			if !ok {
				return nil, &DependencyRefError{Service: name, Dependency: dep}
			}
			if appendOnce(&svc.Requires, dep) {
				appendOnce(&target.RequiredBy, name)
			}
		}
		for _, dep := range cfg.WantsInfo {
			target, ok := env.Services[dep]
			if !ok {
				return nil, &DependencyRefError{Service: name, Dependency: dep}
			}
			if appendOnce(&svc.WantsInfo, dep) {
				appendOnce(&target.WantedBy, name)
			}
		}
	}

	// Derive link variables and merge them into container environments.
	env.propagateLinkVariables()

	// volumes_from locality and conflict checks; may add implicit
	// requires edges.
	if err := env.validateVolumes(); err != nil {
		return nil, err
	}

	return env, nil
}

// buildService shapes the pure service record; edges are wired later.
func buildService(name string, cfg description.ServiceConfig) (*Service, error) {
	memory, err := cfg.Limits.MemoryBytes()
	if err != nil {
		return nil, err
	}
	swap, err := cfg.Limits.SwapBytes()
	if err != nil {
		return nil, err
	}

	ports := make(map[string]Port, len(cfg.Ports))
	for portName, p := range cfg.Ports {
		ports[portName] = Port{Number: p.Number, Protocol: p.Protocol}
	}

	lifecycle := make(map[string][]Hook, len(cfg.Lifecycle))
	for state, hooks := range cfg.Lifecycle {
		for _, h := range hooks {
			wait := defaultHookWait
			if h.MaxWait > 0 {
				wait = time.Duration(h.MaxWait) * time.Second
			}
			lifecycle[state] = append(lifecycle[state], Hook{
				Type:    h.Type,
				Port:    h.Port,
				Command: h.Command,
				MaxWait: wait,
			})
		}
	}

	return &Service{
		Name:      name,
		Image:     cfg.Image,
		Omit:      cfg.Omit,
		Env:       cloneEnv(cfg.Env),
		Lifecycle: lifecycle,
		Limits:    Limits{CPU: cfg.Limits.CPU, Memory: memory, Swap: swap},
		Ports:     ports,
	}, nil
}

// buildContainer places one instance and resolves its static
// configuration. Link variables are merged in a later pipeline step,
// once all services exist.
func buildContainer(env *Environment, svc *Service, name string,
	cfg description.ServiceConfig, inst description.InstanceConfig,
	counts map[string]int) (*Container, error) {

	shipName := inst.Ship
	if shipName != "" {
		if _, ok := env.Ships[shipName]; !ok {
			return nil, &ShipRefError{Container: name, Ship: shipName}
		}
	} else {
		candidates := make([]placement.Candidate, 0, len(env.Ships))
		for _, sn := range sortedKeys(env.Ships) {
			candidates = append(candidates, placement.Candidate{Ship: sn, Containers: counts[sn]})
		}
		picked, err := placement.Pick(placement.Request{Candidates: candidates})
		if err != nil {
			return nil, err
		}
		shipName = picked.SelectedShip
	}

	// Instance env overrides service defaults.
	containerEnv := cloneEnv(svc.Env)
	mergeOver(containerEnv, inst.Env)

	// Every declared service port exists on the container. Instances may
	// override the exposed host port; the default publishes the
	// container port number unchanged.
	ports := make(map[string]Port, len(svc.Ports))
	for portName, p := range svc.Ports {
		exposed := p.Number
		if override, ok := inst.Ports[portName]; ok {
			exposed = override
		}
		ports[portName] = Port{Number: p.Number, Exposed: exposed, Protocol: p.Protocol}
	}

	volumes := make(map[string]string, len(inst.Volumes))
	for target, source := range inst.Volumes {
		if !filepath.IsAbs(source) && env.BaseDir != "" {
			source = filepath.Join(env.BaseDir, source)
		}
		volumes[target] = source
	}

	return &Container{
		Name:        name,
		Service:     svc.Name,
		Ship:        shipName,
		Env:         containerEnv,
		Ports:       ports,
		Volumes:     volumes,
		VolumesFrom: append([]string{}, inst.VolumesFrom...),
	}, nil
}

// appendOnce appends name to the slice if absent; reports whether it
// appended. Keeps edge wiring idempotent without losing declaration
// order.
func appendOnce(edges *[]string, name string) bool {
	for _, existing := range *edges {
		if existing == name {
			return false
		}
	}
	*edges = append(*edges, name)
	return true
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// mergeOver merges src into dst, src winning on collisions.
func mergeOver(dst map[string]string, src map[string]string) {
	if len(src) == 0 {
		return
	}
	_ = mergo.Merge(&dst, src, mergo.WithOverride)
}
