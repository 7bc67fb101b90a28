package environment

// =============================================================================
// Dependency Resolver
// =============================================================================

// Closure transitively gathers every container related to the given set
// through the service dependency relation: requires edges when forward,
// the inverse needed-by relation otherwise. An empty input means the
// whole environment. The union is monotonic over a finite universe, so
// the fixed point terminates even on cyclic graphs.
func (e *Environment) Closure(containers []*Container, forward bool) []*Container {
	set := make(map[string]*Container)
	if len(containers) == 0 {
		for name, c := range e.Containers {
			set[name] = c
		}
	} else {
		for _, c := range containers {
			set[c.Name] = c
		}
	}

	for changed := true; changed; {
		changed = false
		for _, name := range sortedKeys(set) {
			svc := e.Services[set[name].Service]
			var related []*Service
			if forward {
				related = e.Dependencies(svc)
			} else {
				related = e.Dependents(svc)
			}
			for _, rel := range related {
				for _, c := range e.ServiceContainers(rel) {
					if _, ok := set[c.Name]; !ok {
						set[c.Name] = c
						changed = true
					}
				}
			}
		}
	}

	out := make([]*Container, 0, len(set))
	for _, name := range sortedKeys(set) {
		out = append(out, set[name])
	}
	return out
}

// Order sequences the closure of the given containers so that, walking
// the result, every container appears only after its predecessors:
// everything it transitively requires when forward (startup), everything
// transitively requiring it otherwise (shutdown).
//
// The algorithm is an iterative fixed point rather than a DFS toposort:
// each round places every pending container whose predecessors are
// already placed (or are itself), keeping stable name order within a
// round. A round that places nothing is an unresolvable set, reported as
// a cycle error naming the stuck containers. Worst case O(n²) over the
// closure, acceptable for declared environments.
//
// The result carries enough information for an executor to rebuild wave
// membership by re-checking predecessor satisfaction; waves themselves
// are not materialized here.
func (e *Environment) Order(containers []*Container, forward bool) ([]*Container, error) {
	pending := e.Closure(containers, forward)
	ordered := make([]*Container, 0, len(pending))
	placed := make(map[string]bool, len(pending))

	for len(pending) > 0 {
		var wait []*Container
		for _, container := range pending {
			if e.predecessorsPlaced(container, placed, forward) {
				ordered = append(ordered, container)
				placed[container.Name] = true
			} else {
				wait = append(wait, container)
			}
		}

		// A full round without progress means the remaining containers
		// all wait on each other.
		if len(wait) == len(pending) {
			stuck := make([]string, 0, len(wait))
			for _, c := range wait {
				stuck = append(stuck, c.Name)
			}
			return nil, &CycleError{Containers: stuck}
		}
		pending = wait
	}

	return ordered, nil
}

// predecessorsPlaced reports whether everything the container
// transitively waits on is already placed. The container itself is
// always an acceptable predecessor, so self-referencing services with a
// single instance do not deadlock.
func (e *Environment) predecessorsPlaced(container *Container, placed map[string]bool, forward bool) bool {
	for _, dep := range e.Closure([]*Container{container}, forward) {
		if dep.Name == container.Name {
			continue
		}
		if !placed[dep.Name] {
			return false
		}
	}
	return true
}
