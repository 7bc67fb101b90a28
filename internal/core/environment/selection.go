package environment

import (
	"path"
	"sort"
)

// =============================================================================
// Selection Layer
// =============================================================================

// Resolution is the tagged result of resolving a user-supplied name:
// exactly one of Container or Service is set.
type Resolution struct {
	Container *Container
	Service   *Service
}

// Resolve maps a name onto the entity it denotes. Container names take
// precedence, mirroring the global container namespace; unknown names
// fail with a selection error.
func (e *Environment) Resolve(name string) (Resolution, error) {
	if c, ok := e.Containers[name]; ok {
		return Resolution{Container: c}, nil
	}
	if s, ok := e.Services[name]; ok {
		return Resolution{Service: s}, nil
	}
	return Resolution{}, &SelectionError{Name: name, Err: ErrUnknownSelection}
}

// Select resolves names (container or service) into a deduplicated
// container set sorted by name. Service names expand to their containers
// only when expandServices is set; otherwise selection fails rather than
// silently acting on more containers than the operator asked for. An
// empty name list selects every container. Shell-style globs optionally
// post-filter by container name and by ship name.
func (e *Environment) Select(names []string, expandServices bool, containerGlob, shipGlob string) ([]*Container, error) {
	var selected []*Container
	if len(names) == 0 {
		for _, name := range sortedKeys(e.Containers) {
			selected = append(selected, e.Containers[name])
		}
	} else {
		for _, name := range names {
			res, err := e.Resolve(name)
			if err != nil {
				return nil, err
			}
			switch {
			case res.Container != nil:
				selected = append(selected, res.Container)
			case expandServices:
				selected = append(selected, e.ServiceContainers(res.Service)...)
			default:
				return nil, &SelectionError{Name: name, Err: ErrServiceNotExpanded}
			}
		}
	}

	seen := make(map[string]bool, len(selected))
	out := make([]*Container, 0, len(selected))
	for _, c := range selected {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		if containerGlob != "" {
			if match, err := path.Match(containerGlob, c.Name); err != nil || !match {
				continue
			}
		}
		if shipGlob != "" {
			if match, err := path.Match(shipGlob, c.Ship); err != nil || !match {
				continue
			}
		}
		out = append(out, c)
	}
	sortContainers(out)
	return out, nil
}

// SelectServices resolves names to their owning services, deduplicated
// and sorted by name, with no expansion policy involved. An empty name
// list selects every service. Used for dependency-tree display.
func (e *Environment) SelectServices(names []string) ([]*Service, error) {
	if len(names) == 0 {
		names = e.ServiceNames()
	}
	seen := make(map[string]bool, len(names))
	var out []*Service
	for _, name := range names {
		res, err := e.Resolve(name)
		if err != nil {
			return nil, err
		}
		svc := res.Service
		if svc == nil {
			svc = e.Services[res.Container.Service]
		}
		if seen[svc.Name] {
			continue
		}
		seen[svc.Name] = true
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
