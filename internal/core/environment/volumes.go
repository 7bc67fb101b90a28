package environment

import "sort"

// =============================================================================
// Volume/Locality Validator
// =============================================================================

// validateVolumes checks every volumes_from declaration: the target must
// exist, share the consumer's ship, and provide disjoint mount paths.
// Valid declarations add an implicit requires edge from the consumer's
// service to the target's, so ordering honors volume providers the same
// way it honors declared dependencies.
func (e *Environment) validateVolumes() error {
	for _, name := range sortedKeys(e.Containers) {
		container := e.Containers[name]
		for _, targetName := range container.VolumesFrom {
			target, ok := e.Containers[targetName]
			if !ok {
				return &VolumeRefError{Container: name, Target: targetName}
			}
			if target.Ship != container.Ship {
				return &LocalityError{
					Container:     name,
					Target:        targetName,
					ContainerShip: container.Ship,
					TargetShip:    target.Ship,
				}
			}
			if conflicts := pathIntersection(container.Volumes, target.Volumes); len(conflicts) > 0 {
				return &VolumeConflictError{Container: name, Target: targetName, Paths: conflicts}
			}

			// A service trivially precedes itself; only cross-service
			// edges are recorded.
			if container.Service == target.Service {
				continue
			}
			consumer := e.Services[container.Service]
			if appendOnce(&consumer.Requires, target.Service) {
				appendOnce(&e.Services[target.Service].RequiredBy, container.Service)
			}
		}
	}
	return nil
}

// pathIntersection returns the sorted container paths claimed by both
// sides, empty when the mounts are disjoint.
func pathIntersection(a, b map[string]string) []string {
	var both []string
	for path := range a {
		if _, ok := b[path]; ok {
			both = append(both, path)
		}
	}
	sort.Strings(both)
	return both
}
