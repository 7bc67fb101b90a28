package environment

import (
	"strconv"
	"strings"
)

// =============================================================================
// Link-Variable Propagator
// =============================================================================

// LinkVariables returns the memoized reachability variables of a
// service: for every instance, where it runs and which host ports it
// publishes. The memo is populated once during Build and never mutated,
// so concurrent readers need no synchronization.
//
// Variable naming, for service S with container C:
//
//	{S}_{C}_HOST          = IP of C's ship
//	{S}_{C}_{PORT}_PORT   = exposed host port, one per named port
//
// where names are upper-cased with non-alphanumerics mapped to "_".
func (e *Environment) LinkVariables(service string) map[string]string {
	return e.linkVars[service]
}

// propagateLinkVariables computes every service's variables and merges
// them into each container's environment.
//
// Merge order is deterministic and documented: a container starts from
// its own resolved env (service defaults overridden by instance env),
// then receives its own service's link variables, then each dependency's
// in requires declaration order, then each in wants_info declaration
// order. Later keys override earlier ones on collision.
func (e *Environment) propagateLinkVariables() {
	// Compute the memo first: each service's variables are derived at
	// most once regardless of how many services depend on it.
	for name, svc := range e.Services {
		e.linkVars[name] = buildLinkVariables(e, svc)
	}

	for _, name := range sortedKeys(e.Services) {
		svc := e.Services[name]
		sources := append([]string{name}, svc.Requires...)
		sources = append(sources, svc.WantsInfo...)
		for _, container := range e.ServiceContainers(svc) {
			for _, source := range sources {
				mergeOver(container.Env, e.linkVars[source])
			}
		}
	}
}

func buildLinkVariables(e *Environment, svc *Service) map[string]string {
	vars := make(map[string]string)
	for _, container := range e.ServiceContainers(svc) {
		ship := e.ContainerShip(container)
		prefix := linkName(svc.Name) + "_" + linkName(container.Name)
		vars[prefix+"_HOST"] = ship.IP
		for _, portName := range sortedKeys(container.Ports) {
			port := container.Ports[portName]
			if port.Exposed == 0 {
				continue
			}
			vars[prefix+"_"+linkName(portName)+"_PORT"] = strconv.Itoa(port.Exposed)
		}
	}
	return vars
}

// linkName maps an entity name onto the environment-variable alphabet.
func linkName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return strings.ToUpper(mapped)
}
