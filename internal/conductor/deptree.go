package conductor

import (
	"strings"

	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// =============================================================================
// Dependency Tree
// =============================================================================

// DepTree renders the dependency tree of the selected services, one root
// per service. Reverse renders dependents instead of dependencies.
// Services already on the path are cut short, so cyclic declarations
// still render.
func (c *Conductor) DepTree(names []string, reverse bool) (string, error) {
	services, err := c.env.SelectServices(names)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, svc := range services {
		sb.WriteString(svc.Name)
		sb.WriteByte('\n')
		c.renderBranch(&sb, svc, reverse, "", map[string]bool{svc.Name: true})
	}
	return sb.String(), nil
}

func (c *Conductor) renderBranch(sb *strings.Builder, svc *environment.Service, reverse bool, prefix string, onPath map[string]bool) {
	var related []*environment.Service
	if reverse {
		related = c.env.Dependents(svc)
	} else {
		related = c.env.Dependencies(svc)
	}

	for i, rel := range related {
		last := i == len(related)-1
		connector, childPrefix := "├── ", prefix+"│   "
		if last {
			connector, childPrefix = "└── ", prefix+"    "
		}

		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(rel.Name)
		if onPath[rel.Name] {
			sb.WriteString(" (cycle)")
			sb.WriteByte('\n')
			continue
		}
		sb.WriteByte('\n')

		onPath[rel.Name] = true
		c.renderBranch(sb, rel, reverse, childPrefix, onPath)
		delete(onPath, rel.Name)
	}
}
