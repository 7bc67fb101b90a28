// Package description contains the typed model of an environment
// description document and the pure parsing that produces it.
// This is part of the Functional Core - Load is the only function
// touching the filesystem, everything else is side-effect free.
package description

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/template"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// DefaultSchema is the description schema version assumed when the
// flotilla header is absent.
const DefaultSchema = 2

// =============================================================================
// Description - Root Document
// =============================================================================

// Description is the fully-dereferenced environment description: the
// declarative document every command operates against. It is produced
// once per invocation and never mutated afterwards.
type Description struct {
	Flotilla     Meta                      `yaml:"flotilla"`
	Name         string                    `yaml:"name"`
	Ships        map[string]ShipConfig     `yaml:"ships"`
	ShipProvider ShipProviderConfig        `yaml:"ship_provider"`
	ShipDefaults ShipDefaults              `yaml:"ship_defaults"`
	Registries   map[string]Registry       `yaml:"registries"`
	Audit        []AuditConfig             `yaml:"audit"`
	Settings     Settings                  `yaml:"settings"`
	Services     map[string]ServiceConfig  `yaml:"services"`

	// BaseDir is the directory the description was loaded from. Relative
	// volume paths are resolved against it.
	BaseDir string `yaml:"-"`
}

// Schema returns the declared schema version, or DefaultSchema.
func (d *Description) Schema() int {
	if d.Flotilla.Schema == 0 {
		return DefaultSchema
	}
	return d.Flotilla.Schema
}

// Meta is the flotilla header block.
type Meta struct {
	Schema int `yaml:"schema"`
}

// Settings holds environment-wide behavior switches.
type Settings struct {
	// OrderSoftDependencies controls whether wants_info edges participate
	// in dependency ordering and cycle detection, in addition to link
	// variable propagation. Defaults to true, matching the historical
	// behavior where soft and hard dependencies order identically.
	OrderSoftDependencies *bool `yaml:"order_soft_dependencies"`
}

// OrderSoft returns the effective value of OrderSoftDependencies.
func (s Settings) OrderSoft() bool {
	return s.OrderSoftDependencies == nil || *s.OrderSoftDependencies
}

// =============================================================================
// Ships
// =============================================================================

// ShipConfig describes one statically declared execution host.
type ShipConfig struct {
	IP         string        `yaml:"ip"`
	DockerPort int           `yaml:"docker_port"`
	SSHUser    string        `yaml:"ssh_user"`
	SSHPort    int           `yaml:"ssh_port"`
	SSHKey     string        `yaml:"ssh_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ShipProviderConfig selects and parameterizes a dynamic ship provider.
// When Type is empty or "static", the ships section above is used as-is.
type ShipProviderConfig struct {
	Type     string `yaml:"type"`     // static, aws, digitalocean, hetzner
	Region   string `yaml:"region"`   // aws
	Tag      string `yaml:"tag"`      // aws, digitalocean: tag marking flotilla ships
	Selector string `yaml:"selector"` // hetzner: label selector
}

// ShipDefaults are merged into ships resolved by dynamic providers,
// which only learn addresses from the cloud API.
type ShipDefaults struct {
	DockerPort int    `yaml:"docker_port"`
	SSHUser    string `yaml:"ssh_user"`
	SSHPort    int    `yaml:"ssh_port"`
	SSHKey     string `yaml:"ssh_key"`
}

// Registry holds private registry credentials for image pulls.
type Registry struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

// AuditConfig configures one audit sink.
type AuditConfig struct {
	Type string `yaml:"type"` // log, sqlite
	Path string `yaml:"path"` // sqlite: database file
}

// =============================================================================
// Services
// =============================================================================

// ServiceConfig describes one named container class.
type ServiceConfig struct {
	Image     string                    `yaml:"image"`
	Omit      bool                      `yaml:"omit"`
	Env       map[string]string         `yaml:"env"`
	Requires  []string                  `yaml:"requires"`
	WantsInfo []string                  `yaml:"wants_info"`
	Lifecycle map[string][]HookConfig   `yaml:"lifecycle"`
	Limits    LimitsConfig              `yaml:"limits"`
	Ports     map[string]PortConfig     `yaml:"ports"`
	Instances map[string]InstanceConfig `yaml:"instances"`
}

// InstanceConfig describes one placed instance of a service.
type InstanceConfig struct {
	Ship        string            `yaml:"ship"`
	Ports       map[string]int    `yaml:"ports"` // port name -> exposed host port
	Env         map[string]string `yaml:"env"`
	Volumes     map[string]string `yaml:"volumes"` // container path -> host path
	VolumesFrom []string          `yaml:"volumes_from"`
}

// HookConfig describes one lifecycle check, keyed under the state it
// gates ("running", "stopped").
type HookConfig struct {
	Type    string `yaml:"type"` // tcp, exec (exec is executed on the ship)
	Port    string `yaml:"port"` // named port for tcp checks
	Command string `yaml:"command"`
	MaxWait int    `yaml:"max_wait"` // seconds; 0 means the default
}

// PortConfig is a container port declaration: a bare number or
// "number/protocol".
type PortConfig struct {
	Number   int
	Protocol string
}

// UnmarshalYAML accepts either an integer or a "8125/udp" style string.
func (p *PortConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	spec := raw
	p.Protocol = "tcp"
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		p.Protocol = strings.ToLower(spec[idx+1:])
		spec = spec[:idx]
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n < 1 || n > 65535 {
		return NewConfigError("", fmt.Sprintf("port %q is not a valid port number", raw), ErrInvalidPort)
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return NewConfigError("", fmt.Sprintf("port %q has unknown protocol %q", raw, p.Protocol), ErrInvalidPort)
	}
	p.Number = n
	return nil
}

// LimitsConfig holds declared resource limits in human units.
type LimitsConfig struct {
	CPU    float64 `yaml:"cpu"`    // cores
	Memory string  `yaml:"memory"` // e.g. "256m", "2g"
	Swap   string  `yaml:"swap"`
}

// MemoryBytes parses the declared memory limit. Zero means unlimited.
func (l LimitsConfig) MemoryBytes() (int64, error) {
	if l.Memory == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(l.Memory)
	if err != nil {
		return 0, NewConfigError("limits.memory", fmt.Sprintf("cannot parse %q", l.Memory), ErrInvalidLimit)
	}
	return n, nil
}

// SwapBytes parses the declared swap limit. Zero means unlimited.
func (l LimitsConfig) SwapBytes() (int64, error) {
	if l.Swap == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(l.Swap)
	if err != nil {
		return 0, NewConfigError("limits.swap", fmt.Sprintf("cannot parse %q", l.Swap), ErrInvalidLimit)
	}
	return n, nil
}

// =============================================================================
// Parsing
// =============================================================================

// Parse decodes an environment description from raw YAML. Occurrences of
// ${VAR} and ${VAR:-default} are substituted from the lookup mapping
// before decoding, so values can be woven in from the caller's
// environment without a templating pass.
func Parse(data []byte, baseDir string, lookup func(string) (string, bool)) (*Description, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	interpolated, err := template.Substitute(string(data), template.Mapping(lookup))
	if err != nil {
		return nil, NewConfigError("", err.Error(), err)
	}

	var desc Description
	if err := yaml.Unmarshal([]byte(interpolated), &desc); err != nil {
		return nil, NewConfigError("", err.Error(), ErrInvalidYAML)
	}
	desc.BaseDir = baseDir

	if err := validate(&desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Load reads and parses a description file. Variables are substituted
// from the process environment.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("", fmt.Sprintf("cannot read %s: %v", path, err), err)
	}
	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		baseDir = filepath.Dir(path)
	}
	return Parse(data, baseDir, os.LookupEnv)
}

// validate checks the structural preconditions the entity builder
// relies on. Cross-entity validation (dangling references, duplicate
// container names) belongs to the environment builder.
func validate(desc *Description) error {
	if desc.Name == "" {
		return NewConfigError("name", "environment name is missing", ErrMissingName)
	}
	if len(desc.Services) == 0 {
		return NewConfigError("services", "environment must define at least one service", ErrNoServices)
	}

	for name, svc := range desc.Services {
		field := "services." + name
		if svc.Image == "" {
			return NewConfigError(field+".image", fmt.Sprintf("service %s must declare an image", name), ErrServiceNoImage)
		}
		if _, err := svc.Limits.MemoryBytes(); err != nil {
			return err
		}
		if _, err := svc.Limits.SwapBytes(); err != nil {
			return err
		}
		for instance, inst := range svc.Instances {
			for portName := range inst.Ports {
				if _, ok := svc.Ports[portName]; !ok {
					return NewConfigError(
						fmt.Sprintf("%s.instances.%s.ports.%s", field, instance, portName),
						fmt.Sprintf("instance %s exposes port %q which service %s does not declare", instance, portName, name),
						ErrInvalidPort)
				}
			}
		}
	}

	switch desc.ShipProvider.Type {
	case "", "static", "aws", "digitalocean", "hetzner":
	default:
		return NewConfigError("ship_provider.type",
			fmt.Sprintf("unknown ship provider %q", desc.ShipProvider.Type), nil)
	}

	for i, a := range desc.Audit {
		switch a.Type {
		case "log":
		case "sqlite":
			if a.Path == "" {
				return NewConfigError(fmt.Sprintf("audit[%d].path", i), "sqlite audit sink requires a path", nil)
			}
		default:
			return NewConfigError(fmt.Sprintf("audit[%d].type", i),
				fmt.Sprintf("unknown audit sink %q", a.Type), nil)
		}
	}

	return nil
}
