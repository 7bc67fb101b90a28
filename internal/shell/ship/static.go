package ship

import (
	"context"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// StaticProvider resolves ships from the description's inline ships
// section. This is the default provider.
type StaticProvider struct {
	ships map[string]description.ShipConfig
}

// NewStaticProvider creates a provider over the declared ships.
func NewStaticProvider(ships map[string]description.ShipConfig) *StaticProvider {
	return &StaticProvider{ships: ships}
}

// Ships converts the declared section. No I/O happens here; the ships
// are taken at face value and connection problems surface when a play
// first reaches for them.
func (p *StaticProvider) Ships(_ context.Context) (map[string]*environment.Ship, error) {
	if len(p.ships) == 0 {
		return nil, ErrNoShips
	}
	out := make(map[string]*environment.Ship, len(p.ships))
	for name, cfg := range p.ships {
		out[name] = &environment.Ship{
			Name:       name,
			IP:         cfg.IP,
			DockerPort: cfg.DockerPort,
			SSHUser:    cfg.SSHUser,
			SSHPort:    cfg.SSHPort,
			SSHKey:     cfg.SSHKey,
			Provider:   "static",
			Timeout:    cfg.Timeout,
		}
	}
	return out, nil
}
