package ship

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// HetznerProvider resolves ships from Hetzner Cloud servers matching a
// label selector. Server names become ship names.
type HetznerProvider struct {
	client   *hcloud.Client
	config   description.ShipProviderConfig
	defaults description.ShipDefaults
	logger   *slog.Logger
}

// NewHetznerProvider creates a new Hetzner Cloud ship provider.
func NewHetznerProvider(apiToken string, config description.ShipProviderConfig,
	defaults description.ShipDefaults, logger *slog.Logger) *HetznerProvider {
	return &HetznerProvider{
		client:   hcloud.NewClient(hcloud.WithToken(apiToken)),
		config:   config,
		defaults: defaults,
		logger:   logger.With("ship_provider", "hetzner"),
	}
}

// Ships lists running servers matching the label selector.
func (p *HetznerProvider) Ships(ctx context.Context) (map[string]*environment.Ship, error) {
	selector := p.config.Selector
	if selector == "" {
		selector = defaultFleetTag
	}

	servers, err := p.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return nil, fmt.Errorf("list servers with selector %q: %w", selector, err)
	}

	ships := make(map[string]*environment.Ship)
	for _, server := range servers {
		if !usableServer(server) {
			continue
		}
		ship := &environment.Ship{
			Name:     server.Name,
			IP:       server.PublicNet.IPv4.IP.String(),
			Provider: "hetzner",
		}
		applyDefaults(ship, p.defaults)
		ships[server.Name] = ship
	}

	p.logger.Debug("resolved ships", "count", len(ships), "selector", selector)
	if len(ships) == 0 {
		return nil, fmt.Errorf("no running servers matching %q: %w", selector, ErrNoShips)
	}
	return ships, nil
}

// usableServer reports whether a server can carry containers: it must
// be running and have a routable public IPv4. IsUnspecified is false
// for a nil IP, so the nil check comes first.
func usableServer(server *hcloud.Server) bool {
	return server.Status == hcloud.ServerStatusRunning &&
		server.PublicNet.IPv4.IP != nil &&
		!server.PublicNet.IPv4.IP.IsUnspecified()
}
