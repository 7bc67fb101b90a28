package ship

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digitalocean/godo"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// DigitalOceanProvider resolves ships from droplets carrying the fleet
// tag. Droplet names become ship names.
type DigitalOceanProvider struct {
	client   *godo.Client
	config   description.ShipProviderConfig
	defaults description.ShipDefaults
	logger   *slog.Logger
}

// NewDigitalOceanProvider creates a new droplet-backed ship provider.
func NewDigitalOceanProvider(apiToken string, config description.ShipProviderConfig,
	defaults description.ShipDefaults, logger *slog.Logger) *DigitalOceanProvider {
	return &DigitalOceanProvider{
		client:   godo.NewFromToken(apiToken),
		config:   config,
		defaults: defaults,
		logger:   logger.With("ship_provider", "digitalocean"),
	}
}

// Ships lists droplets by the fleet tag, following pagination.
func (p *DigitalOceanProvider) Ships(ctx context.Context) (map[string]*environment.Ship, error) {
	tag := p.config.Tag
	if tag == "" {
		tag = defaultFleetTag
	}

	ships := make(map[string]*environment.Ship)
	opts := &godo.ListOptions{PerPage: 200}
	for {
		droplets, resp, err := p.client.Droplets.ListByTag(ctx, tag, opts)
		if err != nil {
			return nil, fmt.Errorf("list droplets by tag %q: %w", tag, err)
		}
		for _, droplet := range droplets {
			ip, err := droplet.PublicIPv4()
			if err != nil || ip == "" {
				continue
			}
			ship := &environment.Ship{
				Name:     droplet.Name,
				IP:       ip,
				Provider: "digitalocean",
			}
			applyDefaults(ship, p.defaults)
			ships[droplet.Name] = ship
		}
		if resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opts.Page = page + 1
	}

	p.logger.Debug("resolved ships", "count", len(ships), "tag", tag)
	if len(ships) == 0 {
		return nil, fmt.Errorf("no droplets tagged %q: %w", tag, ErrNoShips)
	}
	return ships, nil
}
