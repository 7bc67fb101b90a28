// Package ship resolves the ships section of an environment description
// into the concrete Ship set, either statically or by asking a cloud
// API which hosts carry the fleet tag.
// This is part of the Imperative Shell - providers perform I/O.
package ship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// =============================================================================
// Provider Interface
// =============================================================================

var (
	// ErrNoShips is returned when a provider resolves zero ships.
	ErrNoShips = errors.New("no ships resolved")

	// ErrMissingCredentials is returned when a cloud provider has no
	// token or key material to authenticate with.
	ErrMissingCredentials = errors.New("provider credentials are missing")
)

// Provider resolves the execution hosts of an environment.
type Provider interface {
	// Ships returns the ship set, keyed by ship name.
	Ships(ctx context.Context) (map[string]*environment.Ship, error)
}

// NewProvider creates a ship provider from the description's
// ship_provider section. The zero value selects the static provider
// backed by the inline ships section. Cloud providers authenticate from
// the conventional environment variables of their SDKs.
func NewProvider(desc *description.Description, logger *slog.Logger) (Provider, error) {
	switch desc.ShipProvider.Type {
	case "", "static":
		return NewStaticProvider(desc.Ships), nil

	case "aws":
		accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("aws ship provider: AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY: %w", ErrMissingCredentials)
		}
		return NewAWSProvider(accessKey, secretKey, desc.ShipProvider, desc.ShipDefaults, logger), nil

	case "digitalocean":
		token := os.Getenv("DIGITALOCEAN_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("digitalocean ship provider: DIGITALOCEAN_TOKEN: %w", ErrMissingCredentials)
		}
		return NewDigitalOceanProvider(token, desc.ShipProvider, desc.ShipDefaults, logger), nil

	case "hetzner":
		token := os.Getenv("HCLOUD_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("hetzner ship provider: HCLOUD_TOKEN: %w", ErrMissingCredentials)
		}
		return NewHetznerProvider(token, desc.ShipProvider, desc.ShipDefaults, logger), nil

	default:
		return nil, fmt.Errorf("unsupported ship provider type: %s", desc.ShipProvider.Type)
	}
}

// applyDefaults fills provider-resolved ships with the connection
// settings the cloud API cannot know.
func applyDefaults(ship *environment.Ship, defaults description.ShipDefaults) {
	if ship.DockerPort == 0 {
		ship.DockerPort = defaults.DockerPort
	}
	if ship.SSHUser == "" {
		ship.SSHUser = defaults.SSHUser
	}
	if ship.SSHPort == 0 {
		ship.SSHPort = defaults.SSHPort
	}
	if ship.SSHKey == "" {
		ship.SSHKey = defaults.SSHKey
	}
}
