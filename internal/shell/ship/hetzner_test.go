package ship

import (
	"net"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
)

func TestUsableServer(t *testing.T) {
	tests := []struct {
		name   string
		server *hcloud.Server
		usable bool
	}{
		{
			name: "running with public ipv4",
			server: &hcloud.Server{
				Status:    hcloud.ServerStatusRunning,
				PublicNet: hcloud.ServerPublicNet{IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP("192.0.2.10")}},
			},
			usable: true,
		},
		{
			name: "not running",
			server: &hcloud.Server{
				Status:    hcloud.ServerStatusOff,
				PublicNet: hcloud.ServerPublicNet{IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP("192.0.2.10")}},
			},
			usable: false,
		},
		{
			name: "no public ipv4",
			server: &hcloud.Server{
				Status: hcloud.ServerStatusRunning,
			},
			usable: false,
		},
		{
			name: "unspecified address",
			server: &hcloud.Server{
				Status:    hcloud.ServerStatusRunning,
				PublicNet: hcloud.ServerPublicNet{IPv4: hcloud.ServerPublicNetIPv4{IP: net.IPv4zero}},
			},
			usable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, usableServer(tt.server))
		})
	}
}
