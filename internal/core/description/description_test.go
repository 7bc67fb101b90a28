package description

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parse Tests
// =============================================================================

const minimalYAML = `
name: demo
ships:
  vm1:
    ip: 10.0.0.1
    docker_port: 2375
services:
  web:
    image: nginx:latest
    instances:
      web1:
        ship: vm1
`

func TestParse_Minimal(t *testing.T) {
	desc, err := Parse([]byte(minimalYAML), "/tmp", nil)
	require.NoError(t, err)

	assert.Equal(t, "demo", desc.Name)
	assert.Equal(t, DefaultSchema, desc.Schema())
	assert.Equal(t, "/tmp", desc.BaseDir)

	ship, ok := desc.Ships["vm1"]
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ship.IP)
	assert.Equal(t, 2375, ship.DockerPort)

	svc, ok := desc.Services["web"]
	require.True(t, ok)
	assert.Equal(t, "nginx:latest", svc.Image)
	assert.Contains(t, svc.Instances, "web1")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("   \n"), "", nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_MissingName(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx
`
	_, err := Parse([]byte(yaml), "", nil)
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestParse_NoServices(t *testing.T) {
	_, err := Parse([]byte("name: demo\n"), "", nil)
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestParse_ServiceWithoutImage(t *testing.T) {
	yaml := `
name: demo
services:
  web: {}
`
	_, err := Parse([]byte(yaml), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNoImage)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "web")
}

func TestParse_VariableSubstitution(t *testing.T) {
	yaml := `
name: demo
services:
  web:
    image: nginx:${TAG:-latest}
    env:
      TOKEN: ${SECRET}
`
	lookup := func(key string) (string, bool) {
		if key == "SECRET" {
			return "hunter2", true
		}
		return "", false
	}

	desc, err := Parse([]byte(yaml), "", lookup)
	require.NoError(t, err)
	assert.Equal(t, "nginx:latest", desc.Services["web"].Image)
	assert.Equal(t, "hunter2", desc.Services["web"].Env["TOKEN"])
}

func TestParse_SchemaHeader(t *testing.T) {
	yaml := `
flotilla:
  schema: 2
name: demo
services:
  web:
    image: nginx
`
	desc, err := Parse([]byte(yaml), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, desc.Schema())
}

func TestParse_InstancePortMustBeDeclared(t *testing.T) {
	yaml := `
name: demo
services:
  web:
    image: nginx
    ports:
      http: 80
    instances:
      web1:
        ports:
          admin: 9000
`
	_, err := Parse([]byte(yaml), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin")
}

// =============================================================================
// PortConfig Tests
// =============================================================================

func TestPortConfig_Forms(t *testing.T) {
	yaml := `
name: demo
services:
  statsd:
    image: statsd
    ports:
      udp: 8125/udp
      tcp: "8126"
      plain: 8127
`
	desc, err := Parse([]byte(yaml), "", nil)
	require.NoError(t, err)

	ports := desc.Services["statsd"].Ports
	assert.Equal(t, PortConfig{Number: 8125, Protocol: "udp"}, ports["udp"])
	assert.Equal(t, PortConfig{Number: 8126, Protocol: "tcp"}, ports["tcp"])
	assert.Equal(t, PortConfig{Number: 8127, Protocol: "tcp"}, ports["plain"])
}

func TestPortConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		port string
	}{
		{"not a number", "http"},
		{"out of range", "70000"},
		{"zero", "0"},
		{"bad protocol", "80/icmp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := `
name: demo
services:
  web:
    image: nginx
    ports:
      p: "` + tc.port + `"
`
			_, err := Parse([]byte(yaml), "", nil)
			assert.ErrorIs(t, err, ErrInvalidPort)
		})
	}
}

// =============================================================================
// Limits Tests
// =============================================================================

func TestLimitsConfig_MemoryBytes(t *testing.T) {
	l := LimitsConfig{Memory: "256m", Swap: "1g"}

	mem, err := l.MemoryBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(256*1024*1024), mem)

	swap, err := l.SwapBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024*1024), swap)
}

func TestLimitsConfig_Unset(t *testing.T) {
	var l LimitsConfig
	mem, err := l.MemoryBytes()
	require.NoError(t, err)
	assert.Zero(t, mem)
}

func TestLimitsConfig_Invalid(t *testing.T) {
	l := LimitsConfig{Memory: "lots"}
	_, err := l.MemoryBytes()
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestSettings_OrderSoftDefault(t *testing.T) {
	var s Settings
	assert.True(t, s.OrderSoft())

	off := false
	s.OrderSoftDependencies = &off
	assert.False(t, s.OrderSoft())
}
