package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-orch/flotilla/internal/core/description"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testShips() map[string]*Ship {
	return map[string]*Ship{
		"vm1": {Name: "vm1", IP: "10.0.0.1", DockerPort: 2375},
		"vm2": {Name: "vm2", IP: "10.0.0.2", DockerPort: 2375},
	}
}

func parseDesc(t *testing.T, yaml string) *description.Description {
	t.Helper()
	desc, err := description.Parse([]byte(yaml), "/env", nil)
	require.NoError(t, err)
	return desc
}

func mustBuild(t *testing.T, yaml string) *Environment {
	t.Helper()
	env, err := Build(parseDesc(t, yaml), testShips())
	require.NoError(t, err)
	return env
}

// =============================================================================
// Build Tests
// =============================================================================

func TestBuild_WiresServicesAndContainers(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres:16
    ports:
      sql: 5432
    instances:
      db1:
        ship: vm1
  web:
    image: nginx
    requires: [db]
    instances:
      web1:
        ship: vm1
      web2:
        ship: vm2
`)

	assert.Equal(t, "demo", env.Name)
	assert.Len(t, env.Services, 2)
	assert.Len(t, env.Containers, 3)

	web := env.Service("web")
	require.NotNil(t, web)
	assert.Equal(t, []string{"db"}, web.Requires)
	assert.Equal(t, []string{"web"}, env.Service("db").RequiredBy)

	web1 := env.Container("web1")
	require.NotNil(t, web1)
	assert.Equal(t, "web", web1.Service)
	assert.Equal(t, "vm1", web1.Ship)
	assert.Equal(t, env.Ships["vm1"], env.ContainerShip(web1))

	names := make([]string, 0)
	for _, c := range env.ServiceContainers(web) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"web1", "web2"}, names)
}

func TestBuild_DuplicateContainerName(t *testing.T) {
	_, err := Build(parseDesc(t, `
name: demo
services:
  db:
    image: postgres
    instances:
      node1:
        ship: vm1
  web:
    image: nginx
    instances:
      node1:
        ship: vm2
`), testShips())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateContainer)

	var dup *DuplicateContainerError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "node1", dup.Container)
	// Services are processed in name order, so db declares node1 first.
	assert.Equal(t, "db", dup.Existing)
	assert.Equal(t, "web", dup.Service)
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := Build(parseDesc(t, `
name: demo
services:
  web:
    image: nginx
    requires: [ghost]
    instances:
      web1:
        ship: vm1
`), testShips())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDependency)

	var ref *DependencyRefError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "web", ref.Service)
	assert.Equal(t, "ghost", ref.Dependency)
}

func TestBuild_UnknownWantsInfo(t *testing.T) {
	_, err := Build(parseDesc(t, `
name: demo
services:
  web:
    image: nginx
    wants_info: [ghost]
    instances:
      web1:
        ship: vm1
`), testShips())

	assert.ErrorIs(t, err, ErrUnknownDependency)
}

func TestBuild_UnknownShip(t *testing.T) {
	_, err := Build(parseDesc(t, `
name: demo
services:
  web:
    image: nginx
    instances:
      web1:
        ship: vm9
`), testShips())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownShip)

	var ref *ShipRefError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "web1", ref.Container)
	assert.Equal(t, "vm9", ref.Ship)
}

func TestBuild_PlacementSpreadsUnpinnedInstances(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  worker:
    image: worker
    instances:
      w1: {}
      w2: {}
`)

	w1 := env.Container("w1")
	w2 := env.Container("w2")
	assert.NotEqual(t, w1.Ship, w2.Ship, "unpinned instances should spread over ships")
}

func TestBuild_InstanceEnvOverridesServiceEnv(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  web:
    image: nginx
    env:
      MODE: shared
      LOG: info
    instances:
      web1:
        ship: vm1
        env:
          MODE: special
`)

	web1 := env.Container("web1")
	assert.Equal(t, "special", web1.Env["MODE"])
	assert.Equal(t, "info", web1.Env["LOG"])

	// Service defaults are not mutated by instance overrides.
	assert.Equal(t, "shared", env.Service("web").Env["MODE"])
}

func TestBuild_PortExposure(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  web:
    image: nginx
    ports:
      http: 80
    instances:
      web1:
        ship: vm1
      web2:
        ship: vm2
        ports:
          http: 8080
`)

	assert.Equal(t, Port{Number: 80, Exposed: 80, Protocol: "tcp"}, env.Container("web1").Ports["http"])
	assert.Equal(t, Port{Number: 80, Exposed: 8080, Protocol: "tcp"}, env.Container("web2").Ports["http"])
}

func TestBuild_RelativeVolumesResolveAgainstBaseDir(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    instances:
      db1:
        ship: vm1
        volumes:
          /var/lib/postgresql: data/db1
          /etc/postgres: /abs/conf
`)

	volumes := env.Container("db1").Volumes
	assert.Equal(t, "/env/data/db1", volumes["/var/lib/postgresql"])
	assert.Equal(t, "/abs/conf", volumes["/etc/postgres"])
}

func TestBuild_LimitsNormalized(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    limits:
      cpu: 1.5
      memory: 512m
    instances:
      db1:
        ship: vm1
`)

	limits := env.Service("db").Limits
	assert.Equal(t, 1.5, limits.CPU)
	assert.Equal(t, int64(512*1024*1024), limits.Memory)
}

func TestBuild_DuplicateEdgesCollapse(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    instances:
      db1:
        ship: vm1
  web:
    image: nginx
    requires: [db, db]
    instances:
      web1:
        ship: vm1
`)

	assert.Equal(t, []string{"db"}, env.Service("web").Requires)
	assert.Equal(t, []string{"web"}, env.Service("db").RequiredBy)
}
