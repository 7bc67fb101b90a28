package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Closure Tests
// =============================================================================

const stackYAML = `
name: demo
services:
  db:
    image: postgres
    instances:
      db1:
        ship: vm1
  api:
    image: api
    requires: [db]
    instances:
      api1:
        ship: vm1
  web:
    image: nginx
    requires: [api]
    instances:
      web1:
        ship: vm1
      web2:
        ship: vm2
`

func names(containers []*Container) []string {
	out := make([]string, 0, len(containers))
	for _, c := range containers {
		out = append(out, c.Name)
	}
	return out
}

func indexOf(containers []*Container, name string) int {
	for i, c := range containers {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func TestClosure_Empty_SelectsEverything(t *testing.T) {
	env := mustBuild(t, stackYAML)
	all := env.Closure(nil, true)
	assert.Equal(t, []string{"api1", "db1", "web1", "web2"}, names(all))
}

func TestClosure_Forward_IsTransitive(t *testing.T) {
	env := mustBuild(t, stackYAML)

	closure := env.Closure([]*Container{env.Container("web1")}, true)
	assert.Equal(t, []string{"api1", "db1", "web1"}, names(closure))
}

func TestClosure_Backward_GathersDependents(t *testing.T) {
	env := mustBuild(t, stackYAML)

	closure := env.Closure([]*Container{env.Container("db1")}, false)
	assert.Equal(t, []string{"api1", "db1", "web1", "web2"}, names(closure))
}

func TestClosure_LeafHasNoExtras(t *testing.T) {
	env := mustBuild(t, stackYAML)

	closure := env.Closure([]*Container{env.Container("db1")}, true)
	assert.Equal(t, []string{"db1"}, names(closure))
}

// =============================================================================
// Order Tests
// =============================================================================

func TestOrder_Forward_PlacesDependenciesFirst(t *testing.T) {
	env := mustBuild(t, stackYAML)

	ordered, err := env.Order(nil, true)
	require.NoError(t, err)
	require.Len(t, ordered, 4)

	assert.Less(t, indexOf(ordered, "db1"), indexOf(ordered, "api1"))
	assert.Less(t, indexOf(ordered, "api1"), indexOf(ordered, "web1"))
	assert.Less(t, indexOf(ordered, "api1"), indexOf(ordered, "web2"))
}

func TestOrder_Backward_PlacesDependentsFirst(t *testing.T) {
	env := mustBuild(t, stackYAML)

	ordered, err := env.Order(nil, false)
	require.NoError(t, err)
	require.Len(t, ordered, 4)

	assert.Less(t, indexOf(ordered, "web1"), indexOf(ordered, "api1"))
	assert.Less(t, indexOf(ordered, "web2"), indexOf(ordered, "api1"))
	assert.Less(t, indexOf(ordered, "api1"), indexOf(ordered, "db1"))
}

func TestOrder_IncludesClosureOfSelection(t *testing.T) {
	env := mustBuild(t, stackYAML)

	ordered, err := env.Order([]*Container{env.Container("web1")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "api1", "web1"}, names(ordered))
}

func TestOrder_Cycle(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  a:
    image: a
    requires: [b]
    instances:
      a1:
        ship: vm1
  b:
    image: b
    requires: [a]
    instances:
      b1:
        ship: vm1
`)

	_, err := env.Order(nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyCycle)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"a1", "b1"}, cycle.Containers)
}

func TestOrder_CycleOutsideSelectionStillDetected(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  a:
    image: a
    requires: [b]
    instances:
      a1:
        ship: vm1
  b:
    image: b
    requires: [a]
    instances:
      b1:
        ship: vm1
  standalone:
    image: s
    instances:
      s1:
        ship: vm1
`)

	// The standalone container orders fine on its own.
	ordered, err := env.Order([]*Container{env.Container("s1")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, names(ordered))

	// Selecting into the cycle surfaces the error lazily.
	_, err = env.Order([]*Container{env.Container("a1")}, true)
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

func TestOrder_SingleInstanceSelfDependencyOrders(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  peer:
    image: peer
    requires: [peer]
    instances:
      p1:
        ship: vm1
`)

	// A container is always its own acceptable predecessor.
	ordered, err := env.Order(nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, names(ordered))
}

func TestOrder_MultiInstanceSelfDependencyIsACycle(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  peer:
    image: peer
    requires: [peer]
    instances:
      p1:
        ship: vm1
      p2:
        ship: vm2
`)

	// Sibling instances of a self-requiring service wait on each other
	// and never make progress.
	_, err := env.Order(nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyCycle)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"p1", "p2"}, cerr.Containers)
}

// =============================================================================
// Soft Ordering Tests
// =============================================================================

func TestOrder_SoftDependenciesOrderByDefault(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  metrics:
    image: statsd
    instances:
      m1:
        ship: vm1
  web:
    image: nginx
    wants_info: [metrics]
    instances:
      web1:
        ship: vm1
`)

	ordered, err := env.Order(nil, true)
	require.NoError(t, err)
	assert.Less(t, indexOf(ordered, "m1"), indexOf(ordered, "web1"))
}

func TestOrder_SoftDependenciesCanBeUnordered(t *testing.T) {
	env := mustBuild(t, `
name: demo
settings:
  order_soft_dependencies: false
services:
  metrics:
    image: statsd
    wants_info: [web]
    instances:
      m1:
        ship: vm1
  web:
    image: nginx
    wants_info: [metrics]
    instances:
      web1:
        ship: vm1
`)

	// With soft ordering disabled the wants_info cycle does not order,
	// so sequencing succeeds.
	ordered, err := env.Order(nil, true)
	require.NoError(t, err)
	assert.Len(t, ordered, 2)
}
