package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolve_ContainerAndService(t *testing.T) {
	env := mustBuild(t, stackYAML)

	res, err := env.Resolve("web1")
	require.NoError(t, err)
	require.NotNil(t, res.Container)
	assert.Nil(t, res.Service)
	assert.Equal(t, "web1", res.Container.Name)

	res, err = env.Resolve("web")
	require.NoError(t, err)
	require.NotNil(t, res.Service)
	assert.Nil(t, res.Container)
	assert.Equal(t, "web", res.Service.Name)
}

func TestResolve_Unknown(t *testing.T) {
	env := mustBuild(t, stackYAML)

	_, err := env.Resolve("ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSelection)

	var sel *SelectionError
	require.ErrorAs(t, err, &sel)
	assert.Equal(t, "ghost", sel.Name)
}

// =============================================================================
// Select Tests
// =============================================================================

func TestSelect_EmptyMeansEverything(t *testing.T) {
	env := mustBuild(t, stackYAML)

	selected, err := env.Select(nil, false, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"api1", "db1", "web1", "web2"}, names(selected))
}

func TestSelect_ServiceNeedsExpansion(t *testing.T) {
	env := mustBuild(t, stackYAML)

	_, err := env.Select([]string{"web"}, false, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNotExpanded)

	selected, err := env.Select([]string{"web"}, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2"}, names(selected))
}

func TestSelect_MixedNamesDeduplicated(t *testing.T) {
	env := mustBuild(t, stackYAML)

	selected, err := env.Select([]string{"web", "web1", "db1"}, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "web1", "web2"}, names(selected))
}

func TestSelect_ContainerGlob(t *testing.T) {
	env := mustBuild(t, stackYAML)

	selected, err := env.Select(nil, false, "web*", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2"}, names(selected))
}

func TestSelect_ShipGlob(t *testing.T) {
	env := mustBuild(t, stackYAML)

	selected, err := env.Select(nil, false, "", "vm2")
	require.NoError(t, err)
	assert.Equal(t, []string{"web2"}, names(selected))
}

func TestSelect_UnknownName(t *testing.T) {
	env := mustBuild(t, stackYAML)

	_, err := env.Select([]string{"ghost"}, true, "", "")
	assert.ErrorIs(t, err, ErrUnknownSelection)
}

// =============================================================================
// SelectServices Tests
// =============================================================================

func TestSelectServices_ResolvesContainersToOwners(t *testing.T) {
	env := mustBuild(t, stackYAML)

	services, err := env.SelectServices([]string{"web1", "web", "db1"})
	require.NoError(t, err)

	got := make([]string, 0, len(services))
	for _, s := range services {
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"db", "web"}, got)
}

func TestSelectServices_EmptyMeansAll(t *testing.T) {
	env := mustBuild(t, stackYAML)

	services, err := env.SelectServices(nil)
	require.NoError(t, err)
	assert.Len(t, services, 3)
}
