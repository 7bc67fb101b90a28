package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPick_NoCandidates(t *testing.T) {
	_, err := Pick(Request{})
	assert.ErrorIs(t, err, ErrNoShipsAvailable)
}

func TestPick_SingleCandidate(t *testing.T) {
	result, err := Pick(Request{Candidates: []Candidate{{Ship: "vm1", Containers: 5}}})
	require.NoError(t, err)
	assert.Equal(t, "vm1", result.SelectedShip)
	assert.Equal(t, 1, result.ConsideredCount)
}

func TestPick_PrefersLeastLoaded(t *testing.T) {
	result, err := Pick(Request{Candidates: []Candidate{
		{Ship: "vm1", Containers: 3},
		{Ship: "vm2", Containers: 0},
		{Ship: "vm3", Containers: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, "vm2", result.SelectedShip)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, 3, result.ConsideredCount)
}

func TestPick_TieBreaksOnName(t *testing.T) {
	result, err := Pick(Request{Candidates: []Candidate{
		{Ship: "vm2", Containers: 1},
		{Ship: "vm1", Containers: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, "vm1", result.SelectedShip)
}

func TestPick_Deterministic(t *testing.T) {
	req := Request{Candidates: []Candidate{
		{Ship: "b", Containers: 2},
		{Ship: "a", Containers: 2},
		{Ship: "c", Containers: 2},
	}}
	first, err := Pick(req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Pick(req)
		require.NoError(t, err)
		assert.Equal(t, first.SelectedShip, again.SelectedShip)
	}
}
