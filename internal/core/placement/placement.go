// Package placement provides the pure ship-selection algorithm for
// instances that do not pin a ship explicitly.
// This is part of the Functional Core - all functions are pure with no I/O.
package placement

import (
	"errors"
	"sort"
)

var (
	// ErrNoShipsAvailable is returned when there is no ship to place on.
	ErrNoShipsAvailable = errors.New("no ships available for placement")
)

// Candidate is one ship under consideration, with its current load in
// already-placed containers.
type Candidate struct {
	Ship       string
	Containers int
}

// Request contains all information needed to select a ship.
type Request struct {
	Candidates []Candidate
}

// Result contains the result of the placement algorithm.
type Result struct {
	// SelectedShip is the name of the best ship.
	SelectedShip string

	// Score is the score of the selected ship (0-100).
	Score float64

	// ConsideredCount is the number of ships that were considered.
	ConsideredCount int
}

// shipCandidate is a candidate with its computed score.
type shipCandidate struct {
	candidate Candidate
	score     float64
}

// Pick selects the least loaded ship. Deterministic: equal scores break
// lexicographically on ship name, so repeated builds of the same
// description place containers identically.
func Pick(req Request) (Result, error) {
	if len(req.Candidates) == 0 {
		return Result{}, ErrNoShipsAvailable
	}

	scored := make([]shipCandidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		scored = append(scored, shipCandidate{candidate: c, score: scoreShip(c)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].candidate.Ship < scored[j].candidate.Ship
	})

	best := scored[0]
	return Result{
		SelectedShip:    best.candidate.Ship,
		Score:           best.score,
		ConsideredCount: len(req.Candidates),
	}, nil
}

// scoreShip scores a ship by current load. Fewer containers is better.
func scoreShip(c Candidate) float64 {
	return 100.0 / float64(1+c.Containers)
}
