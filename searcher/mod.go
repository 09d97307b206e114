package searcher

import (
	"errors"
	"math"
)

// Hyperparameters for MCTS

// C is the default UCB1 exploration constant.
var C = math.Sqrt2

// Scores are kept in doubled units so a draw never needs a fraction
const (
	Win      = 2
	Draw     = 1
	Loss     = 0
	SimUnits = 2 // added to sims per simulation or backup step
)

var (
	// ErrUnsimulatedChild is returned by selection when a child has no
	// simulations, where UCB1 would otherwise divide by zero.
	ErrUnsimulatedChild = errors.New("unsimulated child")
	// ErrMalformedTree is returned when a persisted tree cannot be loaded.
	ErrMalformedTree = errors.New("malformed persisted tree")
)
