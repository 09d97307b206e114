package searcher

import (
	"fmt"
	"math"
)

type uct struct {
	c     float64
	lnN   float64
	valid bool
}

// newUCT prepares UCB1 scoring for the children of a node with N sims.
func newUCT(c float64, N int) uct {
	if N <= 0 {
		return uct{c: c}
	}
	return uct{c: c, lnN: math.Log(float64(N)), valid: true}
}

// evaluate returns q/n + c*sqrt(ln(N)/n).
func (u uct) evaluate(q, n int) (float64, error) {
	if n == 0 {
		return 0, ErrUnsimulatedChild
	}
	if !u.valid {
		return 0, fmt.Errorf("%w: parent has no simulations", ErrUnsimulatedChild)
	}
	return float64(q)/float64(n) + u.c*math.Sqrt(u.lnN/float64(n)), nil
}

// exploit returns the plain win rate q/n.
func exploit(q, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	return float64(q) / float64(n)
}
