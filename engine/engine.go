package engine

import (
	"context"

	"montecarlo/experiments/metrics"
)

// MaxTurns bounds a local game in plies.
const MaxTurns = 500

type Engine interface {
	// Run plays a game till it is over or a max number of turns is reached
	Run(ctx context.Context) (gameMetric metrics.GameMetric, moveMetrics []metrics.MoveMetric, err error)
}
