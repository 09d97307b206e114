package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"lukechampine.com/frand"

	"montecarlo/experiments/metrics"
	"montecarlo/game"
)

var ErrScriptExhausted = errors.New("scripted opponent has no moves left")

// Opponent supplies the other side's moves in a local game.
type Opponent interface {
	// NextMove returns the move text to play in position. last is the
	// engine's previous move, empty when the opponent moves first.
	NextMove(ctx context.Context, position game.Position, last string) (string, error)
}

// RandomOpponent plays a uniformly random legal move.
type RandomOpponent struct {
	rules game.Rules
	rng   *rand.Rand
}

// NewRandomOpponent seeds from frand when seed is 0.
func NewRandomOpponent(rules game.Rules, seed uint64) *RandomOpponent {
	if seed == 0 {
		seed = frand.Uint64n(math.MaxUint64)
	}
	return &RandomOpponent{rules: rules, rng: rand.New(rand.NewSource(seed))}
}

func (o *RandomOpponent) NextMove(_ context.Context, position game.Position, _ string) (string, error) {
	moves := o.rules.LegalMoves(position)
	if len(moves) == 0 {
		return "", fmt.Errorf("no legal moves in %s", position)
	}
	return o.rules.MoveText(moves[o.rng.Intn(len(moves))]), nil
}

// ScriptedOpponent replays fixed move texts in order.
type ScriptedOpponent struct {
	moves []string
	next  int
}

func NewScriptedOpponent(moves ...string) *ScriptedOpponent {
	return &ScriptedOpponent{moves: moves}
}

func (o *ScriptedOpponent) NextMove(context.Context, game.Position, string) (string, error) {
	if o.next >= len(o.moves) {
		return "", ErrScriptExhausted
	}
	move := o.moves[o.next]
	o.next++
	return move, nil
}

var _ Engine = (*Local)(nil)

// Local plays a controller against an opponent in-process.
type Local struct {
	Controller *Controller
	Opponent   Opponent
	EngineSide game.Side
	MaxTurns   int
}

func NewLocal(controller *Controller, opponent Opponent, engineSide game.Side) *Local {
	return &Local{
		Controller: controller,
		Opponent:   opponent,
		EngineSide: engineSide,
		MaxTurns:   MaxTurns,
	}
}

// Run executes the game loop until the controller finishes or MaxTurns plies
// have been played.
func (l *Local) Run(ctx context.Context) (metrics.GameMetric, []metrics.MoveMetric, error) {
	c := l.Controller
	rules := c.Rules()
	gameMetric := metrics.GameMetric{
		EngineSide: l.EngineSide.String(),
		StartTime:  time.Now(),
	}
	var moveMetrics []metrics.MoveMetric

	log.Info().Msgf("engine plays %s, %s is to move", l.EngineSide, rules.SideToMove(c.Position()))

	step := 1
	last := ""
	var err error
	for c.State() != Finished && step <= l.MaxTurns {
		position := c.Position()
		side := rules.SideToMove(position)

		var turn Turn
		if side == l.EngineSide {
			turn, err = c.Reply(ctx)
		} else {
			var move string
			if move, err = l.Opponent.NextMove(ctx, position, last); err != nil {
				err = fmt.Errorf("opponent at step %d: %w", step, err)
				break
			}
			turn, err = c.Play(ctx, move)
			if err == nil || turn.OpponentMove != "" {
				moveMetrics = append(moveMetrics, metrics.MoveMetric{
					Step: step,
					Side: side.String(),
					Move: move,
				})
				step++
			}
		}
		if turn.Reply != "" {
			moveMetrics = append(moveMetrics, metrics.MoveMetric{
				Step:         step,
				Side:         l.EngineSide.String(),
				Move:         turn.Reply,
				WinRate:      turn.WinRate,
				SimCount:     turn.Sims,
				SearchMetric: turn.Search,
			})
			last = turn.Reply
			step++
		}
		if err != nil {
			err = fmt.Errorf("step %d: %w", step, err)
			break
		}
	}

	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = step - 1
	gameMetric.Outcome = game.NoOutcome.String()
	if c.State() == Finished {
		gameMetric.Outcome = rules.Result(c.Position()).String()
	}

	if err != nil {
		log.Warn().Err(err).Msg("game stopped")
	} else if c.State() != Finished {
		log.Info().Msgf("stopped after %d turns (no result yet)", l.MaxTurns)
	} else {
		log.Info().Msgf("game over after %d turns: %s", gameMetric.TotalMoves, gameMetric.Outcome)
	}
	return gameMetric, moveMetrics, err
}
