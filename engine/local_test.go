package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"montecarlo/game"
	"montecarlo/searcher"
)

func TestLocalRun(t *testing.T) {
	t.Run("playing a scripted game to the end", func(t *testing.T) {
		c := NewController(game.Nim{MaxTake: 2}, game.NimPosition(2, game.White), WithSearchTime(time.Millisecond))
		local := NewLocal(c, NewScriptedOpponent("1"), game.Black)

		gameMetric, moveMetrics, err := local.Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, "B", gameMetric.EngineSide)
		require.Equal(t, game.BlackWins.String(), gameMetric.Outcome)
		require.Equal(t, 2, gameMetric.TotalMoves)
		require.False(t, gameMetric.EndTime.Before(gameMetric.StartTime))
		require.Len(t, moveMetrics, 2)
		require.Equal(t, 1, moveMetrics[0].Step)
		require.Equal(t, "W", moveMetrics[0].Side)
		require.Equal(t, "1", moveMetrics[0].Move)
		require.Zero(t, moveMetrics[0].SimCount, "Opponent moves carry no search")
		require.Equal(t, 2, moveMetrics[1].Step)
		require.Equal(t, "B", moveMetrics[1].Side)
		require.Equal(t, "1", moveMetrics[1].Move, "Only one move is legal")
		require.Positive(t, moveMetrics[1].SimCount)
		require.Positive(t, moveMetrics[1].Episodes)
	})

	t.Run("playing a random opponent", func(t *testing.T) {
		rules := game.NewNim()
		c := NewController(rules, game.NimPosition(10, game.White),
			WithSearchTime(2*time.Millisecond),
			WithTreeOptions(searcher.WithSeed(4)),
		)
		local := NewLocal(c, NewRandomOpponent(rules, 9), game.White)

		gameMetric, moveMetrics, err := local.Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, Finished, c.State())
		require.NotEqual(t, game.NoOutcome.String(), gameMetric.Outcome)
		require.Len(t, moveMetrics, gameMetric.TotalMoves)
		taken := 0
		for i, mm := range moveMetrics {
			require.Equal(t, i+1, mm.Step)
			side := game.White
			if i%2 == 1 {
				side = game.Black
			}
			require.Equal(t, side.String(), mm.Side, "Sides alternate from White")
			n, err := strconv.Atoi(mm.Move)
			require.NoError(t, err)
			taken += n
		}
		require.Equal(t, 10, taken, "Every object is taken")
	})

	t.Run("stopping at max turns", func(t *testing.T) {
		rules := game.Nim{MaxTake: 1}
		c := NewController(rules, game.NimPosition(50, game.White), WithSearchTime(time.Millisecond))
		local := NewLocal(c, NewRandomOpponent(rules, 1), game.White)
		local.MaxTurns = 4

		gameMetric, moveMetrics, err := local.Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, game.NoOutcome.String(), gameMetric.Outcome)
		require.Equal(t, 5, gameMetric.TotalMoves, "A reply may run one ply past the limit")
		require.Len(t, moveMetrics, 5)
		require.Equal(t, game.NimPosition(45, game.Black), c.Position())
	})

	t.Run("failing when the script runs out", func(t *testing.T) {
		c := NewController(game.NewNim(), game.NimPosition(5, game.White), WithSearchTime(time.Millisecond))
		local := NewLocal(c, NewScriptedOpponent(), game.Black)

		_, moveMetrics, err := local.Run(context.Background())

		require.ErrorIs(t, err, ErrScriptExhausted)
		require.Empty(t, moveMetrics)
	})

	t.Run("failing on an illegal scripted move", func(t *testing.T) {
		c := NewController(game.NewNim(), game.NimPosition(5, game.White), WithSearchTime(time.Millisecond))
		local := NewLocal(c, NewScriptedOpponent("9"), game.Black)

		_, moveMetrics, err := local.Run(context.Background())

		require.ErrorIs(t, err, ErrIllegalMove)
		require.Empty(t, moveMetrics)
		require.Equal(t, AwaitingOpponentMove, c.State())
	})
}

func TestScriptedOpponent(t *testing.T) {
	o := NewScriptedOpponent("a", "b")

	for _, want := range []string{"a", "b"} {
		got, err := o.NextMove(context.Background(), "", "")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := o.NextMove(context.Background(), "", "")
	require.ErrorIs(t, err, ErrScriptExhausted)
}
