package searcher

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"montecarlo/game"
)

/*
Tree behaviour:
- expansion: coin flip at the cursor, frontier descent, re-simulation when
  nothing is left to try
- invariants over a searched tree: even sims, wins within sims, children
  plus untried moves account for every legal move, sides alternate
- search loop: at least one episode, cancellation between episodes,
  backups reaching past the cursor
- tree reuse: explored children keep their statistics
- move choice: exploit and explore are distinguishable
*/

func TestTreeExpand(t *testing.T) {
	t.Run("expanding one child from a fresh root", func(t *testing.T) {
		tree := NewTree(wideRules(20), "start", WithSeed(1))
		root := tree.Root()
		require.Equal(t, 20, root.TotalMoves())
		require.Len(t, root.Untried(), 20)

		child, err := tree.expand(root)

		require.NoError(t, err)
		require.Same(t, root, child.Parent())
		require.Len(t, root.Children(), 1)
		require.Len(t, root.Untried(), 19)
		require.Equal(t, 20, root.TotalMoves(), "Total moves is fixed at creation")
		require.Equal(t, 0, child.Sims(), "Child is unsimulated until its own rollout")
		require.Equal(t, root.Side().Opponent(), child.Side())
		require.Same(t, child, root.Child(child.MoveText()))
	})

	t.Run("re-simulating a node with nothing left to try", func(t *testing.T) {
		rules := fakeRules{moves: map[game.Position][]string{"start": {"only"}}}
		tree := NewTree(rules, "start", WithSeed(1))

		_, err := tree.Iterate(context.Background(), 1)

		require.NoError(t, err)
		only := tree.Root().Child("only")
		require.NotNil(t, only)
		require.Equal(t, 2, only.Sims())
		require.Empty(t, tree.Root().Untried())

		_, err = tree.Iterate(context.Background(), 1)

		require.NoError(t, err)
		require.Len(t, tree.Root().Children(), 1)
		require.Equal(t, 4, only.Sims(), "Sole child should be simulated again")
		require.Equal(t, 4, tree.Root().Sims())
	})

	t.Run("expanding every root move eventually", func(t *testing.T) {
		tree := NewTree(wideRules(20), "start", WithSeed(3))

		_, err := tree.Iterate(context.Background(), 2000)

		require.NoError(t, err)
		root := tree.Root()
		require.Empty(t, root.Untried())
		require.Len(t, root.Children(), 20)
		require.Equal(t, 4000, root.Sims())
		for _, child := range root.Children() {
			require.Equal(t, child.Sims()/2, child.Wins(), "Every line is drawn")
		}
	})
}

func TestTreeInvariants(t *testing.T) {
	rules := game.NewNim()
	tree := NewTree(rules, game.NimPosition(9, game.White), WithSeed(11))

	_, err := tree.Iterate(context.Background(), 3000)
	require.NoError(t, err)

	root := tree.Root()
	require.Equal(t, 6000, root.Sims(), "Every episode backs up to the root")
	walk(root, func(n *Node) {
		require.Zero(t, n.Sims()%SimUnits, "node %s", n.Path())
		require.GreaterOrEqual(t, n.Wins(), 0, "node %s", n.Path())
		require.LessOrEqual(t, n.Wins(), n.Sims(), "node %s", n.Path())
		require.Equal(t, n.TotalMoves(), len(n.Children())+len(n.Untried()), "node %s", n.Path())
		require.Equal(t, len(rules.LegalMoves(n.Position())), n.TotalMoves(), "node %s", n.Path())

		childSims := 0
		for _, child := range n.Children() {
			require.Same(t, n, child.Parent(), "node %s", child.Path())
			require.Same(t, child, n.Child(child.MoveText()), "node %s", child.Path())
			require.Equal(t, n.Side().Opponent(), child.Side(), "node %s", child.Path())
			require.Positive(t, child.Sims(), "node %s", child.Path())
			childSims += child.Sims()
		}
		require.LessOrEqual(t, childSims, n.Sims(), "node %s", n.Path())
	})
}

func TestTreeSearch(t *testing.T) {
	t.Run("running one episode on a zero budget", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(7, game.White), WithSeed(1), WithMetrics())

		metric, err := tree.Search(context.Background(), 0)

		require.NoError(t, err)
		require.Equal(t, 1, metric.Episodes)
		require.Equal(t, 2, tree.Root().Sims())
	})

	t.Run("stopping on a cancelled context", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(7, game.White), WithSeed(1), WithMetrics())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		metric, err := tree.Search(ctx, 0)

		require.ErrorIs(t, err, context.Canceled)
		require.Zero(t, metric.Episodes)
		require.Zero(t, tree.Root().Sims(), "Tree should be untouched")
	})

	t.Run("counting episodes and added nodes", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(7, game.White), WithSeed(1), WithMetrics())

		metric, err := tree.Iterate(context.Background(), 50)

		require.NoError(t, err)
		require.Equal(t, 50, metric.Episodes)
		nodes := -1
		walk(tree.Root(), func(*Node) { nodes++ })
		require.Equal(t, nodes, metric.NodesAdded)
	})

	t.Run("backing up past the cursor to the root", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(6, game.White), WithSeed(1))
		cursor, reused, err := tree.Advance(1)
		require.NoError(t, err)
		require.False(t, reused)

		_, err = tree.Iterate(context.Background(), 10)

		require.NoError(t, err)
		require.Equal(t, 20, cursor.Sims())
		require.Equal(t, 20, tree.Root().Sims())
		require.Len(t, tree.Root().Children(), 1, "Search runs below the cursor only")
	})
}

func TestTreeAdvance(t *testing.T) {
	t.Run("attaching a fresh child", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(5, game.White))

		child, reused, err := tree.Advance(2)

		require.NoError(t, err)
		require.False(t, reused)
		require.Same(t, child, tree.Cursor())
		require.Equal(t, game.NimPosition(3, game.Black), child.Position())
		require.Equal(t, "2", child.MoveText())
		require.Equal(t, []game.Move{1, 3}, tree.Root().Untried(), "Played move is no longer untried")
		require.Equal(t, 3, tree.Root().TotalMoves())
	})

	t.Run("reusing an explored child", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(5, game.White), WithMetrics())
		first, _, err := tree.Advance(1)
		require.NoError(t, err)
		tree.ResetCursor()

		second, reused, err := tree.Advance(1)

		require.NoError(t, err)
		require.True(t, reused)
		require.Same(t, first, second)
		require.Len(t, tree.Root().Children(), 1)
	})

	t.Run("scoring a fresh terminal child", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(2, game.White))

		child, _, err := tree.Advance(2)

		require.NoError(t, err)
		require.Equal(t, game.White, child.Side())
		require.Equal(t, 2, child.Wins(), "Taking the last object wins")
		require.Equal(t, 2, child.Sims())
		require.Equal(t, 0, tree.Root().Wins())
		require.Equal(t, 2, tree.Root().Sims())
	})

	t.Run("rejecting an illegal move", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(2, game.White))

		_, _, err := tree.Advance(3)

		require.ErrorIs(t, err, game.ErrIllegalMove)
		require.Same(t, tree.Root(), tree.Cursor())
		require.Empty(t, tree.Root().Children())
		require.Len(t, tree.Root().Untried(), 2)
	})
}

func TestTreeMoveChoice(t *testing.T) {
	t.Run("preferring the winning line", func(t *testing.T) {
		rules := fakeRules{
			moves: map[game.Position][]string{
				"start":   {"a", "b"},
				"start/a": {"x"},
			},
			outcomes: map[game.Position]game.Outcome{
				"start/a/x": game.WhiteWins,
				"start/b":   game.BlackWins,
			},
		}
		tree := NewTree(rules, "start", WithSeed(5))

		_, err := tree.Iterate(context.Background(), 300)
		require.NoError(t, err)

		best := tree.BestMove()
		require.NotNil(t, best)
		require.Equal(t, "a", best.MoveText())
		require.Equal(t, 1.0, best.WinRate())
		require.Equal(t, 0.0, tree.Root().Child("b").WinRate())
		require.Greater(t, best.Sims(), tree.Root().Child("b").Sims(), "Selection should favor the winning line")
	})

	t.Run("exploit and explore can disagree", func(t *testing.T) {
		tree := NewTree(wideRules(2), "start")
		visited, _, err := tree.Advance("m00")
		require.NoError(t, err)
		tree.ResetCursor()
		rare, _, err := tree.Advance("m01")
		require.NoError(t, err)
		tree.ResetCursor()
		tree.Root().sims = 100
		visited.wins, visited.sims = 60, 60
		rare.wins, rare.sims = 0, 2

		explore, err := tree.ExploreMove()

		require.NoError(t, err)
		require.Same(t, rare, explore)
		require.Same(t, visited, tree.BestMove())
	})

	t.Run("choosing nothing without children", func(t *testing.T) {
		tree := NewTree(game.NewNim(), game.NimPosition(4, game.White))

		explore, err := tree.ExploreMove()

		require.NoError(t, err)
		require.Nil(t, explore)
		require.Nil(t, tree.BestMove())
	})
}

func TestTreeOptions(t *testing.T) {
	tree := NewTree(game.NewNim(), game.NimPosition(4, game.White), WithExploration(0.5))
	require.Equal(t, 0.5, tree.Exploration())

	tree = NewTree(game.NewNim(), game.NimPosition(4, game.White), WithExploration(-1))
	require.Equal(t, C, tree.Exploration(), "Negative exploration is ignored")

	tree = NewTree(game.NewNim(), game.NimPosition(4, game.White))
	require.Equal(t, game.Black, tree.Root().Side(), "Root belongs to the side that moved last")
}

func TestSearchLog(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = logger })

	// No metrics collector installed
	tree := NewTree(game.NewNim(), game.NimPosition(9, game.White), WithSeed(5))
	metric, err := tree.Iterate(context.Background(), 300)
	require.NoError(t, err)
	require.Zero(t, metric.Episodes)

	var entry struct {
		Message  string `json:"message"`
		Episodes int    `json:"episodes"`
		Sims     int    `json:"sims"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "search complete", entry.Message)
	require.Equal(t, 300, entry.Episodes)
	require.Equal(t, 600, entry.Sims)
}
