package searcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"lukechampine.com/frand"

	"montecarlo/experiments/metrics"
	"montecarlo/game"
)

type Option func(t *Tree)

// Tree is a search tree anchored at the position the session started from.
// The cursor marks the current game position; searches start from it and
// backups continue past it up to the root, so earlier turns keep their
// statistics. A Tree is not safe for concurrent use.
type Tree struct {
	rules   game.Rules
	root    *Node
	cursor  *Node
	c       float64
	rng     *rand.Rand
	metrics metrics.Collector
}

func WithExploration(c float64) Option {
	return func(t *Tree) {
		if c >= 0 && !math.IsNaN(c) {
			t.c = c
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(t *Tree) {
		t.rng = rand.New(rand.NewSource(seed))
	}
}

func WithMetrics() Option {
	return func(t *Tree) {
		t.metrics = metrics.NewCollector()
	}
}

func WithCollector(collector metrics.Collector) Option {
	return func(t *Tree) {
		if collector != nil {
			t.metrics = collector
		}
	}
}

// NewTree starts a tree at position. The root's side is the one that does
// not move next, so every child is credited to the side that moved into it.
func NewTree(rules game.Rules, position game.Position, options ...Option) *Tree {
	t := newTree(rules, options...)
	side := rules.SideToMove(position).Opponent()
	t.root = t.newNode(nil, position, side, nil)
	t.cursor = t.root
	return t
}

func newTree(rules game.Rules, options ...Option) *Tree {
	t := &Tree{ // Default values
		rules:   rules,
		c:       C,
		metrics: metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(frand.Uint64n(math.MaxUint64)))
	}
	return t
}

func (t *Tree) newNode(parent *Node, position game.Position, side game.Side, move game.Move) *Node {
	text := ""
	if move != nil {
		text = t.rules.MoveText(move)
	}
	return newNode(parent, position, side, move, text, t.rules.LegalMoves(position))
}

func (t *Tree) Root() *Node          { return t.root }
func (t *Tree) Cursor() *Node        { return t.cursor }
func (t *Tree) Rules() game.Rules    { return t.rules }
func (t *Tree) Exploration() float64 { return t.c }

// ResetCursor moves the cursor back to the root.
func (t *Tree) ResetCursor() {
	t.cursor = t.root
}

// Advance moves the cursor along move. An explored child is reused with its
// statistics; otherwise the move is applied and a fresh child attached. A
// fresh terminal child is scored at once so selection never meets it
// unsimulated.
func (t *Tree) Advance(move game.Move) (*Node, bool, error) {
	text := t.rules.MoveText(move)
	if child, ok := t.cursor.children[text]; ok {
		t.cursor = child
		t.metrics.SetTreeReused(true)
		return child, true, nil
	}

	position, err := t.rules.Apply(t.cursor.position, move)
	if err != nil {
		return nil, false, fmt.Errorf("advancing %s by %q: %w", t.cursor.Path(), text, err)
	}
	for i, untried := range t.cursor.untried {
		if t.rules.MoveText(untried) == text {
			t.cursor.takeUntried(i)
			break
		}
	}
	child := t.newNode(t.cursor, position, t.cursor.side.Opponent(), move)
	t.cursor.attach(child)
	if t.rules.IsTerminal(position) {
		delta, err := t.rollout(child)
		if err != nil {
			return nil, false, err
		}
		child.backup(delta)
	}
	t.cursor = child
	t.metrics.SetTreeReused(false)
	return child, false, nil
}

// Search runs MCTS episodes from the cursor until budget has elapsed. At
// least one episode runs. ctx is checked between episodes only.
func (t *Tree) Search(ctx context.Context, budget time.Duration) (metrics.SearchMetric, error) {
	start := time.Now()
	return t.run(ctx, func(done int) bool {
		return done == 0 || time.Since(start) < budget
	})
}

// Iterate runs exactly episodes MCTS episodes from the cursor.
func (t *Tree) Iterate(ctx context.Context, episodes int) (metrics.SearchMetric, error) {
	return t.run(ctx, func(done int) bool {
		return done < episodes
	})
}

func (t *Tree) run(ctx context.Context, more func(done int) bool) (metrics.SearchMetric, error) {
	start := time.Now()
	t.metrics.Start()
	done := 0
	for ; more(done); done++ {
		if err := ctx.Err(); err != nil {
			return t.metrics.Complete(), err
		}
		if err := t.episode(); err != nil {
			return t.metrics.Complete(), err
		}
		t.metrics.AddEpisode()
	}
	log.Debug().
		Str("cursor", t.cursor.Path()).
		Int("episodes", done).
		Int("sims", t.cursor.sims).
		Dur("duration", time.Since(start)).
		Msg("search complete")
	return t.metrics.Complete(), nil
}

func (t *Tree) episode() error {
	leaf, err := t.expand(t.cursor)
	if err != nil {
		return err
	}
	delta, err := t.rollout(leaf)
	if err != nil {
		return err
	}
	leaf.backup(delta)
	return nil
}

// expand flips a coin weighted by the share of from's moves still untried to
// choose between expanding at from and expanding below its selected frontier
// node. A target with nothing left to try is returned unexpanded.
func (t *Tree) expand(from *Node) (*Node, error) {
	atSelf := false
	if from.totalMoves > 0 {
		atSelf = t.rng.Float64() < float64(len(from.untried))/float64(from.totalMoves)
	}

	target := from
	if !atSelf {
		var err error
		target, err = from.descend(t.c)
		if err != nil {
			return nil, err
		}
	}
	if len(target.untried) == 0 {
		return target, nil
	}

	i := t.rng.Intn(len(target.untried))
	position, err := t.rules.Apply(target.position, target.untried[i])
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", target.Path(), err)
	}
	move := target.takeUntried(i)
	child := t.newNode(target, position, target.side.Opponent(), move)
	target.attach(child)
	t.metrics.AddNode()
	return child, nil
}

// rollout plays uniformly random moves from n's position to the end of the
// game and records the result on n from n's side.
func (t *Tree) rollout(n *Node) (int, error) {
	position := n.position
	for !t.rules.IsTerminal(position) {
		moves := t.rules.LegalMoves(position)
		if len(moves) == 0 {
			return 0, fmt.Errorf("rollout from %s: position %q has no moves but is not terminal", n.Path(), position)
		}
		next, err := t.rules.Apply(position, moves[t.rng.Intn(len(moves))])
		if err != nil {
			return 0, fmt.Errorf("rollout from %s: %w", n.Path(), err)
		}
		position = next
	}
	delta := t.rules.Result(position).Units(n.side)
	n.record(delta)
	return delta, nil
}

// ExploreMove picks the cursor's child by UCB1, the same criterion used
// during selection. It returns nil when no child is selectable.
func (t *Tree) ExploreMove() (*Node, error) {
	return t.cursor.bestChild(t.c)
}

// BestMove picks the cursor's child with the highest win rate, ignoring
// unsimulated children. It returns nil when there is none.
func (t *Tree) BestMove() *Node {
	var best *Node
	maxRate := -1.0
	for _, child := range t.cursor.Children() {
		if child.sims == 0 {
			continue
		}
		if rate := exploit(child.wins, child.sims); rate > maxRate {
			maxRate = rate
			best = child
		}
	}
	return best
}
