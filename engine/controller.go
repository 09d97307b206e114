package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"montecarlo/experiments/metrics"
	"montecarlo/game"
	"montecarlo/searcher"
)

const DefaultSearchTime = 5 * time.Second

var (
	ErrIllegalMove = errors.New("illegal opponent move")
	ErrSessionOver = errors.New("session is over")
	ErrNotAwaiting = errors.New("controller is not awaiting this action")
)

type State int

const (
	AwaitingOpponentMove State = iota
	Searching
	AwaitingEngineReply
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingOpponentMove:
		return "awaiting_opponent_move"
	case Searching:
		return "searching"
	case AwaitingEngineReply:
		return "awaiting_engine_reply"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ReplyPolicy decides how the engine picks its reply once a search is done.
type ReplyPolicy int

const (
	// ExploreReply picks by UCB1, the same criterion selection uses.
	ExploreReply ReplyPolicy = iota
	// ExploitReply picks the highest win rate.
	ExploitReply
)

func (p ReplyPolicy) String() string {
	if p == ExploitReply {
		return "exploit"
	}
	return "explore"
}

func ParseReplyPolicy(text string) (ReplyPolicy, error) {
	switch text {
	case "explore", "":
		return ExploreReply, nil
	case "exploit":
		return ExploitReply, nil
	}
	return ExploreReply, fmt.Errorf("unknown reply policy %q", text)
}

// Turn reports what happened during one call to Play or Reply.
type Turn struct {
	OpponentMove string
	Reused       bool // opponent move landed on an explored child
	Reply        string
	WinRate      float64
	Sims         int
	Search       metrics.SearchMetric
	State        State
}

type Option func(c *Controller)

func WithSearchTime(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.searchTime = d
		}
	}
}

func WithReplyPolicy(p ReplyPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithTreeOptions configures every tree the controller builds or loads.
func WithTreeOptions(options ...searcher.Option) Option {
	return func(c *Controller) {
		c.treeOptions = append(c.treeOptions, options...)
	}
}

// Controller runs one game session: it owns the search tree, advances it by
// the opponent's moves and searches for its own replies. Rules questions go to
// the rules adapter and tree mechanics to the tree. A Controller is not safe
// for concurrent use.
type Controller struct {
	rules       game.Rules
	tree        *searcher.Tree
	state       State
	searchTime  time.Duration
	policy      ReplyPolicy
	treeOptions []searcher.Option
}

func NewController(rules game.Rules, position game.Position, options ...Option) *Controller {
	c := &Controller{ // Default values
		rules:       rules,
		searchTime:  DefaultSearchTime,
		policy:      ExploreReply,
		treeOptions: []searcher.Option{searcher.WithMetrics()},
	}
	for _, option := range options {
		option(c)
	}
	c.reset(searcher.NewTree(rules, position, c.treeOptions...))
	return c
}

func (c *Controller) reset(tree *searcher.Tree) {
	c.tree = tree
	c.state = AwaitingOpponentMove
	if c.rules.IsTerminal(tree.Cursor().Position()) {
		c.state = Finished
	}
}

func (c *Controller) State() State              { return c.state }
func (c *Controller) Rules() game.Rules         { return c.rules }
func (c *Controller) Tree() *searcher.Tree      { return c.tree }
func (c *Controller) Position() game.Position   { return c.tree.Cursor().Position() }
func (c *Controller) SearchTime() time.Duration { return c.searchTime }
func (c *Controller) Policy() ReplyPolicy       { return c.policy }

// Play applies the opponent's move and answers it. An illegal move is
// rejected before the tree changes. If ctx ends during the search the
// controller keeps the opponent's move and waits for Reply.
func (c *Controller) Play(ctx context.Context, moveText string) (Turn, error) {
	switch c.state {
	case Finished, Aborted:
		return Turn{State: c.state}, fmt.Errorf("playing %q: %w", moveText, ErrSessionOver)
	case AwaitingOpponentMove:
	default:
		return Turn{State: c.state}, fmt.Errorf("playing %q while %s: %w", moveText, c.state, ErrNotAwaiting)
	}

	move, err := c.rules.ParseMove(c.Position(), moveText)
	if err != nil {
		return Turn{State: c.state}, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}
	node, reused, err := c.tree.Advance(move)
	if err != nil {
		return Turn{State: c.state}, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}
	log.Debug().Str("move", moveText).Bool("reused", reused).Int("sims", node.Sims()).Msg("opponent moved")

	turn := Turn{OpponentMove: moveText, Reused: reused}
	if c.rules.IsTerminal(node.Position()) {
		c.state = Finished
		turn.State = c.state
		log.Info().Msgf("game over after opponent move %s: %s", moveText, c.rules.Result(node.Position()))
		return turn, nil
	}
	c.state = AwaitingEngineReply
	return c.reply(ctx, turn)
}

// Reply searches and plays the engine's move without an opponent move first,
// for when the engine opens the game or resumes a loaded tree.
func (c *Controller) Reply(ctx context.Context) (Turn, error) {
	switch c.state {
	case Finished, Aborted:
		return Turn{State: c.state}, fmt.Errorf("replying: %w", ErrSessionOver)
	case AwaitingOpponentMove, AwaitingEngineReply:
	default:
		return Turn{State: c.state}, fmt.Errorf("replying while %s: %w", c.state, ErrNotAwaiting)
	}
	return c.reply(ctx, Turn{})
}

func (c *Controller) reply(ctx context.Context, turn Turn) (Turn, error) {
	c.state = Searching
	metric, err := c.tree.Search(ctx, c.searchTime)
	turn.Search = metric
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.state = AwaitingEngineReply
		} else {
			c.state = Aborted
			log.Error().Err(err).Str("cursor", c.tree.Cursor().Path()).Msg("search aborted")
		}
		turn.State = c.state
		return turn, fmt.Errorf("searching: %w", err)
	}

	choice, err := c.choose()
	if err != nil {
		c.state = Aborted
		turn.State = c.state
		log.Error().Err(err).Str("cursor", c.tree.Cursor().Path()).Msg("reply selection aborted")
		return turn, fmt.Errorf("choosing reply: %w", err)
	}
	if choice == nil {
		c.state = Finished
		turn.State = c.state
		log.Warn().Str("cursor", c.tree.Cursor().Path()).Msg("no reply available")
		return turn, nil
	}

	if _, _, err := c.tree.Advance(choice.Move()); err != nil {
		c.state = Aborted
		turn.State = c.state
		return turn, fmt.Errorf("playing reply: %w", err)
	}
	turn.Reply = choice.MoveText()
	turn.WinRate = choice.WinRate()
	turn.Sims = choice.Sims()

	c.state = AwaitingOpponentMove
	if c.rules.IsTerminal(choice.Position()) {
		c.state = Finished
	}
	turn.State = c.state

	log.Info().
		Str("reply", turn.Reply).
		Float64("win_rate", turn.WinRate).
		Int("sims", turn.Sims).
		Int("episodes", metric.Episodes).
		Int("nodes", metric.NodesAdded).
		Bool("reused", metric.TreeReused).
		Dur("duration", metric.Duration).
		Msg("engine reply")
	if c.state == Finished {
		log.Info().Msgf("game over after engine reply %s: %s", turn.Reply, c.rules.Result(choice.Position()))
	}
	return turn, nil
}

// choose returns nil when no child is selectable, which ends the session.
func (c *Controller) choose() (*searcher.Node, error) {
	if c.policy == ExploitReply {
		return c.tree.BestMove(), nil
	}
	return c.tree.ExploreMove()
}

// Save writes the whole tree, from the session's starting position.
func (c *Controller) Save(w io.Writer) error {
	return searcher.Encode(w, c.tree)
}

// Load replaces the tree with one read from r and moves the cursor to its
// root. On error the current tree and state are kept.
func (c *Controller) Load(r io.Reader) error {
	tree, err := searcher.Decode(r, c.rules, c.treeOptions...)
	if err != nil {
		return fmt.Errorf("loading tree: %w", err)
	}
	c.reset(tree)
	log.Info().Int("sims", tree.Root().Sims()).Int("children", len(tree.Root().Children())).Msg("tree loaded")
	return nil
}
