package searcher

import (
	"fmt"
	"slices"
	"strings"

	"montecarlo/game"
)

// Node is one vertex of the search tree. Statistics are stored in doubled
// units from the perspective of side, the player who made the move into this
// node. A node owns its children; parent is only a back-reference.
type Node struct {
	parent     *Node
	position   game.Position
	side       game.Side
	move       game.Move
	moveText   string
	wins       int
	sims       int
	untried    []game.Move
	totalMoves int
	children   map[string]*Node
	order      []string // children keys, sorted
}

func newNode(parent *Node, position game.Position, side game.Side, move game.Move, moveText string, legal []game.Move) *Node {
	return &Node{
		parent:     parent,
		position:   position,
		side:       side,
		move:       move,
		moveText:   moveText,
		untried:    slices.Clone(legal),
		totalMoves: len(legal),
		children:   make(map[string]*Node),
	}
}

func (n *Node) Parent() *Node           { return n.parent }
func (n *Node) Position() game.Position { return n.position }
func (n *Node) Side() game.Side         { return n.side }
func (n *Node) Move() game.Move         { return n.move }
func (n *Node) MoveText() string        { return n.moveText }
func (n *Node) Wins() int               { return n.wins }
func (n *Node) Sims() int               { return n.sims }
func (n *Node) TotalMoves() int         { return n.totalMoves }
func (n *Node) Untried() []game.Move    { return slices.Clone(n.untried) }
func (n *Node) IsFrontier() bool        { return len(n.children) == 0 }
func (n *Node) Child(move string) *Node { return n.children[move] }
func (n *Node) WinRate() float64        { return exploit(n.wins, n.sims) }

// Children returns the children sorted by move text.
func (n *Node) Children() []*Node {
	children := make([]*Node, len(n.order))
	for i, key := range n.order {
		children[i] = n.children[key]
	}
	return children
}

// Path names the node by the moves leading to it from the root.
func (n *Node) Path() string {
	var moves []string
	for node := n; node.parent != nil; node = node.parent {
		moves = append(moves, node.moveText)
	}
	slices.Reverse(moves)
	return "/" + strings.Join(moves, "/")
}

func (n *Node) attach(child *Node) {
	n.children[child.moveText] = child
	i, _ := slices.BinarySearch(n.order, child.moveText)
	n.order = slices.Insert(n.order, i, child.moveText)
}

// takeUntried removes the i-th untried move, keeping the order of the rest.
func (n *Node) takeUntried(i int) game.Move {
	move := n.untried[i]
	n.untried = slices.Delete(n.untried, i, i+1)
	return move
}

// bestChild picks the child with the strictly greatest UCB1 score. The running
// maximum starts at 0, so nil is returned when no child scores above it.
func (n *Node) bestChild(c float64) (*Node, error) {
	policy := newUCT(c, n.sims)
	var best *Node
	maxScore := 0.0
	for _, key := range n.order {
		child := n.children[key]
		score, err := policy.evaluate(child.wins, child.sims)
		if err != nil {
			return nil, fmt.Errorf("selecting %s: %w", child.Path(), err)
		}
		if score > maxScore {
			maxScore = score
			best = child
		}
	}
	return best, nil
}

// descend follows bestChild down to the first node without children. It
// returns n itself when none of its children is selectable.
func (n *Node) descend(c float64) (*Node, error) {
	best, err := n.bestChild(c)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return n, nil
	}
	for len(best.children) > 0 {
		next, err := best.bestChild(c)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		best = next
	}
	return best, nil
}

func (n *Node) record(delta int) {
	n.wins += delta
	n.sims += SimUnits
}

// backup credits every ancestor of n, flipping the result at each level since
// the parent was reached by the other side's move.
func (n *Node) backup(delta int) {
	for node := n; node.parent != nil; node = node.parent {
		delta = Win - delta
		node.parent.record(delta)
	}
}
