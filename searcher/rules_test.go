package searcher

import (
	"fmt"
	"slices"
	"strings"

	"montecarlo/game"
)

// fakeRules plays a scripted game. Positions are move paths such as
// "start/a/b"; a position with no scripted moves is terminal and scores its
// scripted outcome, a draw by default.
type fakeRules struct {
	moves    map[game.Position][]string
	outcomes map[game.Position]game.Outcome
}

func (f fakeRules) SideToMove(p game.Position) game.Side {
	if strings.Count(string(p), "/")%2 == 0 {
		return game.White
	}
	return game.Black
}

func (f fakeRules) LegalMoves(p game.Position) []game.Move {
	moves := make([]game.Move, 0, len(f.moves[p]))
	for _, m := range f.moves[p] {
		moves = append(moves, m)
	}
	return moves
}

func (f fakeRules) Apply(p game.Position, m game.Move) (game.Position, error) {
	text, _ := m.(string)
	if !slices.Contains(f.moves[p], text) {
		return "", fmt.Errorf("%w: %v in %s", game.ErrIllegalMove, m, p)
	}
	return p + "/" + game.Position(text), nil
}

func (f fakeRules) IsTerminal(p game.Position) bool {
	return len(f.moves[p]) == 0
}

func (f fakeRules) Result(p game.Position) game.Outcome {
	if outcome, ok := f.outcomes[p]; ok {
		return outcome
	}
	return game.Draw
}

func (f fakeRules) MoveText(m game.Move) string {
	text, _ := m.(string)
	return text
}

func (f fakeRules) ParseMove(p game.Position, text string) (game.Move, error) {
	if !slices.Contains(f.moves[p], text) {
		return nil, fmt.Errorf("%w: %q in %s", game.ErrIllegalMove, text, p)
	}
	return text, nil
}

func (f fakeRules) ParsePosition(text string) (game.Position, error) {
	if !strings.HasPrefix(text, "start") {
		return "", fmt.Errorf("%w: %q", game.ErrBadPosition, text)
	}
	return game.Position(text), nil
}

// wideRules offers n moves at the start, each ending the game in a draw.
func wideRules(n int) fakeRules {
	moves := make([]string, n)
	for i := range moves {
		moves[i] = fmt.Sprintf("m%02d", i)
	}
	return fakeRules{moves: map[game.Position][]string{"start": moves}}
}

// walk visits every node below and including n in pre-order.
func walk(n *Node, visit func(*Node)) {
	visit(n)
	for _, child := range n.Children() {
		walk(child, visit)
	}
}
