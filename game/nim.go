package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Nim is single-pile subtraction Nim: each turn takes 1 to MaxTake objects and
// whoever takes the last object wins. Positions look like "7:W" (pile, side to
// move). Moves are ints and their text is the decimal count taken.
type Nim struct {
	MaxTake int
}

func NewNim() Nim {
	return Nim{MaxTake: 3}
}

// NimPosition builds the position with pile objects and side to move.
func NimPosition(pile int, toMove Side) Position {
	return Position(fmt.Sprintf("%d:%s", pile, toMove))
}

func (n Nim) decode(p Position) (int, Side, error) {
	pileText, sideText, ok := strings.Cut(string(p), ":")
	if !ok {
		return 0, White, fmt.Errorf("%w: %q", ErrBadPosition, p)
	}
	pile, err := strconv.Atoi(pileText)
	if err != nil || pile < 0 {
		return 0, White, fmt.Errorf("%w: %q: bad pile", ErrBadPosition, p)
	}
	side, err := ParseSide(sideText)
	if err != nil {
		return 0, White, fmt.Errorf("%w: %q: %v", ErrBadPosition, p, err)
	}
	return pile, side, nil
}

func (n Nim) mustDecode(p Position) (int, Side) {
	pile, side, err := n.decode(p)
	if err != nil {
		panic(err)
	}
	return pile, side
}

func (n Nim) SideToMove(p Position) Side {
	_, side := n.mustDecode(p)
	return side
}

func (n Nim) LegalMoves(p Position) []Move {
	pile, _ := n.mustDecode(p)
	moves := make([]Move, 0, n.MaxTake)
	for take := 1; take <= n.MaxTake && take <= pile; take++ {
		moves = append(moves, take)
	}
	return moves
}

func (n Nim) Apply(p Position, m Move) (Position, error) {
	pile, side, err := n.decode(p)
	if err != nil {
		return "", err
	}
	take, ok := m.(int)
	if !ok || take < 1 || take > n.MaxTake || take > pile {
		return "", fmt.Errorf("%w: take %v from %d", ErrIllegalMove, m, pile)
	}
	return NimPosition(pile-take, side.Opponent()), nil
}

func (n Nim) IsTerminal(p Position) bool {
	pile, _ := n.mustDecode(p)
	return pile == 0
}

// Result credits the side that took the last object, i.e. the side not to move.
func (n Nim) Result(p Position) Outcome {
	pile, side := n.mustDecode(p)
	if pile > 0 {
		return NoOutcome
	}
	if side == White {
		return BlackWins
	}
	return WhiteWins
}

func (Nim) MoveText(m Move) string {
	if take, ok := m.(int); ok {
		return strconv.Itoa(take)
	}
	return ""
}

func (n Nim) ParseMove(p Position, text string) (Move, error) {
	pile, _, err := n.decode(p)
	if err != nil {
		return nil, err
	}
	take, err := strconv.Atoi(text)
	if err != nil || strconv.Itoa(take) != text {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, text)
	}
	if take < 1 || take > n.MaxTake || take > pile {
		return nil, fmt.Errorf("%w: take %d from %d", ErrIllegalMove, take, pile)
	}
	return take, nil
}

func (n Nim) ParsePosition(text string) (Position, error) {
	pile, side, err := n.decode(Position(text))
	if err != nil {
		return "", err
	}
	return NimPosition(pile, side), nil
}
