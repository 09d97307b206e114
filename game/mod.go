package game

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadPosition = errors.New("bad position")
)

// Position is an opaque, serialized game state produced by a Rules adapter.
type Position string

// Move is an opaque move handle. Rules converts it to and from text.
type Move any

// Side is one of the two players.
type Side int

const (
	White Side = iota
	Black
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == White {
		return "W"
	}
	return "B"
}

func ParseSide(text string) (Side, error) {
	switch text {
	case "W":
		return White, nil
	case "B":
		return Black, nil
	}
	return White, fmt.Errorf("unknown side %q", text)
}

// Outcome classifies a terminal position.
type Outcome int

const (
	NoOutcome Outcome = iota
	WhiteWins
	BlackWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case WhiteWins:
		return "1-0"
	case BlackWins:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	}
	return "*"
}

// Units scores an outcome for side in doubled units: win 2, draw 1, loss 0.
func (o Outcome) Units(side Side) int {
	switch {
	case o == Draw:
		return 1
	case o == WhiteWins && side == White, o == BlackWins && side == Black:
		return 2
	}
	return 0
}

// Rules answers every rules and board question on behalf of the searcher.
// Implementations must be safe to call with any Position they produced.
type Rules interface {
	SideToMove(Position) Side
	LegalMoves(Position) []Move
	Apply(Position, Move) (Position, error)
	IsTerminal(Position) bool
	Result(Position) Outcome
	MoveText(Move) string
	// ParseMove decodes text as a legal move in the given position.
	ParseMove(Position, string) (Move, error)
	ParsePosition(string) (Position, error)
}
