package game

import (
	"fmt"

	"github.com/notnil/chess"
)

// StartingFEN is the standard initial chess position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Chess adapts github.com/notnil/chess. Positions are full FEN strings so the
// half-move clock survives and the 75-move rule ends random playouts. Moves are
// *chess.Move values and their text is UCI.
type Chess struct{}

func NewChess() Chess {
	return Chess{}
}

func (Chess) game(p Position) *chess.Game {
	fen, err := chess.FEN(string(p))
	if err != nil {
		// Positions only enter a tree through ParsePosition or Apply
		panic(fmt.Sprintf("chess adapter given unparsed position %q: %v", p, err))
	}
	return chess.NewGame(fen)
}

func (c Chess) SideToMove(p Position) Side {
	if c.game(p).Position().Turn() == chess.White {
		return White
	}
	return Black
}

func (c Chess) LegalMoves(p Position) []Move {
	g := c.game(p)
	if g.Outcome() != chess.NoOutcome {
		return nil
	}
	valid := g.ValidMoves()
	moves := make([]Move, len(valid))
	for i, m := range valid {
		moves[i] = m
	}
	return moves
}

func (c Chess) Apply(p Position, m Move) (Position, error) {
	move, ok := m.(*chess.Move)
	if !ok {
		return "", fmt.Errorf("%w: %v is not a chess move", ErrIllegalMove, m)
	}
	g := c.game(p)
	if err := g.Move(move); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return Position(g.Position().String()), nil
}

func (c Chess) IsTerminal(p Position) bool {
	return c.game(p).Outcome() != chess.NoOutcome
}

func (c Chess) Result(p Position) Outcome {
	switch c.game(p).Outcome() {
	case chess.WhiteWon:
		return WhiteWins
	case chess.BlackWon:
		return BlackWins
	case chess.Draw:
		return Draw
	}
	return NoOutcome
}

func (Chess) MoveText(m Move) string {
	move, ok := m.(*chess.Move)
	if !ok || move == nil {
		return ""
	}
	return chess.UCINotation{}.Encode(nil, move)
}

func (c Chess) ParseMove(p Position, text string) (Move, error) {
	pos := c.game(p).Position()
	decoded, err := chess.UCINotation{}.Decode(pos, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrIllegalMove, text, err)
	}
	// Decode does not check legality; hand back the generated move so its tags match
	for _, m := range pos.ValidMoves() {
		if m.S1() == decoded.S1() && m.S2() == decoded.S2() && m.Promo() == decoded.Promo() {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrIllegalMove, text, p)
}

func (Chess) ParsePosition(text string) (Position, error) {
	fen, err := chess.FEN(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return Position(chess.NewGame(fen).Position().String()), nil
}
