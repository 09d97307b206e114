package searcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"montecarlo/game"
)

// record is the persisted form of a node. Pointer fields tell a missing key
// apart from a zero value when decoding.
type record struct {
	Wins       *int      `json:"wins"`
	Sims       *int      `json:"sims"`
	LastMove   *string   `json:"last_move"`
	Player     *string   `json:"player"`
	Boardstate *string   `json:"boardstate"`
	Untried    []string  `json:"legal_moves_remaining"`
	TotalMoves *int      `json:"total_legal_moves"`
	Children   []*record `json:"children"`
}

// Encode writes the whole tree, from its root, as nested JSON. Children are
// written in move-text order so equal trees always encode to equal bytes.
func Encode(w io.Writer, t *Tree) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(toRecord(t.rules, t.root)); err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	return nil
}

func Marshal(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toRecord(rules game.Rules, n *Node) *record {
	return &record{
		Wins:       lo.ToPtr(n.wins),
		Sims:       lo.ToPtr(n.sims),
		LastMove:   lo.ToPtr(n.moveText),
		Player:     lo.ToPtr(n.side.String()),
		Boardstate: lo.ToPtr(string(n.position)),
		Untried: lo.Map(n.untried, func(m game.Move, _ int) string {
			return rules.MoveText(m)
		}),
		TotalMoves: lo.ToPtr(n.totalMoves),
		Children: lo.Map(n.Children(), func(child *Node, _ int) *record {
			return toRecord(rules, child)
		}),
	}
}

// Decode reads a tree written by Encode. Every field is checked against the
// rules and the tree invariants; any problem yields ErrMalformedTree and no
// tree. The cursor of the returned tree is its root.
func Decode(r io.Reader, rules game.Rules, options ...Option) (*Tree, error) {
	var rec record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	var rest json.RawMessage
	if err := dec.Decode(&rest); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after tree", ErrMalformedTree)
	}
	t := newTree(rules, options...)
	root, err := t.fromRecord(&rec, nil)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.cursor = root
	return t, nil
}

func Unmarshal(data []byte, rules game.Rules, options ...Option) (*Tree, error) {
	return Decode(bytes.NewReader(data), rules, options...)
}

func malformed(path string, format string, args ...any) error {
	return fmt.Errorf("%w: node %s: %s", ErrMalformedTree, path, fmt.Sprintf(format, args...))
}

func (t *Tree) fromRecord(rec *record, parent *Node) (*Node, error) {
	path := "/"
	if parent != nil {
		path = parent.Path()
		if rec.LastMove != nil {
			path = strings.TrimSuffix(path, "/") + "/" + *rec.LastMove
		}
	}

	switch {
	case rec.Wins == nil:
		return nil, malformed(path, "missing wins")
	case rec.Sims == nil:
		return nil, malformed(path, "missing sims")
	case rec.LastMove == nil:
		return nil, malformed(path, "missing last_move")
	case rec.Player == nil:
		return nil, malformed(path, "missing player")
	case rec.Boardstate == nil:
		return nil, malformed(path, "missing boardstate")
	case rec.Untried == nil:
		return nil, malformed(path, "missing legal_moves_remaining")
	case rec.TotalMoves == nil:
		return nil, malformed(path, "missing total_legal_moves")
	case rec.Children == nil:
		return nil, malformed(path, "missing children")
	}

	wins, sims := *rec.Wins, *rec.Sims
	if sims < 0 || sims%SimUnits != 0 {
		return nil, malformed(path, "sims %d is not a nonnegative even number", sims)
	}
	if wins < 0 || wins > sims {
		return nil, malformed(path, "wins %d outside [0, %d]", wins, sims)
	}
	if *rec.TotalMoves < len(rec.Untried) {
		return nil, malformed(path, "total_legal_moves %d below %d remaining", *rec.TotalMoves, len(rec.Untried))
	}

	side, err := game.ParseSide(*rec.Player)
	if err != nil {
		return nil, malformed(path, "%v", err)
	}
	position, err := t.rules.ParsePosition(*rec.Boardstate)
	if err != nil {
		return nil, malformed(path, "%v", err)
	}

	var move game.Move
	if parent == nil {
		if *rec.LastMove != "" {
			return nil, malformed(path, "root has last_move %q", *rec.LastMove)
		}
		// The root is credited to the side that does not move from it
		if want := t.rules.SideToMove(position).Opponent(); side != want {
			return nil, malformed(path, "root player %s, want %s", side, want)
		}
	} else {
		if side != parent.side.Opponent() {
			return nil, malformed(path, "player %s does not alternate with parent", side)
		}
		if move, err = t.parseMove(parent.position, *rec.LastMove); err != nil {
			return nil, malformed(path, "last_move: %v", err)
		}
	}

	untried := make([]game.Move, 0, len(rec.Untried))
	for _, text := range rec.Untried {
		m, err := t.parseMove(position, text)
		if err != nil {
			return nil, malformed(path, "legal_moves_remaining: %v", err)
		}
		untried = append(untried, m)
	}

	node := &Node{
		parent:     parent,
		position:   position,
		side:       side,
		move:       move,
		moveText:   *rec.LastMove,
		wins:       wins,
		sims:       sims,
		untried:    untried,
		totalMoves: *rec.TotalMoves,
		children:   make(map[string]*Node, len(rec.Children)),
	}

	childSims := 0
	for _, childRec := range rec.Children {
		if childRec == nil {
			return nil, malformed(path, "null child")
		}
		child, err := t.fromRecord(childRec, node)
		if err != nil {
			return nil, err
		}
		if node.children[child.moveText] != nil {
			return nil, malformed(child.Path(), "duplicate child")
		}
		if lo.Contains(rec.Untried, child.moveText) {
			return nil, malformed(child.Path(), "move is both explored and remaining")
		}
		node.attach(child)
		childSims += child.sims
	}
	if childSims > sims {
		return nil, malformed(path, "children hold %d sims, more than %d", childSims, sims)
	}
	return node, nil
}

// parseMove requires the text to survive a parse and print unchanged.
func (t *Tree) parseMove(position game.Position, text string) (game.Move, error) {
	if text == "" {
		return nil, fmt.Errorf("empty move")
	}
	move, err := t.rules.ParseMove(position, text)
	if err != nil {
		return nil, err
	}
	if printed := t.rules.MoveText(move); printed != text {
		return nil, fmt.Errorf("move %q prints back as %q", text, printed)
	}
	return move, nil
}
