package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"montecarlo/game"
)

// MoveRequest is the body of POST /move on an agent server.
type MoveRequest struct {
	Move string `json:"move"`
}

// TurnResponse is an agent server's answer to POST /move and POST /reply.
type TurnResponse struct {
	Reply   string  `json:"reply"`
	Reused  bool    `json:"reused"`
	State   string  `json:"state"`
	WinRate float64 `json:"win_rate"`
	Sims    int     `json:"sims"`
}

func NewTurnResponse(turn Turn) TurnResponse {
	return TurnResponse{
		Reply:   turn.Reply,
		Reused:  turn.Reused,
		State:   turn.State.String(),
		WinRate: turn.WinRate,
		Sims:    turn.Sims,
	}
}

// RemoteOpponent plays the moves of an engine behind an agent server. The
// local engine's moves are posted to /move and the replies used as the
// opponent's moves; an opponent that moves first is asked via /reply.
type RemoteOpponent struct {
	URL    string
	Client *http.Client
}

func NewRemoteOpponent(url string) *RemoteOpponent {
	return &RemoteOpponent{
		URL:    strings.TrimSuffix(url, "/"),
		Client: http.DefaultClient,
	}
}

func (o *RemoteOpponent) NextMove(ctx context.Context, _ game.Position, last string) (string, error) {
	var resp TurnResponse
	var err error
	if last == "" {
		resp, err = o.post(ctx, "/reply", nil)
	} else {
		resp, err = o.post(ctx, "/move", MoveRequest{Move: last})
	}
	if err != nil {
		return "", err
	}
	if resp.Reply == "" {
		return "", fmt.Errorf("remote agent has no reply (state %s): %w", resp.State, ErrSessionOver)
	}
	return resp.Reply, nil
}

// post encodes body in JSON, posts it to the agent and decodes its turn.
func (o *RemoteOpponent) post(ctx context.Context, path string, body any) (TurnResponse, error) {
	var payload io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return TurnResponse{}, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+path, payload)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.Client.Do(req)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("failed to reach agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(resp.Body)
		return TurnResponse{}, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, bytes.TrimSpace(out))
	}

	var turn TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		return TurnResponse{}, fmt.Errorf("failed to decode agent turn: %w", err)
	}
	return turn, nil
}
