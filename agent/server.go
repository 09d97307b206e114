package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"montecarlo/engine"
	"montecarlo/searcher"
)

// Server exposes one controller over HTTP. Requests are served one at a time
// since a session has a single thread of control.
type Server struct {
	mu         sync.Mutex
	controller *engine.Controller
}

func NewServer(controller *engine.Controller) *Server {
	return &Server{controller: controller}
}

// NewHandler routes the agent endpoints to controller.
func NewHandler(controller *engine.Controller) http.Handler {
	return NewServer(controller).Handler()
}

func (s *Server) Handler() http.Handler {
	// Create a local mux rather than using the global DefaultServeMux
	mux := http.NewServeMux()
	mux.HandleFunc("POST /move", s.handleMove)
	mux.HandleFunc("POST /reply", s.handleReply)
	mux.HandleFunc("GET /tree", s.handleGetTree)
	mux.HandleFunc("PUT /tree", s.handlePutTree)
	return mux
}

// ListenAndServe starts an agent server on addr.
func ListenAndServe(addr string, controller *engine.Controller) error {
	log.Info().Msgf("starting agent server on %s ...", addr)
	return http.ListenAndServe(addr, NewHandler(controller))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload engine.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A dropped client must not cut the search short
	turn, err := s.controller.Play(context.WithoutCancel(r.Context()), payload.Move)
	s.writeTurn(w, turn, err)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn, err := s.controller.Reply(context.WithoutCancel(r.Context()))
	s.writeTurn(w, turn, err)
}

func (s *Server) writeTurn(w http.ResponseWriter, turn engine.Turn, err error) {
	if err != nil {
		log.Warn().Err(err).Str("state", s.controller.State().String()).Msg("turn failed")
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(engine.NewTurnResponse(turn)); err != nil {
		http.Error(w, "failed to encode turn: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleGetTree(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := searcher.Marshal(s.controller.Tree())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handlePutTree(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.controller.Load(r.Body); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrIllegalMove), errors.Is(err, searcher.ErrMalformedTree):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSessionOver), errors.Is(err, engine.ErrNotAwaiting):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
