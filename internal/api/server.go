package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/chess-live/internal/broadcast"
	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/proposal"
)

// Server exposes the proposal and game pipelines over HTTP. Identity is
// taken from the X-User-Id header; authenticating that header is left to
// whatever sits in front of this service.
type Server struct {
	Games     *game.Manager
	Proposals *proposal.Manager
	Bus       *broadcast.Bus
}

func NewServer(games *game.Manager, proposals *proposal.Manager, bus *broadcast.Bus) *Server {
	return &Server{Games: games, Proposals: proposals, Bus: bus}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/proposals", s.handleCreateProposal)
		r.Get("/proposals", s.handleListProposals)
		r.Get("/proposals/{id}", s.handleGetProposal)
		r.Post("/proposals/{id}/resolve", s.handleResolveProposal)

		r.Get("/games/{id}", s.handleGetGame)
		r.Post("/games/{id}/move", s.handleMove)
		r.Post("/games/{id}/resign", s.handleResign)
		r.Get("/games/{id}/ws", s.handleGameSocket)
	})
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func identityOf(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
