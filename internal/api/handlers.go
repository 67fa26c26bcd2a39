package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityOf(r)
	if identity == "" {
		writeError(w, r, &livedto.DomainError{Code: livedto.CodeForbidden, Message: "X-User-Id header is required"})
		return
	}
	var req livedto.CreateProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.Proposals.Create(r.Context(), identity, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, livedto.CreateProposalResponse{ProposalID: p.ID})
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	open, err := s.Proposals.ListOpen(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, open)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.Proposals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResolveProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityOf(r)
	if identity == "" {
		writeError(w, r, &livedto.DomainError{Code: livedto.CodeForbidden, Message: "X-User-Id header is required"})
		return
	}
	sess, err := s.Proposals.Resolve(r.Context(), chi.URLParam(r, "id"), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, livedto.ResolveProposalResponse{GameID: sess.ID})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Games.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse(sess))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	identity := identityOf(r)
	var req livedto.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mv := rules.Move{From: req.From, To: req.To, Promotion: req.Promotion}
	res, err := s.Games.SubmitMove(r.Context(), chi.URLParam(r, "id"), identity, mv, req.RequestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, livedto.MoveResponse{
		Success:          true,
		FEN:              res.Session.FEN,
		SAN:              res.SAN,
		RequestID:        res.RequestID,
		WhiteRemainingMS: res.Session.WhiteRemainingMS,
		BlackRemainingMS: res.Session.BlackRemainingMS,
		State:            string(res.Session.State),
	})
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Games.Resign(r.Context(), chi.URLParam(r, "id"), identityOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse(sess))
}

func gameResponse(sess *game.Session) livedto.GameResponse {
	moves := make([]livedto.MoveInfo, 0, len(sess.Moves))
	for _, m := range sess.Moves {
		moves = append(moves, livedto.MoveInfo{
			UCI:          m.UCI,
			SAN:          m.SAN,
			Color:        string(m.Color),
			Flag:         string(m.Flag),
			FENAfterMove: m.FENAfter,
			PlayedAtMS:   m.PlayedAt.UnixMilli(),
		})
	}
	return livedto.GameResponse{
		ID:               sess.ID,
		FEN:              sess.FEN,
		CreatorID:        sess.CreatorID,
		OpponentID:       sess.OpponentID,
		GameCreatorColor: string(sess.CreatorColor),
		State:            string(sess.State),
		Rated:            sess.Rated,
		Moves:            moves,
		WhiteRemainingMS: sess.WhiteRemainingMS,
		BlackRemainingMS: sess.BlackRemainingMS,
		Winner:           sess.Winner,
		Outcome:          sess.Outcome,
	}
}
