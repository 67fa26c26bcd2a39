package game

import (
	"time"

	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

// State is a session's lifecycle state.
type State string

const (
	StateNotStarted State = "notStarted"
	StateInProgress State = "inProgress"
	StateFinished   State = "finished"
	StateResigned   State = "resigned"
	StateDraw       State = "draw"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further moves are accepted.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateResigned, StateDraw, StateAborted:
		return true
	}
	return false
}

// MoveRecord is one applied half-move with its resulting position.
type MoveRecord struct {
	UCI      string     `json:"uci"`
	SAN      string     `json:"san"`
	Color    fen.Color  `json:"color"`
	Flag     rules.Flag `json:"flag"`
	FENAfter string     `json:"fen_after"`
	PlayedAt time.Time  `json:"played_at"`
}

// Session is the authoritative, persisted state of one match. It is owned by
// the Store and mutated only through the Store's transactional update.
type Session struct {
	ID           string    `json:"id"`
	CreatorID    string    `json:"creator_id"`
	OpponentID   string    `json:"opponent_id"`
	CreatorColor fen.Color `json:"creator_color"`

	FEN   string       `json:"fen"`
	Moves []MoveRecord `json:"moves"`
	State State        `json:"state"`

	WhiteBaseSecs      int   `json:"white_base_secs"`
	BlackBaseSecs      int   `json:"black_base_secs"`
	WhiteIncrementSecs int   `json:"white_increment_secs"`
	BlackIncrementSecs int   `json:"black_increment_secs"`
	WhiteRemainingMS   int64 `json:"white_remaining_ms"`
	BlackRemainingMS   int64 `json:"black_remaining_ms"`

	Rated      bool `json:"rated"`
	InviteOnly bool `json:"invite_only"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastMoveAt time.Time `json:"last_move_at,omitzero"`

	Winner  string `json:"winner,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// WhiteID returns the identity playing white.
func (s *Session) WhiteID() string {
	if s.CreatorColor == fen.White {
		return s.CreatorID
	}
	return s.OpponentID
}

// BlackID returns the identity playing black.
func (s *Session) BlackID() string {
	if s.CreatorColor == fen.Black {
		return s.CreatorID
	}
	return s.OpponentID
}

// ColorOf maps an identity to its assigned side.
func (s *Session) ColorOf(identity string) (fen.Color, bool) {
	switch identity {
	case "":
		return "", false
	case s.CreatorID:
		return s.CreatorColor, true
	case s.OpponentID:
		return s.CreatorColor.Other(), true
	}
	return "", false
}

// IdentityOf maps a side back to the identity playing it.
func (s *Session) IdentityOf(c fen.Color) string {
	if c == fen.White {
		return s.WhiteID()
	}
	return s.BlackID()
}

// Typed failures of the submission pipeline. Conflict is the only one worth
// an automatic retry; the caller reloads and resubmits.
var (
	ErrNotFound = &livedto.DomainError{Code: livedto.CodeNotFound, Message: "game not found"}
	ErrNotParticipant = &livedto.DomainError{Code: livedto.CodeForbidden, Message: "not part of this game"}
	ErrNotYourTurn = &livedto.DomainError{Code: livedto.CodeForbidden, Message: "not your turn"}
	ErrInvalidMove = &livedto.DomainError{Code: livedto.CodeInvalidMove, Message: "illegal move"}
	ErrPromotionRequired = &livedto.DomainError{Code: livedto.CodePromotionRequired, Message: "move requires a promotion choice"}
	ErrConflict = &livedto.DomainError{Code: livedto.CodeConflict, Message: "a concurrent move committed first", Retryable: true}
	ErrGameOver = &livedto.DomainError{Code: livedto.CodeInvalidState, Message: "game is already over"}
)
