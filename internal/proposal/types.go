package proposal

import (
	"time"

	"github.com/park285/chess-live/pkg/livedto"
)

// Time-control bounds accepted at proposal creation.
const (
	MinBaseSecs      = 10
	MaxBaseSecs      = 86400
	MinIncrementSecs = 0
	MaxIncrementSecs = 6000
)

// ColorChoice is the proposer's color preference.
type ColorChoice string

const (
	ColorWhite  ColorChoice = "white"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

// ParseColorChoice validates a wire token.
func ParseColorChoice(s string) (ColorChoice, bool) {
	switch ColorChoice(s) {
	case ColorWhite, ColorBlack, ColorRandom:
		return ColorChoice(s), true
	}
	return "", false
}

// Proposal is the transient pre-game handshake record. It is consumed
// exactly once: resolution deletes it and materializes the session in the
// same transaction.
type Proposal struct {
	ID         string `json:"id"`
	ProposerID string `json:"proposer_id"`
	InviteeID  string `json:"invitee_id,omitempty"`

	WhiteBaseSecs      int `json:"white_base_secs"`
	BlackBaseSecs      int `json:"black_base_secs"`
	WhiteIncrementSecs int `json:"white_increment_secs"`
	BlackIncrementSecs int `json:"black_increment_secs"`

	Rated       bool        `json:"rated"`
	InviteOnly  bool        `json:"invite_only"`
	ColorChoice ColorChoice `json:"color_choice"`
	StartingFEN string      `json:"starting_fen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrNotFound = &livedto.DomainError{Code: livedto.CodeNotFound, Message: "proposal not found or already resolved"}
	ErrUninvited = &livedto.DomainError{Code: livedto.CodeForbidden, Message: "proposal is invite-only"}
	ErrSelfResolve = &livedto.DomainError{Code: livedto.CodeInvalidState, Message: "cannot resolve own proposal"}
	ErrInvalidArgs = &livedto.DomainError{Code: livedto.CodeInvalidState, Message: "invalid proposal parameters"}
	ErrConflict = &livedto.DomainError{Code: livedto.CodeConflict, Message: "proposal changed concurrently", Retryable: true}
)
