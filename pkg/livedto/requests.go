package livedto

import "time"

// CreateProposalRequest opens a pre-game proposal.
type CreateProposalRequest struct {
	WhiteBaseTimeSeconds int    `json:"white_base_time_seconds"`
	BlackBaseTimeSeconds int    `json:"black_base_time_seconds"`
	WhiteIncrementSecs   int    `json:"white_increment_seconds"`
	BlackIncrementSecs   int    `json:"black_increment_seconds"`
	Rated                bool   `json:"rated"`
	InviteOnly           bool   `json:"invite_only"`
	ColorChoice          string `json:"color_choice"`
	InviteeID            string `json:"invitee_id,omitempty"`
	StartingFEN          string `json:"starting_fen,omitempty"`
}

// ProposalInfo mirrors an open proposal as listed by the API.
type ProposalInfo struct {
	ID                 string    `json:"id"`
	ProposerID         string    `json:"proposer_id"`
	InviteeID          string    `json:"invitee_id,omitempty"`
	WhiteBaseSecs      int       `json:"white_base_secs"`
	BlackBaseSecs      int       `json:"black_base_secs"`
	WhiteIncrementSecs int       `json:"white_increment_secs"`
	BlackIncrementSecs int       `json:"black_increment_secs"`
	Rated              bool      `json:"rated"`
	InviteOnly         bool      `json:"invite_only"`
	ColorChoice        string    `json:"color_choice"`
	StartingFEN        string    `json:"starting_fen,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type CreateProposalResponse struct {
	ProposalID string `json:"proposal_id"`
}

type ResolveProposalResponse struct {
	GameID string `json:"game_id"`
}

// MoveRequest submits one move. Promotion is one of n/b/r/q when required.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type MoveResponse struct {
	Success          bool   `json:"success"`
	FEN              string `json:"fen"`
	SAN              string `json:"san,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
	WhiteRemainingMS int64  `json:"white_remaining_ms"`
	BlackRemainingMS int64  `json:"black_remaining_ms"`
	State            string `json:"state"`
}

type GameResponse struct {
	ID               string     `json:"id"`
	FEN              string     `json:"fen"`
	CreatorID        string     `json:"creator_id"`
	OpponentID       string     `json:"opponent_id"`
	GameCreatorColor string     `json:"game_creator_color"`
	State            string     `json:"state"`
	Rated            bool       `json:"rated"`
	Moves            []MoveInfo `json:"moves"`
	WhiteRemainingMS int64      `json:"white_remaining_ms"`
	BlackRemainingMS int64      `json:"black_remaining_ms"`
	Winner           string     `json:"winner,omitempty"`
	Outcome          string     `json:"outcome,omitempty"`
}

// MoveInfo is one applied half-move in a game's history.
type MoveInfo struct {
	UCI          string `json:"uci"`
	SAN          string `json:"san"`
	Color        string `json:"color"`
	Flag         string `json:"flag"`
	FENAfterMove string `json:"fen_after_move"`
	PlayedAtMS   int64  `json:"played_at_ms"`
}

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
