package rules

import (
	"strings"
)

// Flag classifies an applied move. The set is closed; every committed move
// carries exactly one flag.
type Flag string

const (
	FlagNormal         Flag = "normal"
	FlagCapture        Flag = "capture"
	FlagEnPassant      Flag = "en_passant"
	FlagCastleKingside Flag = "castle_kingside"
	FlagCastleQueens   Flag = "castle_queenside"
	FlagPromotion      Flag = "promotion"
)

// Move is a candidate transition: origin, destination, optional promotion
// piece (n/b/r/q). Squares use algebraic file+rank, e.g. "e2".
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the move in UCI form ("e2e4", "e7e8q").
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// Normalize lowercases and trims the move fields.
func (m Move) Normalize() Move {
	return Move{
		From:      strings.ToLower(strings.TrimSpace(m.From)),
		To:        strings.ToLower(strings.TrimSpace(m.To)),
		Promotion: strings.ToLower(strings.TrimSpace(m.Promotion)),
	}
}

// WellFormed reports whether the squares are drawn from the 64-square
// alphabet and the promotion piece, if any, is one of the allowed four.
func (m Move) WellFormed() bool {
	if !ValidSquare(m.From) || !ValidSquare(m.To) {
		return false
	}
	return m.Promotion == "" || ValidPromotion(m.Promotion)
}

// ValidSquare reports whether s is one of the 64 algebraic squares.
func ValidSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// ValidPromotion reports whether s names a promotion piece.
func ValidPromotion(s string) bool {
	switch s {
	case "n", "b", "r", "q":
		return true
	}
	return false
}
