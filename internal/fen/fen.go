package fen

import (
	"fmt"
	"strconv"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// Starting is the canonical encoding of the standard initial position.
const Starting = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Position is a decoded board state. The canonical string form is the single
// source of truth: two positions are equal iff their encodings are equal.
type Position struct {
	Placement     string
	Turn          Color
	Castling      string
	EnPassant     string
	HalfMoveClock int
	FullMoves     int
}

// Encode reassembles the canonical six-field string.
func (p Position) Encode() string {
	turn := "w"
	if p.Turn == Black {
		turn = "b"
	}
	return fmt.Sprintf("%s %s %s %s %d %d",
		p.Placement, turn, p.Castling, p.EnPassant, p.HalfMoveClock, p.FullMoves)
}

// ParseError reports a malformed position string. The operation that produced
// the string is at fault; nothing is ever partially decoded.
type ParseError struct {
	FEN    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse fen %q: %s", e.FEN, e.Reason)
}

func parseErr(fen, reason string) error {
	return &ParseError{FEN: fen, Reason: reason}
}

// Decode validates raw and returns its parsed form. Field-level checks run
// first so the error names the offending field; full legality (piece
// placement, castling consistency) is delegated to the chess library.
func Decode(raw string) (Position, error) {
	s := strings.TrimSpace(raw)
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Position{}, parseErr(raw, fmt.Sprintf("expected 6 fields, got %d", len(fields)))
	}

	var turn Color
	switch fields[1] {
	case "w":
		turn = White
	case "b":
		turn = Black
	default:
		return Position{}, parseErr(raw, fmt.Sprintf("invalid side-to-move token %q", fields[1]))
	}

	if !validCastling(fields[2]) {
		return Position{}, parseErr(raw, fmt.Sprintf("invalid castling field %q", fields[2]))
	}
	if !validEnPassant(fields[3]) {
		return Position{}, parseErr(raw, fmt.Sprintf("invalid en-passant field %q", fields[3]))
	}

	half, err := strconv.Atoi(fields[4])
	if err != nil || half < 0 {
		return Position{}, parseErr(raw, fmt.Sprintf("invalid half-move clock %q", fields[4]))
	}
	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return Position{}, parseErr(raw, fmt.Sprintf("invalid full-move counter %q", fields[5]))
	}

	if _, err := chesslib.FEN(s); err != nil {
		return Position{}, parseErr(raw, err.Error())
	}

	return Position{
		Placement:     fields[0],
		Turn:          turn,
		Castling:      fields[2],
		EnPassant:     fields[3],
		HalfMoveClock: half,
		FullMoves:     full,
	}, nil
}

// Validate checks raw without keeping the decoded value.
func Validate(raw string) error {
	_, err := Decode(raw)
	return err
}

// SideToMove extracts the side-to-move from a canonical string.
func SideToMove(raw string) (Color, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) < 2 {
		return "", parseErr(raw, "missing side-to-move field")
	}
	switch fields[1] {
	case "w":
		return White, nil
	case "b":
		return Black, nil
	}
	return "", parseErr(raw, fmt.Sprintf("invalid side-to-move token %q", fields[1]))
}

func validCastling(s string) bool {
	if s == "-" {
		return true
	}
	if s == "" || len(s) > 4 {
		return false
	}
	seen := map[rune]bool{}
	for _, r := range s {
		switch r {
		case 'K', 'Q', 'k', 'q':
			if seen[r] {
				return false
			}
			seen[r] = true
		default:
			return false
		}
	}
	return true
}

func validEnPassant(s string) bool {
	if s == "-" {
		return true
	}
	if len(s) != 2 {
		return false
	}
	if s[0] < 'a' || s[0] > 'h' {
		return false
	}
	return s[1] == '3' || s[1] == '6'
}
