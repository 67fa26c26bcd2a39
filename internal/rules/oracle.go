package rules

import (
	"strings"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/chess-live/internal/fen"
)

// Verdict is the oracle's judgement of a candidate move.
type Verdict struct {
	Legal           bool
	PromotionNeeded bool
}

// Validate asks the rules library whether m is legal for the position and
// whether it is promotion-eligible. A promotion-eligible move submitted
// without a promotion piece yields {Legal: true, PromotionNeeded: true};
// the caller must resubmit with a choice before the move can be executed.
// The error is non-nil only when fenStr itself does not decode.
func Validate(fenStr string, m Move) (Verdict, error) {
	m = m.Normalize()
	if !m.WellFormed() {
		return Verdict{}, nil
	}

	game, err := buildGame(fenStr)
	if err != nil {
		return Verdict{}, err
	}

	needsPromo := promotionEligible(game.Position(), m)
	if needsPromo && m.Promotion == "" {
		// Probe with a queen to confirm the underlying move is legal at all.
		probe := m
		probe.Promotion = "q"
		if !legalOn(game, probe) {
			return Verdict{}, nil
		}
		return Verdict{Legal: true, PromotionNeeded: true}, nil
	}
	if !needsPromo && m.Promotion != "" {
		return Verdict{}, nil
	}
	return Verdict{Legal: legalOn(game, m)}, nil
}

func legalOn(game *chesslib.Game, m Move) bool {
	pos := game.Position()
	mv, err := chesslib.UCINotation{}.Decode(pos, m.UCI())
	if err != nil {
		return false
	}
	return game.Move(mv, nil) == nil
}

// promotionEligible reports whether the move pushes the mover's pawn onto the
// back rank. Mirrors the original flag check without consulting legality.
func promotionEligible(pos *chesslib.Position, m Move) bool {
	piece := pos.Board().Piece(squareOf(m.From))
	if piece == chesslib.NoPiece || piece.Type() != chesslib.Pawn {
		return false
	}
	if piece.Color() != pos.Turn() {
		return false
	}
	if pos.Turn() == chesslib.White {
		return m.To[1] == '8'
	}
	return m.To[1] == '1'
}

func squareOf(s string) chesslib.Square {
	file := chesslib.File(s[0] - 'a')
	rank := chesslib.Rank(s[1] - '1')
	return chesslib.NewSquare(file, rank)
}

// buildGame reconstructs a playable game from a canonical position string.
func buildGame(fenStr string) (*chesslib.Game, error) {
	s := strings.TrimSpace(fenStr)
	if s == "" {
		return nil, &fen.ParseError{FEN: fenStr, Reason: "empty position"}
	}
	option, err := chesslib.FEN(s)
	if err != nil {
		return nil, &fen.ParseError{FEN: fenStr, Reason: err.Error()}
	}
	return chesslib.NewGame(option), nil
}
