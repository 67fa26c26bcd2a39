package rules

import (
	"fmt"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/chess-live/internal/fen"
)

// Applied is the executor's output for one transition.
type Applied struct {
	FEN     string
	SAN     string
	Flag    Flag
	Mover   fen.Color
	Outcome string // "", "white", "black" or "draw" once the game has ended
}

// Apply computes the position after m. The move must already be confirmed
// legal by Validate; calling Apply with an illegal move or an undecodable
// position is a programming error and panics. Same (position, move) in,
// same Applied out, with no side effects and no legality judgement.
func Apply(fenStr string, m Move) Applied {
	m = m.Normalize()
	game, err := buildGame(fenStr)
	if err != nil {
		panic(fmt.Sprintf("rules: apply on undecodable position: %v", err))
	}
	pos := game.Position()
	mover := colorOf(pos.Turn())

	mv, err := chesslib.UCINotation{}.Decode(pos, m.UCI())
	if err != nil {
		panic(fmt.Sprintf("rules: apply of unvalidated move %q: %v", m.UCI(), err))
	}
	san := chesslib.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.Move(mv, nil); err != nil {
		panic(fmt.Sprintf("rules: apply of illegal move %q: %v", m.UCI(), err))
	}

	return Applied{
		FEN:     game.FEN(),
		SAN:     san,
		Flag:    flagOf(mv, m),
		Mover:   mover,
		Outcome: outcomeOf(game),
	}
}

func flagOf(mv *chesslib.Move, m Move) Flag {
	switch {
	case m.Promotion != "" || mv.Promo() != chesslib.NoPieceType:
		return FlagPromotion
	case mv.HasTag(chesslib.EnPassant):
		return FlagEnPassant
	case mv.HasTag(chesslib.KingSideCastle):
		return FlagCastleKingside
	case mv.HasTag(chesslib.QueenSideCastle):
		return FlagCastleQueens
	case mv.HasTag(chesslib.Capture):
		return FlagCapture
	}
	return FlagNormal
}

func outcomeOf(game *chesslib.Game) string {
	switch game.Outcome() {
	case chesslib.WhiteWon:
		return "white"
	case chesslib.BlackWon:
		return "black"
	case chesslib.Draw:
		return "draw"
	}
	return ""
}

func colorOf(c chesslib.Color) fen.Color {
	if c == chesslib.White {
		return fen.White
	}
	return fen.Black
}
