package archive

import "math"

// Game scores from one player's point of view.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// DefaultKFactor is used when a player's game count is unknown.
const DefaultKFactor = 32

// ExpectedScore is the probability of the first player scoring against the
// second under the standard logistic curve.
func ExpectedScore(myRating, opponentRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponentRating-myRating)/400))
}

// NewRating returns the rating after a game with the given score and
// k-factor. The delta is rounded to the nearest integer.
func NewRating(myRating, opponentRating int, score float64, kFactor int) int {
	delta := math.Round(float64(kFactor) * (score - ExpectedScore(myRating, opponentRating)))
	return myRating + int(delta)
}

// KFactor follows the FIDE schedule: 40 for a player's first 30 games, 20
// below 2400, 10 at or above.
func KFactor(rating, gamesPlayed int) int {
	switch {
	case gamesPlayed < 30:
		return 40
	case rating < 2400:
		return 20
	default:
		return 10
	}
}
