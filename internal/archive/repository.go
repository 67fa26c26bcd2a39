package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-live/internal/game"
)

const initialRating = 1200

// Repository persists finished games and rating updates to Postgres. It
// satisfies the game.Archiver interface.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game and, for rated games, settles both
// players' ratings in the same transaction.
func (r *Repository) SaveResult(ctx context.Context, s *game.Session, method string) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}

	result := resultToken(s)
	pgn := buildPGN(s, mapResultToPGN(result), method)

	var uci, san []string
	for _, m := range s.Moves {
		uci = append(uci, m.UCI)
		san = append(san, m.SAN)
	}
	movesUCIRaw, _ := json.Marshal(uci)
	movesSANRaw, _ := json.Marshal(san)
	duration := s.UpdatedAt.Sub(s.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `INSERT INTO live_games (
	    game_id, white_id, black_id, creator_id, time_control, rated,
	    result, result_method, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    white_id=EXCLUDED.white_id,
	    black_id=EXCLUDED.black_id,
	    creator_id=EXCLUDED.creator_id,
	    time_control=EXCLUDED.time_control,
	    rated=EXCLUDED.rated,
	    result=EXCLUDED.result,
	    result_method=EXCLUDED.result_method,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	if _, err := tx.ExecContext(ctx, q,
		s.ID,
		s.WhiteID(), s.BlackID(), s.CreatorID,
		timeControl(s), s.Rated,
		result, strings.TrimSpace(method), string(movesUCIRaw), string(movesSANRaw), pgn,
		s.CreatedAt, s.UpdatedAt, duration,
	); err != nil {
		return err
	}

	if s.Rated && result != "" {
		if err := settleRatings(ctx, tx, s, result); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func settleRatings(ctx context.Context, tx *sql.Tx, s *game.Session, result string) error {
	whiteRating, whiteGames, err := ratingFor(ctx, tx, s.WhiteID())
	if err != nil {
		return err
	}
	blackRating, blackGames, err := ratingFor(ctx, tx, s.BlackID())
	if err != nil {
		return err
	}

	whiteScore := ScoreDraw
	switch result {
	case "white":
		whiteScore = ScoreWin
	case "black":
		whiteScore = ScoreLoss
	}

	newWhite := NewRating(whiteRating, blackRating, whiteScore, KFactor(whiteRating, whiteGames))
	newBlack := NewRating(blackRating, whiteRating, 1-whiteScore, KFactor(blackRating, blackGames))

	if err := upsertRating(ctx, tx, s.WhiteID(), newWhite); err != nil {
		return err
	}
	return upsertRating(ctx, tx, s.BlackID(), newBlack)
}

func ratingFor(ctx context.Context, tx *sql.Tx, userID string) (rating, games int, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT rating, games_played FROM ratings WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&rating, &games)
	if err == sql.ErrNoRows {
		return initialRating, 0, nil
	}
	return rating, games, err
}

func upsertRating(ctx context.Context, tx *sql.Tx, userID string, rating int) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ratings (user_id, rating, games_played)
	  VALUES ($1, $2, 1)
	  ON CONFLICT (user_id) DO UPDATE SET
	    rating = EXCLUDED.rating,
	    games_played = ratings.games_played + 1`, userID, rating)
	return err
}

// resultToken normalizes the session outcome to white, black, draw or empty.
func resultToken(s *game.Session) string {
	result := strings.TrimSpace(s.Outcome)
	if result == "resign" {
		switch s.Winner {
		case s.WhiteID():
			result = "white"
		case s.BlackID():
			result = "black"
		default:
			result = ""
		}
	}
	return result
}

func timeControl(s *game.Session) string {
	if s.WhiteBaseSecs == s.BlackBaseSecs && s.WhiteIncrementSecs == s.BlackIncrementSecs {
		return fmt.Sprintf("%d+%d", s.WhiteBaseSecs, s.WhiteIncrementSecs)
	}
	return fmt.Sprintf("%d+%d/%d+%d", s.WhiteBaseSecs, s.WhiteIncrementSecs, s.BlackBaseSecs, s.BlackIncrementSecs)
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(s *game.Session, pgnResult, method string) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	date := s.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Live game\"]\n")
	b.WriteString("[Site \"chess-live\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(s.WhiteID())))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(s.BlackID())))
	b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(timeControl(s))))
	if strings.TrimSpace(method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	san := make([]string, 0, len(s.Moves))
	for _, m := range s.Moves {
		san = append(san, m.SAN)
	}
	for i := 0; i < len(san); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(san[i])))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
