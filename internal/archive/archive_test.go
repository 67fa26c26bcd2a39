package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/rules"
)

func TestExpectedScoreSymmetry(t *testing.T) {
	if got := ExpectedScore(1500, 1500); got != 0.5 {
		t.Fatalf("equal ratings should expect 0.5, got %v", got)
	}
	a := ExpectedScore(1700, 1500)
	b := ExpectedScore(1500, 1700)
	if diff := a + b - 1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected scores must sum to 1, got %v + %v", a, b)
	}
	if a <= 0.5 {
		t.Fatalf("the stronger player must be favored, got %v", a)
	}
}

func TestNewRating(t *testing.T) {
	cases := []struct {
		name     string
		my, opp  int
		score    float64
		k        int
		expected int
	}{
		{"even win", 1500, 1500, ScoreWin, 32, 1516},
		{"even loss", 1500, 1500, ScoreLoss, 32, 1484},
		{"even draw", 1500, 1500, ScoreDraw, 32, 1500},
		{"upset win", 1400, 1600, ScoreWin, 32, 1424},
		{"expected win gains little", 1600, 1400, ScoreWin, 32, 1608},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewRating(tc.my, tc.opp, tc.score, tc.k); got != tc.expected {
				t.Fatalf("NewRating(%d, %d, %v, %d) = %d, want %d", tc.my, tc.opp, tc.score, tc.k, got, tc.expected)
			}
		})
	}
}

func TestKFactorSchedule(t *testing.T) {
	if got := KFactor(2500, 10); got != 40 {
		t.Fatalf("provisional players get 40, got %d", got)
	}
	if got := KFactor(1800, 100); got != 20 {
		t.Fatalf("established sub-2400 players get 20, got %d", got)
	}
	if got := KFactor(2450, 100); got != 10 {
		t.Fatalf("2400+ players get 10, got %d", got)
	}
}

func finishedSession() *game.Session {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return &game.Session{
		ID:           "abc123",
		CreatorID:    "alice",
		OpponentID:   "bob",
		CreatorColor: fen.White,
		State:        game.StateFinished,
		Winner:       "alice",
		Outcome:      "white",
		Moves: []game.MoveRecord{
			{UCI: "f2f3", SAN: "f3", Color: fen.White},
			{UCI: "e7e5", SAN: "e5", Color: fen.Black},
			{UCI: "g2g4", SAN: "g4", Color: fen.White},
			{UCI: "d8h4", SAN: "Qh4#", Color: fen.Black, Flag: rules.FlagNormal},
		},
		WhiteBaseSecs: 300, BlackBaseSecs: 300,
		WhiteIncrementSecs: 2, BlackIncrementSecs: 2,
		CreatedAt: now.Add(-3 * time.Minute),
		UpdatedAt: now,
	}
}

func TestBuildPGN(t *testing.T) {
	s := finishedSession()
	s.Winner = "bob"
	s.Outcome = "black"

	pgn := buildPGN(s, mapResultToPGN(resultToken(s)), "checkmate_or_draw")

	for _, want := range []string{
		"[White \"alice\"]",
		"[Black \"bob\"]",
		"[Date \"2026.03.14\"]",
		"[TimeControl \"300+2\"]",
		"[Termination \"checkmate_or_draw\"]",
		"[Result \"0-1\"]",
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("PGN missing %q:\n%s", want, pgn)
		}
	}
}

func TestResultTokenResign(t *testing.T) {
	s := finishedSession()
	s.State = game.StateResigned
	s.Outcome = "resign"
	s.Winner = "bob"
	if got := resultToken(s); got != "black" {
		t.Fatalf("resignation by white should score for black, got %q", got)
	}
	s.Winner = "alice"
	if got := resultToken(s); got != "white" {
		t.Fatalf("resignation by black should score for white, got %q", got)
	}
}

func TestMapResultToPGN(t *testing.T) {
	if got := mapResultToPGN("draw"); got != "1/2-1/2" {
		t.Fatalf("draw = %q", got)
	}
	if got := mapResultToPGN(""); got != "*" {
		t.Fatalf("unknown = %q", got)
	}
}

func TestTimeControlAsymmetric(t *testing.T) {
	s := finishedSession()
	s.BlackBaseSecs = 180
	if got := timeControl(s); got != "300+2/180+2" {
		t.Fatalf("asymmetric control = %q", got)
	}
}

func TestSanitizePGN(t *testing.T) {
	if got := sanitizePGN(`al"ice\`); got != "al'ice" {
		t.Fatalf("sanitize = %q", got)
	}
}
