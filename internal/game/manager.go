package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/broadcast"
	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

// Archiver persists terminal sessions to long-term storage.
type Archiver interface {
	SaveResult(ctx context.Context, sess *Session, method string) error
}

// Manager runs the move submission pipeline against the session store.
type Manager struct {
	store    *Store
	bus      *broadcast.Bus
	archiver Archiver
}

func NewManager(store *Store, bus *broadcast.Bus) *Manager {
	return &Manager{store: store, bus: bus}
}

// AttachArchiver wires long-term result persistence.
func (m *Manager) AttachArchiver(a Archiver) {
	if m != nil {
		m.archiver = a
	}
}

// MoveResult is the successful outcome of one submission.
type MoveResult struct {
	Session   *Session
	SAN       string
	Flag      rules.Flag
	RequestID string
}

// Get loads a session, mapping absence to NotFound.
func (m *Manager) Get(ctx context.Context, gameID string) (*Session, error) {
	sess, err := m.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.ID == "" {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Authorize checks, in order: the session exists, the identity is one of the
// two participants, and the side to move of the *stored* position matches the
// identity's color. The same checks run again inside the commit transaction;
// this entry point exists for callers that want the cheap answer first.
func (m *Manager) Authorize(ctx context.Context, gameID, identity string) (fen.Color, error) {
	sess, err := m.Get(ctx, gameID)
	if err != nil {
		return "", err
	}
	return authorize(sess, identity)
}

func authorize(sess *Session, identity string) (fen.Color, error) {
	color, ok := sess.ColorOf(identity)
	if !ok {
		return "", ErrNotParticipant
	}
	turn, err := fen.SideToMove(sess.FEN)
	if err != nil {
		return "", err
	}
	if turn != color {
		return "", ErrNotYourTurn
	}
	return color, nil
}

// SubmitMove is the central transaction: authorize, validate against the
// stored position, execute, compare-and-swap, then broadcast. A concurrent
// committed move fails the swap with Conflict and leaves the store unchanged.
// The broadcast happens only after the commit and its failure is logged, not
// propagated.
func (m *Manager) SubmitMove(ctx context.Context, gameID, identity string, mv rules.Move, requestID string) (*MoveResult, error) {
	mv = mv.Normalize()
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var applied rules.Applied
	sess, err := m.store.UpdateTx(ctx, gameID, func(cur *Session) error {
		// outsiders get Forbidden even on finished games; lifecycle state
		// is only disclosed to participants
		color, ok := cur.ColorOf(identity)
		if !ok {
			return ErrNotParticipant
		}
		if cur.State.Terminal() {
			return ErrGameOver
		}
		turn, err := fen.SideToMove(cur.FEN)
		if err != nil {
			return err
		}
		if turn != color {
			return ErrNotYourTurn
		}
		verdict, err := rules.Validate(cur.FEN, mv)
		if err != nil {
			return err
		}
		if verdict.PromotionNeeded {
			return ErrPromotionRequired
		}
		if !verdict.Legal {
			return ErrInvalidMove
		}

		applied = rules.Apply(cur.FEN, mv)
		now := time.Now().UTC()
		debitClock(cur, color, now)

		cur.FEN = applied.FEN
		cur.Moves = append(cur.Moves, MoveRecord{
			UCI:      mv.UCI(),
			SAN:      applied.SAN,
			Color:    applied.Mover,
			Flag:     applied.Flag,
			FENAfter: applied.FEN,
			PlayedAt: now,
		})
		cur.LastMoveAt = now
		cur.UpdatedAt = now
		if cur.State == StateNotStarted {
			cur.State = StateInProgress
		}
		applyOutcome(cur, applied.Outcome)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := livedto.MoveEvent{
		GameID:    sess.ID,
		FEN:       sess.FEN,
		MovedBy:   identity,
		Color:     string(applied.Mover),
		SAN:       applied.SAN,
		RequestID: requestID,
		State:     string(sess.State),
		Seq:       len(sess.Moves),
	}
	m.publish(ctx, ev)

	obslog.L().Info("game_move",
		zap.String("game_id", sess.ID),
		zap.String("identity", identity),
		zap.String("uci", mv.UCI()),
		zap.String("san", applied.SAN),
		zap.String("state", string(sess.State)),
		zap.String("outcome", sess.Outcome),
	)

	if sess.State.Terminal() {
		m.persistIfFinal(ctx, sess, "checkmate_or_draw")
	}
	return &MoveResult{Session: sess, SAN: applied.SAN, Flag: applied.Flag, RequestID: requestID}, nil
}

// Resign ends the game in favor of the opponent.
func (m *Manager) Resign(ctx context.Context, gameID, identity string) (*Session, error) {
	sess, err := m.store.UpdateTx(ctx, gameID, func(cur *Session) error {
		color, ok := cur.ColorOf(identity)
		if !ok {
			return ErrNotParticipant
		}
		if cur.State.Terminal() {
			return ErrGameOver
		}
		now := time.Now().UTC()
		cur.State = StateResigned
		cur.Winner = cur.IdentityOf(color.Other())
		cur.Outcome = "resign"
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	// one past the last move event, so subscribers see a fresh transition
	// rather than a duplicate of that move
	m.publish(ctx, livedto.MoveEvent{
		GameID:  sess.ID,
		FEN:     sess.FEN,
		MovedBy: identity,
		State:   string(sess.State),
		Seq:     len(sess.Moves) + 1,
	})
	obslog.L().Info("game_resign",
		zap.String("game_id", sess.ID),
		zap.String("resigner", identity),
		zap.String("winner", sess.Winner),
	)
	m.persistIfFinal(ctx, sess, "resignation")
	return sess, nil
}

func (m *Manager) publish(ctx context.Context, ev livedto.MoveEvent) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, ev); err != nil {
		// commit already happened; subscribers resync from the store
		obslog.L().Warn("game_publish_error",
			zap.String("game_id", ev.GameID),
			zap.Int("seq", ev.Seq),
			zap.Error(err),
		)
	}
}

func (m *Manager) persistIfFinal(ctx context.Context, sess *Session, method string) {
	if m.archiver == nil || !sess.State.Terminal() {
		return
	}
	if err := m.archiver.SaveResult(ctx, sess, method); err != nil {
		obslog.L().Error("game_archive_error",
			zap.String("game_id", sess.ID),
			zap.String("outcome", sess.Outcome),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("game_archived",
		zap.String("game_id", sess.ID),
		zap.String("outcome", sess.Outcome),
		zap.String("method", method),
	)
}

func debitClock(cur *Session, mover fen.Color, now time.Time) {
	if !cur.LastMoveAt.IsZero() {
		elapsed := now.Sub(cur.LastMoveAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		if mover == fen.White {
			cur.WhiteRemainingMS = max(cur.WhiteRemainingMS-elapsed, 0)
		} else {
			cur.BlackRemainingMS = max(cur.BlackRemainingMS-elapsed, 0)
		}
	}
	if mover == fen.White {
		cur.WhiteRemainingMS += int64(cur.WhiteIncrementSecs) * 1000
	} else {
		cur.BlackRemainingMS += int64(cur.BlackIncrementSecs) * 1000
	}
}

func applyOutcome(cur *Session, outcome string) {
	switch outcome {
	case "white":
		cur.State = StateFinished
		cur.Winner = cur.WhiteID()
		cur.Outcome = "white"
	case "black":
		cur.State = StateFinished
		cur.Winner = cur.BlackID()
		cur.Outcome = "black"
	case "draw":
		cur.State = StateDraw
		cur.Outcome = "draw"
	}
}
