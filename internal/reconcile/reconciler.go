package reconcile

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

// Submitter sends a move to the authoritative pipeline.
type Submitter interface {
	SubmitMove(ctx context.Context, gameID string, mv rules.Move, requestID string) (livedto.MoveResponse, error)
}

// Fetcher reloads authoritative state, used to resynchronize after a gap in
// the broadcast stream.
type Fetcher interface {
	Game(ctx context.Context, gameID string) (livedto.GameResponse, error)
}

// Reconciler keeps a non-authoritative local mirror of one game. A move is
// applied optimistically before the server confirms it; the authoritative
// echo is matched by request id, never by diffing positions, so a
// self-originated broadcast is not applied twice.
type Reconciler struct {
	gameID string
	submit Submitter
	fetch  Fetcher

	mu      sync.Mutex
	local   string
	pending *pendingMove
	lastSeq int
}

type pendingMove struct {
	requestID  string
	optimistic string
	prior      string
}

func New(gameID, startFEN string, submit Submitter, fetch Fetcher) *Reconciler {
	return &Reconciler{gameID: gameID, submit: submit, fetch: fetch, local: startFEN}
}

// Local returns the current mirror position.
func (r *Reconciler) Local() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local
}

// Pending reports whether an optimistic move awaits confirmation.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Play applies mv optimistically and submits it. On success the local state
// is kept when the server agrees with the optimistic guess and replaced by
// the authoritative value when it does not. On failure the optimistic guess
// is rolled back. The returned request id correlates the eventual broadcast
// echo.
func (r *Reconciler) Play(ctx context.Context, mv rules.Move) (string, error) {
	mv = mv.Normalize()

	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		return "", &livedto.DomainError{Code: livedto.CodeInvalidState, Message: "a move is already pending"}
	}
	verdict, err := rules.Validate(r.local, mv)
	if err != nil {
		r.mu.Unlock()
		return "", err
	}
	if verdict.PromotionNeeded {
		r.mu.Unlock()
		return "", &livedto.DomainError{Code: livedto.CodePromotionRequired, Message: "move requires a promotion choice"}
	}
	if !verdict.Legal {
		r.mu.Unlock()
		return "", &livedto.DomainError{Code: livedto.CodeInvalidMove, Message: "illegal move"}
	}

	applied := rules.Apply(r.local, mv)
	requestID := uuid.NewString()
	r.pending = &pendingMove{requestID: requestID, optimistic: applied.FEN, prior: r.local}
	r.local = applied.FEN
	r.mu.Unlock()

	resp, err := r.submit.SubmitMove(ctx, r.gameID, mv, requestID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.pending != nil && r.pending.requestID == requestID {
			r.local = r.pending.prior
			r.pending = nil
		}
		return requestID, err
	}
	if r.pending != nil && r.pending.requestID == requestID {
		if resp.FEN != r.pending.optimistic {
			// server disagreed with the guess; its value wins
			r.local = resp.FEN
		}
		r.pending = nil
	}
	return requestID, nil
}

// OnEvent reconciles one broadcast event. A skipped sequence number means the
// stream dropped something, so the mirror is rebuilt from authoritative
// state.
func (r *Reconciler) OnEvent(ctx context.Context, ev livedto.MoveEvent) {
	r.mu.Lock()
	gap := r.lastSeq > 0 && ev.Seq > r.lastSeq+1
	if ev.Seq > r.lastSeq {
		r.lastSeq = ev.Seq
	}
	if gap {
		r.mu.Unlock()
		if err := r.Resync(ctx); err != nil {
			obslog.L().Warn("reconcile_resync_error", zap.String("game_id", r.gameID), zap.Error(err))
		}
		return
	}

	defer r.mu.Unlock()
	switch {
	case r.pending == nil:
		r.local = ev.FEN
	case ev.RequestID == r.pending.requestID:
		// our own confirmed move coming back around
		r.local = ev.FEN
		r.pending = nil
	case ev.FEN != r.pending.optimistic:
		// someone else's move landed first; the guess is dead
		r.local = ev.FEN
		r.pending = nil
	}
}

// Resync discards local guesses and adopts the stored authoritative state.
func (r *Reconciler) Resync(ctx context.Context) error {
	resp, err := r.fetch.Game(ctx, r.gameID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = resp.FEN
	r.pending = nil
	if n := len(resp.Moves); n > r.lastSeq {
		r.lastSeq = n
	}
	return nil
}
