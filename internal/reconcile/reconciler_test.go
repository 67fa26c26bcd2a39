package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

type fakeSubmitter struct {
	resp      livedto.MoveResponse
	err       error
	overrideF func(mv rules.Move, requestID string) (livedto.MoveResponse, error)
	calls     int
	lastMove  rules.Move
	lastReqID string
}

func (f *fakeSubmitter) SubmitMove(_ context.Context, _ string, mv rules.Move, requestID string) (livedto.MoveResponse, error) {
	f.calls++
	f.lastMove = mv
	f.lastReqID = requestID
	if f.overrideF != nil {
		return f.overrideF(mv, requestID)
	}
	return f.resp, f.err
}

type fakeFetcher struct {
	resp  livedto.GameResponse
	err   error
	calls int
}

func (f *fakeFetcher) Game(_ context.Context, _ string) (livedto.GameResponse, error) {
	f.calls++
	return f.resp, f.err
}

func echoResponse(mv rules.Move, requestID string) (livedto.MoveResponse, error) {
	applied := rules.Apply(fen.Starting, mv)
	return livedto.MoveResponse{Success: true, FEN: applied.FEN, SAN: applied.SAN, RequestID: requestID, State: "in_progress"}, nil
}

func TestPlayOptimisticThenConfirmed(t *testing.T) {
	sub := &fakeSubmitter{overrideF: echoResponse}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	reqID, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	require.NotEmpty(t, reqID)

	want := rules.Apply(fen.Starting, rules.Move{From: "e2", To: "e4"}).FEN
	assert.Equal(t, want, r.Local())
	assert.False(t, r.Pending(), "confirmed move must not stay pending")
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, reqID, sub.lastReqID)
}

func TestPlayRollsBackOnServerError(t *testing.T) {
	sub := &fakeSubmitter{err: &livedto.DomainError{Code: livedto.CodeConflict, Message: "try again", Retryable: true}}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.Error(t, err)
	assert.Equal(t, livedto.CodeConflict, livedto.CodeOf(err))
	assert.Equal(t, fen.Starting, r.Local(), "rejected move must be rolled back")
	assert.False(t, r.Pending())
}

func TestPlayRejectsIllegalLocally(t *testing.T) {
	sub := &fakeSubmitter{}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e5"})
	require.Error(t, err)
	assert.Equal(t, livedto.CodeInvalidMove, livedto.CodeOf(err))
	assert.Zero(t, sub.calls, "illegal moves must not reach the server")
	assert.Equal(t, fen.Starting, r.Local())
}

func TestPlayRequiresPromotionChoice(t *testing.T) {
	const nearPromotion = "8/4P3/8/8/8/8/8/k1K5 w - - 0 1"
	sub := &fakeSubmitter{}
	r := New("g1", nearPromotion, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e7", To: "e8"})
	require.Error(t, err)
	assert.Equal(t, livedto.CodePromotionRequired, livedto.CodeOf(err))
	assert.Zero(t, sub.calls)
}

func TestPlayAdoptsAuthoritativeOnDisagreement(t *testing.T) {
	serverFEN := rules.Apply(fen.Starting, rules.Move{From: "d2", To: "d4"}).FEN
	sub := &fakeSubmitter{resp: livedto.MoveResponse{Success: true, FEN: serverFEN}}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
	assert.Equal(t, serverFEN, r.Local(), "server position wins over the optimistic guess")
}

func TestOnEventOwnEchoNotAppliedTwice(t *testing.T) {
	var echoedReqID string
	var echoedFEN string
	sub := &fakeSubmitter{overrideF: func(mv rules.Move, requestID string) (livedto.MoveResponse, error) {
		resp, _ := echoResponse(mv, requestID)
		echoedReqID = requestID
		echoedFEN = resp.FEN
		return resp, nil
	}}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)

	r.OnEvent(context.Background(), livedto.MoveEvent{GameID: "g1", FEN: echoedFEN, RequestID: echoedReqID, Seq: 1})
	assert.Equal(t, echoedFEN, r.Local())
	assert.False(t, r.Pending())
}

func TestOnEventDivergentBroadcastDiscardsGuess(t *testing.T) {
	// submission hangs behind a divergent broadcast: the other player's
	// move was committed first
	theirFEN := rules.Apply(fen.Starting, rules.Move{From: "d2", To: "d4"}).FEN
	sub := &fakeSubmitter{overrideF: func(mv rules.Move, requestID string) (livedto.MoveResponse, error) {
		return livedto.MoveResponse{}, &livedto.DomainError{Code: livedto.CodeConflict, Message: "concurrent update", Retryable: true}
	}}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.Error(t, err)

	r.OnEvent(context.Background(), livedto.MoveEvent{GameID: "g1", FEN: theirFEN, RequestID: "someone-else", Seq: 1})
	assert.Equal(t, theirFEN, r.Local())
	assert.False(t, r.Pending())
}

func TestOnEventIdleAdoptsUnconditionally(t *testing.T) {
	r := New("g1", fen.Starting, &fakeSubmitter{}, &fakeFetcher{})
	next := rules.Apply(fen.Starting, rules.Move{From: "g1", To: "f3"}).FEN

	r.OnEvent(context.Background(), livedto.MoveEvent{GameID: "g1", FEN: next, Seq: 1})
	assert.Equal(t, next, r.Local())
}

func TestOnEventSeqGapTriggersResync(t *testing.T) {
	authoritative := rules.Apply(fen.Starting, rules.Move{From: "e2", To: "e4"}).FEN
	fetch := &fakeFetcher{resp: livedto.GameResponse{ID: "g1", FEN: authoritative, Moves: []livedto.MoveInfo{{}, {}, {}}}}
	r := New("g1", fen.Starting, &fakeSubmitter{}, fetch)

	r.OnEvent(context.Background(), livedto.MoveEvent{GameID: "g1", FEN: "stale-1", Seq: 1})
	// seq 2 never arrives
	r.OnEvent(context.Background(), livedto.MoveEvent{GameID: "g1", FEN: "stale-3", Seq: 3})

	assert.Equal(t, 1, fetch.calls, "a skipped seq must rebuild from stored state")
	assert.Equal(t, authoritative, r.Local())
}

func TestResyncClearsPendingAndAdopts(t *testing.T) {
	authoritative := rules.Apply(fen.Starting, rules.Move{From: "c2", To: "c4"}).FEN
	fetch := &fakeFetcher{resp: livedto.GameResponse{ID: "g1", FEN: authoritative}}
	blocked := errors.New("network down")
	sub := &fakeSubmitter{err: blocked}
	r := New("g1", fen.Starting, sub, fetch)

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.ErrorIs(t, err, blocked)

	require.NoError(t, r.Resync(context.Background()))
	assert.Equal(t, authoritative, r.Local())
	assert.False(t, r.Pending())
}

func TestPlayRefusesWhilePending(t *testing.T) {
	// submitter that confirms but leaves a pending slot via OnEvent-free
	// path is hard to arrange synchronously, so drive it through a
	// submitter that re-enters Play
	sub := &fakeSubmitter{}
	r := New("g1", fen.Starting, sub, &fakeFetcher{})
	sub.overrideF = func(mv rules.Move, requestID string) (livedto.MoveResponse, error) {
		_, innerErr := r.Play(context.Background(), rules.Move{From: "d2", To: "d4"})
		assert.Equal(t, livedto.CodeInvalidState, livedto.CodeOf(innerErr))
		return echoResponse(mv, requestID)
	}

	_, err := r.Play(context.Background(), rules.Move{From: "e2", To: "e4"})
	require.NoError(t, err)
}
