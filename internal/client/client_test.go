package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-live/internal/api"
	"github.com/park285/chess-live/internal/broadcast"
	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/proposal"
	"github.com/park285/chess-live/internal/reconcile"
	"github.com/park285/chess-live/internal/rules"
	"github.com/park285/chess-live/pkg/livedto"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	games := game.NewStore(rdb)
	bus := broadcast.NewBus(rdb)
	srv := api.NewServer(game.NewManager(games, bus), proposal.NewManager(rdb, games), bus)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func proposalRequest() livedto.CreateProposalRequest {
	return livedto.CreateProposalRequest{
		WhiteBaseTimeSeconds: 300, BlackBaseTimeSeconds: 300,
		WhiteIncrementSecs: 2, BlackIncrementSecs: 2,
		ColorChoice: "white",
	}
}

func TestClientFullGameFlow(t *testing.T) {
	ts := newService(t)
	ctx := context.Background()

	alice := New(ts.URL, WithHeaderProvider(Identity("alice")))
	bob := New(ts.URL, WithHeaderProvider(Identity("bob")))

	proposalID, err := alice.CreateProposal(ctx, proposalRequest())
	require.NoError(t, err)

	open, err := bob.ListOpenProposals(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, proposalID, open[0].ID)
	assert.Equal(t, "alice", open[0].ProposerID)

	gameID, err := bob.ResolveProposal(ctx, proposalID)
	require.NoError(t, err)
	require.NotEmpty(t, gameID)

	mvResp, err := alice.SubmitMove(ctx, gameID, rules.Move{From: "e2", To: "e4"}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "e4", mvResp.SAN)
	assert.Equal(t, "req-1", mvResp.RequestID)

	g, err := bob.Game(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, mvResp.FEN, g.FEN)
	require.Len(t, g.Moves, 1)
	assert.Equal(t, "e2e4", g.Moves[0].UCI)

	g, err = bob.Resign(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, "resigned", g.State)
	assert.Equal(t, "alice", g.Winner)
}

func TestClientSurfacesDomainErrors(t *testing.T) {
	ts := newService(t)
	ctx := context.Background()

	alice := New(ts.URL, WithHeaderProvider(Identity("alice")))
	bob := New(ts.URL, WithHeaderProvider(Identity("bob")))

	proposalID, err := alice.CreateProposal(ctx, proposalRequest())
	require.NoError(t, err)
	gameID, err := bob.ResolveProposal(ctx, proposalID)
	require.NoError(t, err)

	_, err = alice.SubmitMove(ctx, gameID, rules.Move{From: "e2", To: "e5"}, "")
	require.Error(t, err)
	assert.Equal(t, livedto.CodeInvalidMove, livedto.CodeOf(err))

	_, err = bob.SubmitMove(ctx, gameID, rules.Move{From: "e7", To: "e5"}, "")
	require.Error(t, err)
	assert.Equal(t, livedto.CodeForbidden, livedto.CodeOf(err))

	_, err = alice.Game(ctx, "zzzzzz")
	require.Error(t, err)
	assert.Equal(t, livedto.CodeNotFound, livedto.CodeOf(err))

	_, err = alice.ResolveProposal(ctx, proposalID)
	require.Error(t, err)
	assert.Equal(t, livedto.CodeNotFound, livedto.CodeOf(err), "a resolved proposal is gone")
}

func TestClientDrivesReconciler(t *testing.T) {
	ts := newService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := New(ts.URL, WithHeaderProvider(Identity("alice")))
	bob := New(ts.URL, WithHeaderProvider(Identity("bob")))

	proposalID, err := alice.CreateProposal(ctx, proposalRequest())
	require.NoError(t, err)
	gameID, err := bob.ResolveProposal(ctx, proposalID)
	require.NoError(t, err)

	g, err := bob.Game(ctx, gameID)
	require.NoError(t, err)

	// bob mirrors the game, fed by the websocket stream
	mirror := reconcile.New(gameID, g.FEN, bob, bob)
	events := make(chan livedto.MoveEvent, 8)
	stream := NewStream(ts.URL, gameID, Identity("bob"), func(ev livedto.MoveEvent) {
		mirror.OnEvent(ctx, ev)
		events <- ev
	})
	streamDone := make(chan error, 1)
	go func() { streamDone <- stream.Run(ctx) }()

	// give the dial a moment before the first move lands
	require.Eventually(t, func() bool {
		_, err := bob.Game(ctx, gameID)
		return err == nil
	}, 2*time.Second, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	mvResp, err := alice.SubmitMove(ctx, gameID, rules.Move{From: "e2", To: "e4"}, "")
	require.NoError(t, err)

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no broadcast event arrived")
	}
	assert.Equal(t, mvResp.FEN, mirror.Local(), "mirror converges on the authoritative position")

	// bob answers through the mirror itself
	_, err = mirror.Play(ctx, rules.Move{From: "e7", To: "e5"})
	require.NoError(t, err)

	g, err = bob.Game(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, g.FEN, mirror.Local())

	cancel()
	select {
	case <-streamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}
