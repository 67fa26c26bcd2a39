package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/go-chi/chi/v5"

	"github.com/park285/chess-live/internal/obslog"
)

// handleGameSocket streams move events for one game over a websocket. The
// stream is at-most-once; clients watch the seq field and refetch the game
// on a gap.
func (s *Server) handleGameSocket(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	if _, err := s.Games.Get(r.Context(), gameID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	events, err := s.Bus.Subscribe(ctx, gameID)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}

	// discard inbound frames so pings and client closes are processed
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readDone:
			conn.Close(websocket.StatusNormalClosure, "client closed")
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream ended")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				if !errors.Is(err, ctx.Err()) {
					obslog.L().Debug("ws_write_error", zap.String("game_id", gameID), zap.Error(err))
				}
				return
			}
		}
	}
}
