package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/pkg/livedto"
)

// EventHandler receives each move event as it arrives.
type EventHandler func(livedto.MoveEvent)

// Stream follows one game's move events over a websocket and redials with
// exponential backoff when the connection drops. Events missed while
// disconnected are not replayed; pair the stream with a reconciler that
// watches seq numbers.
type Stream struct {
	wsURL   string
	headers HeaderProvider
	handler EventHandler

	maxReconnectAttempts int
	reconnectDelay       time.Duration
}

// NewStream builds a stream for gameID against the service at baseURL.
func NewStream(baseURL, gameID string, headers HeaderProvider, handler EventHandler) *Stream {
	wsBase := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(wsBase, "http") {
		wsBase = "ws" + strings.TrimPrefix(wsBase, "http")
	}
	return &Stream{
		wsURL:                wsBase + "/api/games/" + gameID + "/ws",
		headers:              headers,
		handler:              handler,
		maxReconnectAttempts: 10,
		reconnectDelay:       time.Second,
	}
}

// Run blocks until ctx is cancelled or the reconnect budget is exhausted.
func (s *Stream) Run(ctx context.Context) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.dial(ctx)
		if err != nil {
			attempts++
			if attempts > s.maxReconnectAttempts {
				return errors.New("websocket reconnect budget exhausted")
			}
			obslog.L().Warn("stream_dial_error",
				zap.String("url", s.wsURL),
				zap.Int("attempt", attempts),
				zap.Error(err))
			if sleepErr := sleepCtx(ctx, s.backoff(attempts)); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		attempts = 0

		err = s.readLoop(ctx, conn)
		conn.Close(websocket.StatusGoingAway, "reconnect")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		obslog.L().Info("stream_disconnected", zap.String("url", s.wsURL), zap.Error(err))
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	header := http.Header{}
	if s.headers != nil {
		for k, v := range s.headers() {
			header.Set(k, v)
		}
	}
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      header,
	})
	return conn, err
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var ev livedto.MoveEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		if s.handler != nil {
			s.handler(ev)
		}
	}
}

func (s *Stream) backoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * s.reconnectDelay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
