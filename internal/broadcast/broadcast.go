package broadcast

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/pkg/livedto"
)

// Bus publishes confirmed state transitions on a per-game Redis Pub/Sub
// topic. Delivery is at most once: Redis drops messages for absent or slow
// subscribers, and a reconnect may skip events. The session store stays the
// system of record; subscribers that detect a gap re-fetch the game.
type Bus struct{ rdb *redis.Client }

func NewBus(rdb *redis.Client) *Bus { return &Bus{rdb: rdb} }

// Topic is the realtime channel name for a game.
func Topic(gameID string) string { return "game:moves:" + strings.TrimSpace(gameID) }

// Publish is fire and forget. Callers never fail a committed move because of
// a publish error; they log it and move on.
func (b *Bus) Publish(ctx context.Context, ev livedto.MoveEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Topic(ev.GameID), raw).Err()
}

// Subscribe returns a channel of events for one game. The stream lives until
// ctx is done; the underlying go-redis subscription reconnects on its own.
// Events that cannot be handed off immediately are dropped rather than
// blocking the pump (at-most-once contract).
func (b *Bus) Subscribe(ctx context.Context, gameID string) (<-chan livedto.MoveEvent, error) {
	ps := b.rdb.Subscribe(ctx, Topic(gameID))
	// force the SUBSCRIBE round trip so a dead broker surfaces here
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan livedto.MoveEvent, 16)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev livedto.MoveEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					obslog.L().Warn("broadcast_decode_error",
						zap.String("topic", msg.Channel),
						zap.Error(err),
					)
					continue
				}
				select {
				case out <- ev:
				default:
					obslog.L().Warn("broadcast_subscriber_lagging",
						zap.String("game_id", ev.GameID),
						zap.Int("seq", ev.Seq),
					)
				}
			}
		}
	}()
	return out, nil
}
