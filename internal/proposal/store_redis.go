package proposal

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-live/internal/game"
)

type Store struct {
	rdb   *redis.Client
	games *game.Store
}

func NewStore(rdb *redis.Client, games *game.Store) *Store {
	return &Store{rdb: rdb, games: games}
}

func keyProposal(id string) string { return "proposal:" + strings.TrimSpace(id) }
func keyOpen() string              { return "proposal:index:open" }

// SaveNew stores p only if its id is free.
func (s *Store) SaveNew(ctx context.Context, p *Proposal) (bool, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	key := keyProposal(p.ID)
	ok, err := s.rdb.SetNX(ctx, key, raw, 0).Result()
	if err != nil || !ok {
		return ok, err
	}
	if err := s.rdb.SAdd(ctx, keyOpen(), p.ID).Err(); err != nil {
		// a record missing from the open index is unreachable through
		// listing yet still resolvable by id; roll it back instead
		_ = s.rdb.Del(ctx, key).Err()
		return false, err
	}
	return true, nil
}

// Load returns the proposal or nil when gone.
func (s *Store) Load(ctx context.Context, id string) (*Proposal, error) {
	raw, err := s.rdb.Get(ctx, keyProposal(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOpen returns proposals still waiting for an opponent.
func (s *Store) ListOpen(ctx context.Context) ([]*Proposal, error) {
	ids, err := s.rdb.SMembers(ctx, keyOpen()).Result()
	if err != nil {
		return nil, err
	}
	var out []*Proposal
	for _, id := range ids {
		p, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// ResolveTx runs the delete-and-create under WATCH on the proposal key. fn
// inspects the proposal and returns the session to materialize; the proposal
// delete and the session write commit in one transaction, so at most one
// resolution attempt ever succeeds. A racer that loses the swap re-reads: a
// vanished proposal is the idempotency signal (NotFound).
func (s *Store) ResolveTx(ctx context.Context, id string, fn func(p *Proposal) (*game.Session, error)) (*game.Session, error) {
	key := keyProposal(id)
	var out *game.Session
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var p Proposal
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		sess, err := fn(&p)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, keyOpen(), id)
		if err := s.games.WriteInPipe(ctx, pipe, sess); err != nil {
			return err
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = sess
		return nil
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			if p, lerr := s.Load(ctx, id); lerr == nil && p == nil {
				return nil, ErrNotFound
			}
			return nil, ErrConflict
		}
		return nil, err
	}
	return out, nil
}

// randomID draws n chars from the [a-z0-9] alphabet.
func randomID(n int) (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
