package game

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveTTL bounds how long an id placeholder may exist without a session.
const reserveTTL = time.Minute

// Store owns the canonical session records. One Redis key per game id is the
// per-game single-writer gate: UpdateTx runs a WATCH transaction on that key
// only, so unrelated games never contend.
type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func gameKey(id string) string   { return "game:" + strings.TrimSpace(id) }
func idxUserKey(id string) string { return "game:index:user:" + strings.TrimSpace(id) }

// Load returns the session or nil when absent.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Exists reports whether id is taken, placeholder reservations included.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, gameKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reserve claims id with an empty placeholder so concurrent allocation of the
// same id fails fast. The reservation expires unless a session materializes.
func (s *Store) Reserve(ctx context.Context, id string) (bool, error) {
	return s.rdb.SetNX(ctx, gameKey(id), []byte("{}"), reserveTTL).Result()
}

// WriteInPipe queues the full session write plus participant indexes onto an
// open pipeline, so a caller can commit it atomically with its own keys.
func (s *Store) WriteInPipe(ctx context.Context, pipe redis.Pipeliner, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	pipe.Set(ctx, gameKey(sess.ID), raw, 0)
	if sess.CreatorID != "" {
		pipe.SAdd(ctx, idxUserKey(sess.CreatorID), sess.ID)
	}
	if sess.OpponentID != "" {
		pipe.SAdd(ctx, idxUserKey(sess.OpponentID), sess.ID)
	}
	return nil
}

// Save overwrites the session unconditionally. Only for paths that already
// hold the single-writer gate (tests, materialization).
func (s *Store) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, gameKey(sess.ID), raw, 0).Err()
}

// GamesByUser lists the ids indexed for an identity.
func (s *Store) GamesByUser(ctx context.Context, identity string) ([]string, error) {
	return s.rdb.SMembers(ctx, idxUserKey(identity)).Result()
}

// UpdateTx loads the session under WATCH, lets fn mutate it, and commits via
// a transactional pipeline. If the stored value changed between the read and
// the commit the swap fails and ErrConflict is returned; the store is then
// guaranteed unchanged by this call. An error from fn aborts the commit.
func (s *Store) UpdateTx(ctx context.Context, id string, fn func(cur *Session) error) (*Session, error) {
	key := gameKey(id)
	var out *Session
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.ID == "" {
			// unresolved placeholder reservation
			return ErrNotFound
		}
		if err := fn(&cur); err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe.Set(ctx, key, newRaw, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return out, nil
}
