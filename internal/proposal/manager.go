package proposal

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/fen"
	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/pkg/livedto"
)

const idLength = 6

type Manager struct {
	store *Store
	games *game.Store
}

func NewManager(rdb *redis.Client, games *game.Store) *Manager {
	return &Manager{store: NewStore(rdb, games), games: games}
}

// Create validates the request and stores a new open proposal.
func (m *Manager) Create(ctx context.Context, proposerID string, req livedto.CreateProposalRequest) (*Proposal, error) {
	proposerID = strings.TrimSpace(proposerID)
	if proposerID == "" {
		return nil, ErrInvalidArgs
	}
	choice, ok := ParseColorChoice(req.ColorChoice)
	if !ok {
		return nil, ErrInvalidArgs
	}
	for _, base := range []int{req.WhiteBaseTimeSeconds, req.BlackBaseTimeSeconds} {
		if base < MinBaseSecs || base > MaxBaseSecs {
			return nil, ErrInvalidArgs
		}
	}
	for _, inc := range []int{req.WhiteIncrementSecs, req.BlackIncrementSecs} {
		if inc < MinIncrementSecs || inc > MaxIncrementSecs {
			return nil, ErrInvalidArgs
		}
	}
	invitee := strings.TrimSpace(req.InviteeID)
	if invitee == proposerID && invitee != "" {
		return nil, ErrInvalidArgs
	}
	if req.InviteOnly && invitee == "" {
		return nil, ErrInvalidArgs
	}
	startFEN := strings.TrimSpace(req.StartingFEN)
	if startFEN != "" {
		if err := fen.Validate(startFEN); err != nil {
			return nil, err
		}
	}

	p := &Proposal{
		ProposerID:         proposerID,
		InviteeID:          invitee,
		WhiteBaseSecs:      req.WhiteBaseTimeSeconds,
		BlackBaseSecs:      req.BlackBaseTimeSeconds,
		WhiteIncrementSecs: req.WhiteIncrementSecs,
		BlackIncrementSecs: req.BlackIncrementSecs,
		Rated:              req.Rated,
		InviteOnly:         req.InviteOnly,
		ColorChoice:        choice,
		StartingFEN:        startFEN,
		CreatedAt:          time.Now().UTC(),
	}
	for i := 0; i < 5; i++ {
		id, err := randomID(idLength)
		if err != nil {
			return nil, err
		}
		p.ID = id
		ok, err := m.store.SaveNew(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			obslog.L().Info("proposal_create",
				zap.String("proposal_id", p.ID),
				zap.String("proposer_id", proposerID),
				zap.Bool("invite_only", p.InviteOnly),
				zap.Bool("rated", p.Rated),
			)
			return p, nil
		}
	}
	return nil, fmt.Errorf("failed to allocate proposal id")
}

// Get returns the proposal, NotFound once resolved.
func (m *Manager) Get(ctx context.Context, id string) (*Proposal, error) {
	p, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListOpen returns proposals waiting for an opponent.
func (m *Manager) ListOpen(ctx context.Context) ([]*Proposal, error) {
	return m.store.ListOpen(ctx)
}

// Resolve turns a proposal into a bound session. The proposal delete and the
// session create are atomic; a second resolution of the same id gets
// NotFound. The resolver becomes the opponent unless the proposal fixed an
// invitee, and a "random" color preference is settled with a coin flip.
func (m *Manager) Resolve(ctx context.Context, proposalID, identity string) (*game.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrInvalidArgs
	}
	sess, err := m.store.ResolveTx(ctx, proposalID, func(p *Proposal) (*game.Session, error) {
		if identity == p.ProposerID {
			return nil, ErrSelfResolve
		}
		if p.InviteOnly && identity != p.InviteeID {
			return nil, ErrUninvited
		}
		opponent := identity
		if p.InviteeID != "" {
			opponent = p.InviteeID
		}
		creatorColor, err := settleColor(p.ColorChoice)
		if err != nil {
			return nil, err
		}
		gameID, err := m.allocateGameID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		startFEN := p.StartingFEN
		if startFEN == "" {
			startFEN = fen.Starting
		}
		now := time.Now().UTC()
		return &game.Session{
			ID:                 gameID,
			CreatorID:          p.ProposerID,
			OpponentID:         opponent,
			CreatorColor:       creatorColor,
			FEN:                startFEN,
			State:              game.StateNotStarted,
			WhiteBaseSecs:      p.WhiteBaseSecs,
			BlackBaseSecs:      p.BlackBaseSecs,
			WhiteIncrementSecs: p.WhiteIncrementSecs,
			BlackIncrementSecs: p.BlackIncrementSecs,
			WhiteRemainingMS:   int64(p.WhiteBaseSecs) * 1000,
			BlackRemainingMS:   int64(p.BlackBaseSecs) * 1000,
			Rated:              p.Rated,
			InviteOnly:         p.InviteOnly,
			CreatedAt:          now,
			UpdatedAt:          now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("proposal_resolve",
		zap.String("proposal_id", proposalID),
		zap.String("game_id", sess.ID),
		zap.String("creator_id", sess.CreatorID),
		zap.String("opponent_id", sess.OpponentID),
		zap.String("creator_color", string(sess.CreatorColor)),
	)
	return sess, nil
}

// allocateGameID reserves a session id, retrying until unique. The proposal
// id itself is excluded so the two id spaces never alias.
func (m *Manager) allocateGameID(ctx context.Context, proposalID string) (string, error) {
	for i := 0; i < 5; i++ {
		id, err := randomID(idLength)
		if err != nil {
			return "", err
		}
		if id == proposalID {
			continue
		}
		ok, err := m.games.Reserve(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to allocate game id")
}

func settleColor(choice ColorChoice) (fen.Color, error) {
	switch choice {
	case ColorWhite:
		return fen.White, nil
	case ColorBlack:
		return fen.Black, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return "", err
	}
	if n.Int64() == 0 {
		return fen.White, nil
	}
	return fen.Black, nil
}
