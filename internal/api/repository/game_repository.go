package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
)

var ErrNotFound = errors.New("game not found")

// GameRepository stores hosted sessions by id.
type GameRepository interface {
	Save(ctx context.Context, id string, s *session.Session) error
	// FindByID also marks the game as used.
	FindByID(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) (*session.Session, error)
	// DeleteIdle removes every game last used before cutoff and returns the removed sessions.
	DeleteIdle(ctx context.Context, cutoff time.Time) []*session.Session
	Count(ctx context.Context) int
}

type storedGame struct {
	session  *session.Session
	lastUsed time.Time
}

type memoryGameRepository struct {
	mu    sync.Mutex
	games map[string]*storedGame
}

// NewGameRepository creates an in-memory GameRepository. Nothing survives a restart.
func NewGameRepository() GameRepository {
	return &memoryGameRepository{games: make(map[string]*storedGame)}
}

func (r *memoryGameRepository) Save(_ context.Context, id string, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[id] = &storedGame{session: s, lastUsed: time.Now()}
	return nil
}

func (r *memoryGameRepository) FindByID(_ context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.lastUsed = time.Now()
	return g.session, nil
}

func (r *memoryGameRepository) Delete(_ context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.games, id)
	return g.session, nil
}

func (r *memoryGameRepository) DeleteIdle(_ context.Context, cutoff time.Time) []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*session.Session
	for id, g := range r.games {
		if g.lastUsed.Before(cutoff) {
			removed = append(removed, g.session)
			delete(r.games, id)
		}
	}
	return removed
}

func (r *memoryGameRepository) Count(context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}
