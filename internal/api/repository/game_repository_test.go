package repository

import (
	"context"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(session.Options{Size: 3, Mode: session.ModeLocal})
	require.NoError(t, err)
	return s
}

func TestGameRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository()
	s := newSession(t)

	require.NoError(t, repo.Save(ctx, "g1", s))
	assert.Equal(t, 1, repo.Count(ctx))

	found, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Same(t, s, found)

	deleted, err := repo.Delete(ctx, "g1")
	require.NoError(t, err)
	assert.Same(t, s, deleted)

	_, err = repo.FindByID(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Delete(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, repo.Count(ctx))
}

func TestGameRepository_DeleteIdleKeepsRecentlyUsedGames(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository()
	require.NoError(t, repo.Save(ctx, "stale", newSession(t)))
	require.NoError(t, repo.Save(ctx, "active", newSession(t)))

	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	_, err := repo.FindByID(ctx, "active")
	require.NoError(t, err)

	removed := repo.DeleteIdle(ctx, cutoff)
	assert.Len(t, removed, 1)
	assert.Equal(t, 1, repo.Count(ctx))

	_, err = repo.FindByID(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByID(ctx, "active")
	assert.NoError(t, err)
}
