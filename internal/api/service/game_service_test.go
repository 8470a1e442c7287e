package service

import (
	"context"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Grid/internal/bot"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameService_CapsHostedGames(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGameRepository()
	svc := NewGameService(repo, bot.Selector{}, 0, Limits{MaxGames: 2, IdleTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, &models.CreateGameRequest{GridSize: 3, OpponentMode: "self"})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, &models.CreateGameRequest{GridSize: 3, OpponentMode: "self"})
	assert.ErrorIs(t, err, ErrTooManyGames)
	assert.Equal(t, 2, repo.Count(ctx))
}

func TestGameService_SweepRemovesIdleGames(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewGameRepository()
	svc := NewGameService(repo, bot.Selector{}, 0, Limits{MaxGames: 1, IdleTimeout: 20 * time.Millisecond})

	idle, err := svc.Create(ctx, &models.CreateGameRequest{GridSize: 3, OpponentMode: "self"})
	require.NoError(t, err)
	assert.Zero(t, svc.Sweep(ctx), "a fresh game is not idle")

	time.Sleep(40 * time.Millisecond)

	// At the cap, creating a game first clears out the idle one.
	fresh, err := svc.Create(ctx, &models.CreateGameRequest{GridSize: 3, OpponentMode: "self"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count(ctx))

	_, err = svc.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestGameService_JanitorSweepsUntilCancelled(t *testing.T) {
	repo := repository.NewGameRepository()
	svc := NewGameService(repo, bot.Selector{}, session.DefaultComputerDelay, Limits{IdleTimeout: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Create(ctx, &models.CreateGameRequest{GridSize: 4, OpponentMode: "computer"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return repo.Count(context.Background()) == 0 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
