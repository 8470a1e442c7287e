package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"

	"github.com/google/uuid"
)

var (
	ErrRemoteNotHosted = errors.New("human opponents play over the websocket, not the games api")
	ErrTooManyGames    = errors.New("too many hosted games, try again later")
)

const (
	DefaultMaxGames    = 10000
	DefaultIdleTimeout = 30 * time.Minute
)

// Limits bounds how many hosted games are kept and for how long an unused one survives.
// Zero fields take the defaults.
type Limits struct {
	MaxGames    int
	IdleTimeout time.Duration
}

// GameService defines the business logic for server-hosted local and computer games.
type GameService interface {
	Create(ctx context.Context, req *models.CreateGameRequest) (*models.GameResponse, error)
	Get(ctx context.Context, id string) (*models.GameResponse, error)
	Move(ctx context.Context, id string, req *models.MoveRequest) (*models.GameResponse, error)
	Reset(ctx context.Context, id string) (*models.GameResponse, error)
	Delete(ctx context.Context, id string) error
	// Sweep removes games idle for longer than the idle timeout and returns how many it removed.
	Sweep(ctx context.Context) int
	// RunJanitor sweeps every interval until ctx is done.
	RunJanitor(ctx context.Context, interval time.Duration)
}

type gameService struct {
	gameRepo      repository.GameRepository
	selector      session.MoveSelector
	computerDelay time.Duration
	limits        Limits
}

// NewGameService creates a GameService. selector plays for the computer opponent.
func NewGameService(gameRepo repository.GameRepository, selector session.MoveSelector, computerDelay time.Duration, limits Limits) GameService {
	if limits.MaxGames <= 0 {
		limits.MaxGames = DefaultMaxGames
	}
	if limits.IdleTimeout <= 0 {
		limits.IdleTimeout = DefaultIdleTimeout
	}
	return &gameService{gameRepo: gameRepo, selector: selector, computerDelay: computerDelay, limits: limits}
}

func (s *gameService) Create(ctx context.Context, req *models.CreateGameRequest) (*models.GameResponse, error) {
	mode, err := session.ParseMode(req.OpponentMode)
	if err != nil {
		return nil, err
	}
	if mode == session.ModeRemote {
		return nil, ErrRemoteNotHosted
	}
	if s.gameRepo.Count(ctx) >= s.limits.MaxGames && s.Sweep(ctx) == 0 {
		slog.WarnContext(ctx, "Hosted game limit reached", "games.max", s.limits.MaxGames)
		return nil, ErrTooManyGames
	}

	opts := session.Options{Size: req.GridSize, Mode: mode}
	if mode == session.ModeComputer {
		opts.Selector = s.selector
		opts.ComputerDelay = s.computerDelay
	}
	sess, err := session.New(opts)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if err := s.gameRepo.Save(ctx, id, sess); err != nil {
		sess.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "Hosted game created", "game.id", id, "game.mode", mode, "grid.size", req.GridSize)
	return toResponse(id, sess), nil
}

func (s *gameService) Get(ctx context.Context, id string) (*models.GameResponse, error) {
	sess, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(id, sess), nil
}

func (s *gameService) Move(ctx context.Context, id string, req *models.MoveRequest) (*models.GameResponse, error) {
	sess, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.Play(*req.Row, *req.Col); err != nil {
		return nil, err
	}
	return toResponse(id, sess), nil
}

func (s *gameService) Reset(ctx context.Context, id string) (*models.GameResponse, error) {
	sess, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Reset()
	return toResponse(id, sess), nil
}

func (s *gameService) Delete(ctx context.Context, id string) error {
	sess, err := s.gameRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	sess.Close()
	return nil
}

func (s *gameService) Sweep(ctx context.Context) int {
	removed := s.gameRepo.DeleteIdle(ctx, time.Now().Add(-s.limits.IdleTimeout))
	for _, sess := range removed {
		sess.Close()
	}
	if len(removed) > 0 {
		slog.InfoContext(ctx, "Removed idle hosted games", "games.removed", len(removed),
			"games.remaining", s.gameRepo.Count(ctx))
	}
	return len(removed)
}

func (s *gameService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func toResponse(id string, sess *session.Session) *models.GameResponse {
	return &models.GameResponse{
		ID:              id,
		Snapshot:        sess.Snapshot(),
		ComputerPending: sess.ComputerPending(),
	}
}
