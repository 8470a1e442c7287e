package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("room")
	meter  = otel.Meter("room")
)

var ErrNotInRoom = errors.New("player is not part of room")

type command struct {
	playerID string
	leave    bool
	move     proto.MakeMovePayload
}

// Room relays moves between two matched players. It owns the authoritative session and
// processes one command at a time on its own goroutine.
type Room struct {
	ID       string
	GridSize int
	Players  [2]*player.Player

	session   *session.Session
	publisher events.Publisher
	onClose   func(*Room)

	commands  chan command
	done      chan struct{}
	closeOnce sync.Once

	rejectedMoves metric.Int64Counter
	finishedGames metric.Int64Counter
}

// NewRoom creates a room. Players[0] plays MarkA and moves first. onClose is called once
// from the room goroutine after the room stops accepting moves.
func NewRoom(id string, gridSize int, players [2]*player.Player, publisher events.Publisher, onClose func(*Room)) (*Room, error) {
	s, err := session.New(session.Options{Size: gridSize, Mode: session.ModeRemote, RoomID: id})
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", id, err)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	rejected, err := meter.Int64Counter("room.moves.rejected",
		metric.WithDescription("Moves rejected by the authoritative session"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("room.games.finished",
		metric.WithDescription("Games that reached a win or a draw"))
	if err != nil {
		return nil, err
	}

	return &Room{
		ID:            id,
		GridSize:      gridSize,
		Players:       players,
		session:       s,
		publisher:     publisher,
		onClose:       onClose,
		commands:      make(chan command, 16),
		done:          make(chan struct{}),
		rejectedMoves: rejected,
		finishedGames: finished,
	}, nil
}

// Start runs the room until the game ends, a player leaves or ctx is cancelled.
func (r *Room) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Room) run(ctx context.Context) {
	defer func() {
		r.session.Close()
		if r.onClose != nil {
			r.onClose(r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Room stopping on shutdown", "room.id", r.ID)
			r.close()
			return

		case <-r.done:
			return

		case cmd := <-r.commands:
			if cmd.leave {
				r.handleLeave(ctx, cmd.playerID)
			} else {
				r.handleMove(ctx, cmd.playerID, cmd.move)
			}
		}
	}
}

// Submit queues a move from playerID. It returns false once the room no longer accepts moves.
func (r *Room) Submit(playerID string, move proto.MakeMovePayload) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.commands <- command{playerID: playerID, move: move}:
		return true
	case <-r.done:
		return false
	}
}

// Leave tells the room playerID is gone. The other player is notified and the room closes.
func (r *Room) Leave(playerID string) {
	select {
	case r.commands <- command{playerID: playerID, leave: true}:
	case <-r.done:
	}
}

// Done is closed when the room stops accepting moves.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// MarkOf returns the seat of playerID, or game.Empty when it is not in the room.
func (r *Room) MarkOf(playerID string) game.Mark {
	switch {
	case r.Players[0] != nil && r.Players[0].ID == playerID:
		return game.MarkA
	case r.Players[1] != nil && r.Players[1].ID == playerID:
		return game.MarkB
	default:
		return game.Empty
	}
}

// PlayerIDs returns the ids of both seats in seat order.
func (r *Room) PlayerIDs() []string {
	ids := make([]string, 0, 2)
	for _, p := range r.Players {
		if p != nil {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Snapshot returns the authoritative game state.
func (r *Room) Snapshot() session.Snapshot {
	return r.session.Snapshot()
}

// Finished reports whether the game reached a win or a draw.
func (r *Room) Finished() bool {
	return r.session.Snapshot().Status.Terminal()
}
