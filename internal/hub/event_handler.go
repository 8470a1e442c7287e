package hub

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/internal/room"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// handleMessage decodes a client frame and dispatches it by event name.
func (h *Hub) handleMessage(ctx context.Context, p *player.Player, raw []byte) {
	ctx, span := tracer.Start(ctx, "hub.handleMessage", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()

	if h.clients[p.ID] != p {
		slog.WarnContext(ctx, "ignoring message from disconnected player", "player.id", p.ID)
		return
	}

	env, err := proto.Decode(raw)
	if err != nil {
		slog.WarnContext(ctx, "invalid message from player", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		h.sendError(ctx, p, proto.CodeBadMessage, err.Error())
		return
	}
	span.SetAttributes(attribute.String("message.type", env.Event))

	switch env.Event {
	case proto.EventFindMatch:
		h.handleFindMatch(ctx, p, env)
	case proto.EventCancelMatchmaking:
		h.handleCancel(ctx, p)
	case proto.EventMakeMove:
		h.handleMakeMove(ctx, p, env)
	case proto.EventGameEnd:
		h.handleGameEnd(ctx, p, env)
	default:
		slog.WarnContext(ctx, "unknown event from player", "player.id", p.ID, "event", env.Event)
		span.SetStatus(codes.Error, "Unknown event")
		h.sendError(ctx, p, proto.CodeUnknownEvent, "unknown event "+env.Event)
	}
}

func (h *Hub) handleFindMatch(ctx context.Context, p *player.Player, env proto.Envelope) {
	var req proto.FindMatchPayload
	if err := env.Bind(&req); err != nil {
		h.sendError(ctx, p, proto.CodeBadMessage, err.Error())
		return
	}
	if req.GridSize == 0 {
		req.GridSize = h.cfg.DefaultGridSize
	}

	if r, ok := h.roomOf[p.ID]; ok {
		select {
		case <-r.Done():
			// The previous game is over; the player may look for a new one.
			delete(h.roomOf, p.ID)
		default:
			h.sendError(ctx, p, proto.CodeAlreadyInRoom, "already playing in room "+r.ID)
			return
		}
	}

	pair, err := h.matchManager.FindMatch(p.ID, req.GridSize)
	if err != nil {
		slog.ErrorContext(ctx, "Matchmaking failed", "player.id", p.ID, "grid.size", req.GridSize, "error", err)
		h.sendError(ctx, p, proto.CodeMatchmaking, err.Error())
		return
	}
	if pair == nil {
		h.send(ctx, p, proto.EventWaiting, proto.Empty{})
		return
	}
	h.createRoom(ctx, pair.Players, pair.GridSize)
}

func (h *Hub) handleCancel(ctx context.Context, p *player.Player) {
	if h.matchManager.Cancel(p.ID) {
		slog.InfoContext(ctx, "Player cancelled matchmaking", "player.id", p.ID)
	}
}

func (h *Hub) handleMakeMove(ctx context.Context, p *player.Player, env proto.Envelope) {
	var move proto.MakeMovePayload
	if err := env.Bind(&move); err != nil {
		h.sendError(ctx, p, proto.CodeBadMessage, err.Error())
		return
	}

	r, ok := h.roomOf[p.ID]
	if !ok {
		h.send(ctx, p, proto.EventMoveRejected, proto.MoveRejectedPayload{
			Code:   proto.CodeNotInRoom,
			Reason: room.ErrNotInRoom.Error(),
		})
		return
	}
	if r.Submit(p.ID, move) {
		return
	}

	// The room has stopped: either the game is over or the opponent left.
	snap := r.Snapshot()
	code, reason := proto.CodeNotInRoom, "room is closed"
	if snap.Status.Terminal() {
		code, reason = proto.CodeGameOver, "game is already over"
	}
	h.send(ctx, p, proto.EventMoveRejected, proto.MoveRejectedPayload{
		Code:          code,
		Reason:        reason,
		Board:         snap.Board,
		CurrentPlayer: snap.CurrentMark,
	})
}

// handleGameEnd records a client's claim that the game ended. The room decides the
// outcome; a disagreeing claim is only logged.
func (h *Hub) handleGameEnd(ctx context.Context, p *player.Player, env proto.Envelope) {
	var claim proto.GameEndPayload
	if err := env.Bind(&claim); err != nil {
		h.sendError(ctx, p, proto.CodeBadMessage, err.Error())
		return
	}

	r, ok := h.roomOf[p.ID]
	if !ok {
		slog.DebugContext(ctx, "gameEnd from player without a room", "player.id", p.ID)
		return
	}
	snap := r.Snapshot()
	if string(snap.Status) != claim.Status || snap.Winner != claim.Winner {
		slog.WarnContext(ctx, "client game end disagrees with room", "player.id", p.ID, "room.id", r.ID,
			"claim.status", claim.Status, "claim.winner", claim.Winner,
			"room.status", snap.Status, "room.winner", snap.Winner)
		return
	}
	slog.DebugContext(ctx, "client confirmed game end", "player.id", p.ID, "room.id", r.ID)
}

func (h *Hub) handleMatchmakingTimeout(ctx context.Context, playerID string) {
	ctx, span := tracer.Start(ctx, "hub.handleMatchmakingTimeout", trace.WithAttributes(
		attribute.String("player.id", playerID),
	))
	defer span.End()

	if !h.matchManager.ConsumeTimeout(playerID) {
		slog.DebugContext(ctx, "Dropping stale matchmaking timeout", "player.id", playerID,
			"match.state", h.matchManager.State(playerID))
		return
	}

	h.timeouts.Add(ctx, 1)
	h.publish(ctx, events.TypeMatchmakingTimeout, events.MatchmakingTimeoutPayload{PlayerID: playerID})

	p, ok := h.clients[playerID]
	if !ok {
		return
	}
	h.send(ctx, p, proto.EventNoMatchFound, proto.Empty{})
}

func (h *Hub) handleRoomClosed(ctx context.Context, r *room.Room) {
	delete(h.rooms, r.ID)
	for _, id := range r.PlayerIDs() {
		h.matchManager.Release(id)
	}
	slog.InfoContext(ctx, "Room closed", "room.id", r.ID, "rooms.open", len(h.rooms),
		"game.finished", r.Finished())
}

func (h *Hub) recordMatch(ctx context.Context, gridSize int) {
	h.matchesMade.Add(ctx, 1, metric.WithAttributes(attribute.Int("grid.size", gridSize)))
}
