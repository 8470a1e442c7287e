package hub

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/internal/room"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// createRoom seats a matched pair and tells both players.
func (h *Hub) createRoom(ctx context.Context, ids [2]string, gridSize int) {
	roomID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "hub.createRoom", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.Int("grid.size", gridSize),
	))
	defer span.End()

	var players [2]*player.Player
	for i, id := range ids {
		p, ok := h.clients[id]
		if !ok {
			// Unreachable while disconnects are handled on this goroutine, but never seat a ghost.
			slog.ErrorContext(ctx, "Matched player is gone", "player.id", id)
			span.SetStatus(codes.Error, "Matched player is gone")
			for _, other := range ids {
				h.matchManager.Release(other)
			}
			return
		}
		players[i] = p
	}

	r, err := room.NewRoom(roomID, gridSize, players, h.publisher, h.onRoomClosed)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create room", "room.id", roomID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create room")
		for _, p := range players {
			h.matchManager.Release(p.ID)
			h.sendError(ctx, p, proto.CodeMatchmaking, err.Error())
		}
		return
	}

	h.rooms[roomID] = r
	for _, p := range players {
		h.roomOf[p.ID] = r
	}
	r.Start(ctx)

	found := proto.MatchFoundPayload{RoomID: roomID, Players: ids[:], GridSize: gridSize}
	for _, p := range players {
		h.send(ctx, p, proto.EventMatchFound, found)
	}

	h.recordMatch(ctx, gridSize)
	h.publish(ctx, events.TypeMatchMade, events.MatchMadePayload{RoomID: roomID, PlayerIDs: ids[:], GridSize: gridSize})
	slog.InfoContext(ctx, "Room created", "room.id", roomID, "player.x", ids[0], "player.o", ids[1], "grid.size", gridSize)
}

func (h *Hub) send(ctx context.Context, p *player.Player, event string, payload any) {
	data, err := proto.Encode(event, payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "event", event, "error", err)
		return
	}
	if err := p.Send(data); err != nil {
		slog.WarnContext(ctx, "error queueing message for player", "player.id", p.ID, "event", event, "error", err)
	}
}

func (h *Hub) sendError(ctx context.Context, p *player.Player, code, message string) {
	h.send(ctx, p, proto.EventError, proto.ErrorPayload{Code: code, Message: message})
}

func (h *Hub) publish(ctx context.Context, eventType string, payload any) {
	if err := h.publisher.Publish(ctx, eventType, payload); err != nil {
		slog.WarnContext(ctx, "Failed to publish hub event", "event.type", eventType, "error", err)
	}
}
